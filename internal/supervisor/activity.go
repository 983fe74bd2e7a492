package supervisor

import (
	"sync/atomic"
	"time"
)

// Activity records when HLS content was last requested.
// Reads and writes are lock-free so request handlers never contend with
// the supervisor lock just to mark activity.
type Activity struct {
	last atomic.Int64 // unix nanoseconds
}

// Touch records t as the latest activity.
func (a *Activity) Touch(t time.Time) {
	a.last.Store(t.UnixNano())
}

// Last returns the latest recorded activity.
func (a *Activity) Last() time.Time {
	return time.Unix(0, a.last.Load())
}

// IdleFor returns how long before now the last activity happened.
func (a *Activity) IdleFor(now time.Time) time.Duration {
	return now.Sub(a.Last())
}
