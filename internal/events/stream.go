package events

import (
	"sync"
	"sync/atomic"

	"github.com/kelindar/event"
)

// Stream merges events of several types from a bus into one channel, the
// shape huma's SSE handlers select on. Publishers never block: an event
// that finds the channel full is dropped and counted.
type Stream struct {
	bus     *Bus
	c       chan any
	dropped atomic.Uint64

	mu     sync.Mutex
	unsubs []func()
}

// NewStream creates a stream buffering up to size events.
func NewStream(bus *Bus, size int) *Stream {
	return &Stream{bus: bus, c: make(chan any, size)}
}

// Forward adds events of type T to s.
func Forward[T Event](s *Stream) {
	unsub := event.Subscribe(s.bus.dispatcher, func(e T) {
		select {
		case s.c <- e:
		default:
			s.dropped.Add(1)
		}
	})

	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsub)
	s.mu.Unlock()
}

// C returns the channel events arrive on. It is never closed.
func (s *Stream) C() <-chan any {
	return s.c
}

// Dropped returns how many events were discarded because the reader fell behind.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes from every forwarded type. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
