package hls

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the output directory while a server owns it.
const LockFileName = ".hlsnode.lock"

// ErrDirLocked is returned when another instance already owns the output directory.
var ErrDirLocked = errors.New("output directory is locked by another instance")

// Lock takes an exclusive, non-blocking lock on the output directory so that
// two servers never purge or write each other's segments.
func (l Layout) Lock() (*flock.Flock, error) {
	if err := l.EnsureDir(); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(l.Dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrDirLocked
	}
	return lock, nil
}
