// Package fileguard provides advisory exclusive locking and size inspection
// for a single open file. The lock primitive is chosen at build time: flock on
// Unix, LockFileEx on Windows, and an in-process table elsewhere.
//
// Locks are advisory. They coordinate cooperating processes and do not stop
// anyone from reading or writing the bytes directly.
package fileguard

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrLockUnavailable is returned when another holder already has the lock.
var ErrLockUnavailable = errors.New("file is locked by another process")

// Guard wraps an open file with an exclusive advisory lock.
type Guard struct {
	mu   sync.Mutex
	file *os.File
	held bool
}

// New returns a Guard for f. The lock is not taken until LockExclusive.
func New(f *os.File) *Guard {
	return &Guard{file: f}
}

// File returns the guarded file handle.
func (g *Guard) File() *os.File {
	return g.file
}

// Size returns the current on-disk size of the guarded file.
func (g *Guard) Size() (int64, error) {
	return SizeOf(g.file)
}

// SizeOf returns the current on-disk size of the file behind f.
func SizeOf(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	return info.Size(), nil
}

// LockExclusive takes a non-blocking exclusive lock on the whole file.
// It returns an error wrapping ErrLockUnavailable if someone else holds it.
// Calling it while the lock is already held by this Guard is a no-op.
func (g *Guard) LockExclusive() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return nil
	}
	if err := lockFile(g.file); err != nil {
		return fmt.Errorf("locking %s: %w", g.file.Name(), err)
	}
	g.held = true
	return nil
}

// Unlock releases the lock. It is a no-op if the lock is not held.
func (g *Guard) Unlock() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return nil
	}
	if err := unlockFile(g.file); err != nil {
		return fmt.Errorf("unlocking %s: %w", g.file.Name(), err)
	}
	g.held = false
	return nil
}

// Held reports whether this Guard currently holds the lock.
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}
