//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd || windows)

package fileguard

import (
	"os"
	"path/filepath"
	"sync"
)

// No whole-file advisory lock is available here, so exclusion only covers
// handles opened by this process.
var (
	heldMu sync.Mutex
	held   = make(map[string]*os.File)
)

func lockKey(f *os.File) string {
	if abs, err := filepath.Abs(f.Name()); err == nil {
		return abs
	}
	return f.Name()
}

func lockFile(f *os.File) error {
	heldMu.Lock()
	defer heldMu.Unlock()
	key := lockKey(f)
	if owner, ok := held[key]; ok && owner != f {
		return ErrLockUnavailable
	}
	held[key] = f
	return nil
}

func unlockFile(f *os.File) error {
	heldMu.Lock()
	defer heldMu.Unlock()
	key := lockKey(f)
	if held[key] == f {
		delete(held, key)
	}
	return nil
}
