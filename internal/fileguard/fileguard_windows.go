//go:build windows

package fileguard

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// The whole file, including bytes not yet written.
const (
	rangeLow  = ^uint32(0)
	rangeHigh = ^uint32(0)
)

func lockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, rangeLow, rangeHigh, ol)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return ErrLockUnavailable
	}
	return err
}

func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	err := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, rangeLow, rangeHigh, ol)
	if errors.Is(err, windows.ERROR_NOT_LOCKED) {
		return nil
	}
	return err
}
