package kvstorage

import "errors"

var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrDuplicateKey is returned by Insert when the key is already present.
	ErrDuplicateKey = errors.New("key already exists")

	// ErrCapacityExceeded is returned by Insert when the entry would push the
	// encoded document past the store's capacity.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrTooLarge is returned by Open when the backing file is already at or
	// above the capacity.
	ErrTooLarge = errors.New("data store file too large")

	// ErrLocked is returned by Open when the backing file is held by another
	// store or process.
	ErrLocked = errors.New("data store file is being used by another process")

	// ErrCorrupt is returned by Open when the backing file cannot be decoded
	// into a string-to-string document.
	ErrCorrupt = errors.New("data store file is corrupt")

	// ErrInvalidUTF8 is returned by Insert when the key or value is not valid
	// UTF-8. JSON cannot carry such strings without altering them.
	ErrInvalidUTF8 = errors.New("key or value is not valid UTF-8")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)
