// Package jsonfile implements kvstorage.KVStore on top of one JSON document on
// disk. The whole document is held in memory; the file is locked for the
// lifetime of the Store and rewritten in place on Save.
package jsonfile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unicode/utf8"

	"datastore-lite/internal/exithook"
	"datastore-lite/internal/fileguard"
	"datastore-lite/internal/kvstorage"
)

// DefaultPath is used when Open is given an empty path.
var DefaultPath = filepath.Join(".", "data_store", "data_store.json")

// Store implements kvstorage.KVStore backed by a single JSON file.
type Store struct {
	path     string // absolute path to the data store file
	capacity int64
	log      *slog.Logger
	hooks    *exithook.Registry

	mu          sync.Mutex
	doc         map[string]string
	encodedSize int64
	dirty       bool
	closed      bool
	guard       *fileguard.Guard
	unhook      func()
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets the maximum encoded size of the document in bytes.
func WithCapacity(n int64) Option {
	return func(s *Store) {
		s.capacity = n
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// WithExitHooks sets the registry the Store registers its Close with.
// A nil registry disables the exit hook.
func WithExitHooks(r *exithook.Registry) Option {
	return func(s *Store) {
		s.hooks = r
	}
}

// Open opens the data store file at path, creating it if needed, and takes an
// exclusive lock on it. An empty path selects DefaultPath.
//
// Open fails with kvstorage.ErrTooLarge if the file is already at or above
// the capacity, and with kvstorage.ErrLocked if another store holds it.
// Callers that want to wait for the lock must retry themselves.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		capacity: kvstorage.DefaultCapacity,
		log:      slog.Default(),
		hooks:    exithook.Default,
	}
	for _, opt := range opts {
		opt(s)
	}

	abs, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}
	s.path = abs

	if err := createIfMissing(s.path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(s.path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening data store file: %w", err)
	}
	if err := s.acquire(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	if s.hooks != nil {
		s.unhook = s.hooks.Register(s.Close)
	}
	s.log.Debug("Opened data store", "path", s.path, "entries", len(s.doc), "size", s.encodedSize, "capacity", s.capacity)
	return s, nil
}

func (s *Store) resolvePath(path string) (string, error) {
	if path == "" {
		abs, err := filepath.Abs(DefaultPath)
		if err != nil {
			return "", fmt.Errorf("resolving default path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return "", fmt.Errorf("creating data store directory: %w", err)
		}
		s.log.Info("Using default data store file", "path", abs)
		return abs, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path %s: %w", path, err)
	}
	s.log.Info("Using data store file", "path", abs)
	return abs, nil
}

// createIfMissing writes an empty document at path unless a file exists.
func createIfMissing(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("creating data store file: %w", err)
	}
	if _, err := f.Write(emptyDocument); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing empty data store file: %w", err)
	}
	return f.Close()
}

// acquire checks the size budget, locks f and loads the document from it.
// On error the lock is released; the caller closes f.
func (s *Store) acquire(f *os.File) error {
	guard := fileguard.New(f)

	size, err := guard.Size()
	if err != nil {
		return err
	}
	if size >= s.capacity {
		s.log.Warn("Data store file exceeds capacity", "path", s.path, "size", size, "capacity", s.capacity)
		return fmt.Errorf("%s is %d bytes, capacity is %d: %w", s.path, size, s.capacity, kvstorage.ErrTooLarge)
	}

	if err := guard.LockExclusive(); err != nil {
		s.log.Warn("Data store file is being used by another process", "path", s.path, "err", err)
		return fmt.Errorf("%w: %w", kvstorage.ErrLocked, err)
	}

	raw, err := io.ReadAll(f)
	if err != nil {
		_ = guard.Unlock()
		return fmt.Errorf("reading data store file: %w", err)
	}
	doc, renamed, err := decodeDocument(raw)
	if err != nil {
		_ = guard.Unlock()
		return fmt.Errorf("loading %s: %w", s.path, err)
	}
	encoded, err := encodeDocument(doc)
	if err != nil {
		_ = guard.Unlock()
		return fmt.Errorf("encoding document: %w", err)
	}
	// Normalized keys can encode longer than they were stored.
	if int64(len(encoded)) > s.capacity {
		_ = guard.Unlock()
		s.log.Warn("Data store exceeds capacity after key normalization", "path", s.path, "size", len(encoded), "capacity", s.capacity)
		return fmt.Errorf("%s encodes to %d bytes, capacity is %d: %w", s.path, len(encoded), s.capacity, kvstorage.ErrTooLarge)
	}

	s.guard = guard
	s.doc = doc
	s.encodedSize = int64(len(encoded))
	s.dirty = renamed
	return nil
}

// Path returns the absolute path of the data store file.
func (s *Store) Path() string {
	return s.path
}

// Capacity returns the maximum encoded size in bytes.
func (s *Store) Capacity() int64 {
	return s.capacity
}

// Size returns the encoded size of the document in bytes.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encodedSize
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc)
}

// Dirty reports whether there are changes not yet saved.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Keys returns the keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.doc))
	for k := range s.doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Insert adds key with value. The key is normalized to uppercase. Keys and
// values must be valid UTF-8.
func (s *Store) Insert(key, value string) kvstorage.Result {
	if !utf8.ValidString(key) || !utf8.ValidString(value) {
		return kvstorage.Failed(kvstorage.ErrInvalidUTF8)
	}
	key = kvstorage.NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstorage.Failed(kvstorage.ErrClosed)
	}
	if _, ok := s.doc[key]; ok {
		return kvstorage.Failed(kvstorage.ErrDuplicateKey)
	}

	marginal, err := memberSize(key, value)
	if err != nil {
		return kvstorage.Failed(fmt.Errorf("encoding entry: %w", err))
	}
	if len(s.doc) > 0 {
		marginal++ // separator
	}
	if s.encodedSize+marginal > s.capacity {
		return kvstorage.Failed(kvstorage.ErrCapacityExceeded)
	}

	s.doc[key] = value
	s.encodedSize += marginal
	s.dirty = true
	return kvstorage.Succeeded(kvstorage.MsgInserted)
}

// Read returns the value stored under key in Result.Data.
func (s *Store) Read(key string) kvstorage.Result {
	key = kvstorage.NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstorage.Failed(kvstorage.ErrClosed)
	}
	value, ok := s.doc[key]
	if !ok {
		return kvstorage.Failed(kvstorage.ErrKeyNotFound)
	}
	return kvstorage.Value(value)
}

// Delete removes the entry for key.
func (s *Store) Delete(key string) kvstorage.Result {
	key = kvstorage.NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstorage.Failed(kvstorage.ErrClosed)
	}
	value, ok := s.doc[key]
	if !ok {
		return kvstorage.Failed(kvstorage.ErrKeyNotFound)
	}

	marginal, err := memberSize(key, value)
	if err != nil {
		return kvstorage.Failed(fmt.Errorf("encoding entry: %w", err))
	}
	if len(s.doc) > 1 {
		marginal++ // separator
	}

	delete(s.doc, key)
	s.encodedSize -= marginal
	s.dirty = true
	return kvstorage.Succeeded(kvstorage.MsgDeleted)
}

// Save writes the document to disk if it changed since the last save.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked rewrites the file in place on the locked handle. Replacing the
// file by rename would leave the lock on the old inode, so the write happens
// on the same file while the lock is held. A crash mid-write can still leave
// a truncated file; there is no journal.
func (s *Store) saveLocked() error {
	if s.closed || !s.dirty {
		return nil
	}

	data, err := encodeDocument(s.doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	f := s.guard.File()
	if err := s.guard.LockExclusive(); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking data store file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncating data store file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing data store file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing data store file: %w", err)
	}

	s.dirty = false
	s.log.Debug("Saved data store", "path", s.path, "entries", len(s.doc), "size", len(data))
	return nil
}

// Close saves pending changes, releases the lock and closes the file. The
// lock and file are released even if the save fails. Calling Close again is
// a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	saveErr := s.saveLocked()
	unlockErr := s.guard.Unlock()
	closeErr := s.guard.File().Close()
	s.closed = true
	if s.unhook != nil {
		s.unhook()
		s.unhook = nil
	}

	s.log.Debug("Closed data store", "path", s.path)
	return errors.Join(saveErr, unlockErr, closeErr)
}

// Compile-time check that Store implements kvstorage.KVStore.
var _ kvstorage.KVStore = (*Store)(nil)
