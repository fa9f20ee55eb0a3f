// Package kvstorage defines the contract of a single-file key-value store:
// the KVStore interface, the Result returned by every operation, and the key
// normalization rule shared by all backends.
package kvstorage

import (
	"encoding/json"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCapacity is the default maximum encoded size of a store, 1 GiB.
const DefaultCapacity int64 = 1 << 30

// Result messages. They are compared verbatim by callers and tests.
const (
	MsgInserted    = "Successfully inserted"
	MsgKeyExists   = "Key already exists"
	MsgNoSpace     = "No enough space to store"
	MsgKeyNotFound = "Key does not exists"
	MsgDeleted     = "Deleted successfully"
	MsgClosed      = "Store is closed"
	MsgInvalidUTF8 = "Key and value must be valid UTF-8"
)

// KVStore defines the operations of a key-value store that buffers its whole
// document in memory and writes it out on Save.
type KVStore interface {
	// Insert adds a new entry. It fails if the key exists or the entry
	// does not fit in the remaining capacity.
	Insert(key, value string) Result

	// Read returns the value stored under key in Result.Data.
	Read(key string) Result

	// Delete removes the entry for key.
	Delete(key string) Result

	// Keys returns the normalized keys in sorted order.
	Keys() []string

	// Len returns the number of entries.
	Len() int

	// Size returns the encoded size of the document in bytes.
	Size() int64

	// Capacity returns the maximum encoded size in bytes.
	Capacity() int64

	// Save flushes pending changes to disk. It is a no-op when nothing
	// changed since the last save.
	Save() error

	// Close saves and releases the backing file. Safe to call repeatedly.
	Close() error
}

// Result is the outcome of a single store operation.
type Result struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data,omitempty"`

	// Err is the sentinel behind a failed result, for errors.Is.
	Err error `json:"-"`

	hasData bool // set by Value so an empty payload is still encoded
}

// MarshalJSON encodes r. A read result always carries "data", even when the
// stored value is empty.
func (r Result) MarshalJSON() ([]byte, error) {
	type wire struct {
		Status  bool    `json:"status"`
		Message string  `json:"message,omitempty"`
		Data    *string `json:"data,omitempty"`
	}
	w := wire{Status: r.Status, Message: r.Message}
	if r.hasData || r.Data != "" {
		w.Data = &r.Data
	}
	return json.Marshal(w)
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status
}

// Succeeded returns a successful Result carrying msg.
func Succeeded(msg string) Result {
	return Result{Status: true, Message: msg}
}

// Value returns a successful Result carrying a read payload.
func Value(data string) Result {
	return Result{Status: true, Data: data, hasData: true}
}

// Failed returns a failed Result for err.
func Failed(err error) Result {
	return Result{Message: MessageFor(err), Err: err}
}

// MessageFor maps a sentinel error to its result message.
func MessageFor(err error) string {
	switch err {
	case nil:
		return ""
	case ErrDuplicateKey:
		return MsgKeyExists
	case ErrCapacityExceeded:
		return MsgNoSpace
	case ErrKeyNotFound:
		return MsgKeyNotFound
	case ErrClosed:
		return MsgClosed
	case ErrInvalidUTF8:
		return MsgInvalidUTF8
	default:
		return err.Error()
	}
}

// NormalizeKey maps key to its canonical uppercase form using full Unicode
// case mapping, so "straße" and "STRASSE" are the same key.
func NormalizeKey(key string) string {
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Upper(language.Und).String(key)
}
