package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"datastore-lite/internal/kvstorage"
)

// ErrEmptyFile is returned by ReadSnapshot for a zero-length file, which is
// what a reader sees while a save sits between truncate and write.
var ErrEmptyFile = errors.New("data store file is empty")

// emptyDocument is the encoding of a store with no entries.
var emptyDocument = []byte("{}")

// encodeDocument returns the compact JSON form of doc: no whitespace, sorted
// keys, and no HTML escaping.
func encodeDocument(doc map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// memberSize returns the encoded length of the `"key":"value"` member for a
// single entry, excluding braces and any separating comma. It uses the same
// encoder as encodeDocument so escaping is counted exactly.
func memberSize(key, value string) (int64, error) {
	data, err := encodeDocument(map[string]string{key: value})
	if err != nil {
		return 0, err
	}
	return int64(len(data) - len(emptyDocument)), nil
}

// decodeDocument parses raw into a document and normalizes its keys. The
// returned bool reports whether any key had to be rewritten. Empty input is
// treated as an empty document.
func decodeDocument(raw []byte) (map[string]string, bool, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return make(map[string]string), false, nil
	}
	var parsed map[string]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("%w: %v", kvstorage.ErrCorrupt, err)
	}
	doc := make(map[string]string, len(parsed))
	renamed := false
	for k, v := range parsed {
		nk := kvstorage.NormalizeKey(k)
		if nk != k {
			renamed = true
		}
		if _, dup := doc[nk]; dup {
			return nil, false, fmt.Errorf("%w: keys collide as %q", kvstorage.ErrCorrupt, nk)
		}
		doc[nk] = v
	}
	return doc, renamed, nil
}

// ReadSnapshot decodes the data store file at path without taking the lock.
// Advisory locks do not keep readers out, so this is safe while another
// process owns the store, though it may observe a save in progress.
// A zero-length file yields ErrEmptyFile rather than an empty document.
func ReadSnapshot(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data store file: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyFile
	}
	doc, _, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
