package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"datastore-lite/internal/kvstorage/jsonfile"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// setupTestApp creates an App over a fresh data store in a temp directory.
func setupTestApp(t *testing.T, opts ...jsonfile.Option) (*App, *jsonfile.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data_store.json")
	opts = append([]jsonfile.Option{jsonfile.WithLogger(quietLogger), jsonfile.WithExitHooks(nil)}, opts...)
	store, err := jsonfile.Open(path, opts...)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return &App{
		Store:  store,
		Path:   store.Path(),
		Logger: quietLogger,
		Out:    &bytes.Buffer{},
		Err:    &bytes.Buffer{},
	}, store
}
