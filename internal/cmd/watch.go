package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"

	"datastore-lite/internal/kvstorage/jsonfile"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// Change describes one key that differs between two snapshots.
type Change struct {
	Op    string `json:"op"` // "+", "-" or "~"
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// diffDocuments returns the changes from prev to next, sorted by key.
func diffDocuments(prev, next map[string]string) []Change {
	var changes []Change
	for k, v := range next {
		old, ok := prev[k]
		switch {
		case !ok:
			changes = append(changes, Change{Op: "+", Key: k, Value: v})
		case old != v:
			changes = append(changes, Change{Op: "~", Key: k, Value: v})
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			changes = append(changes, Change{Op: "-", Key: k})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Key < changes[j].Key
	})
	return changes
}

func printChanges(w io.Writer, changes []Change, asJSON bool) error {
	enc := json.NewEncoder(w)
	for _, c := range changes {
		if asJSON {
			if err := enc.Encode(c); err != nil {
				return err
			}
			continue
		}
		if c.Op == "-" {
			fmt.Fprintf(w, "- %s\n", c.Key)
		} else {
			fmt.Fprintf(w, "%s %s=%s\n", c.Op, c.Key, c.Value)
		}
	}
	return nil
}

// watchStore follows the data store file at path and calls onChange with the
// differences every time a save lands. It returns when ctx is done.
func watchStore(ctx context.Context, path string, logger *slog.Logger, onChange func([]Change) error) error {
	prev, err := jsonfile.ReadSnapshot(path)
	if errors.Is(err, jsonfile.ErrEmptyFile) {
		prev = map[string]string{}
	} else if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	// Watch the directory so the watch survives the file being replaced.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			next, err := jsonfile.ReadSnapshot(path)
			if err != nil {
				// A save caught between truncate and write; the next event has the full file.
				logger.DebugContext(ctx, "Skipping unreadable snapshot", "path", path, "err", err)
				continue
			}
			if changes := diffDocuments(prev, next); len(changes) > 0 {
				if err := onChange(changes); err != nil {
					return err
				}
			}
			prev = next
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "Error watching data store", "path", path, "err", err)
		}
	}
}

// newWatchCmd creates the watch command.
func newWatchCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print changes to the data store as they are saved",
		Long: `Follow the data store file and print every key that is added (+),
removed (-) or changed (~) each time another process saves it.

watch only reads the file and never takes the lock, so it can run next to
the process that owns the store. Stop it with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := provider.Settings()
			if err != nil {
				return err
			}
			path, err := resolveStorePath(s.Path)
			if err != nil {
				return err
			}

			out := provider.Out
			fmt.Fprintf(provider.errOut(), "Watching %s\n", path)
			return watchStore(cmd.Context(), path, s.Logger, func(changes []Change) error {
				return printChanges(out, changes, s.JSON)
			})
		},
	}

	return cmd
}
