// Package cmd implements the kvs command-line interface.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"datastore-lite/internal/kvstorage"

	"golang.org/x/term"
)

// App holds application state shared across commands.
type App struct {
	Store  kvstorage.KVStore
	Path   string // absolute path of the data store file
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
	JSON   bool // output in JSON format
}

// SuccessColor returns the string wrapped in green ANSI codes if stdout is a terminal,
// otherwise returns the string unchanged.
func (a *App) SuccessColor(s string) string {
	if f, ok := a.Out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "\033[32m" + s + "\033[0m"
	}
	return s
}

// WarnColor returns the string wrapped in orange ANSI codes if stdout is a terminal,
// otherwise returns the string unchanged.
func (a *App) WarnColor(s string) string {
	if f, ok := a.Out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "\033[38;5;214m" + s + "\033[0m"
	}
	return s
}

// ResultError is returned by commands whose store operation failed. Its
// message is the result message; it unwraps to the result's sentinel.
type ResultError struct {
	Result kvstorage.Result
}

func (e *ResultError) Error() string {
	return e.Result.Message
}

func (e *ResultError) Unwrap() error {
	return e.Result.Err
}

// report prints r and converts a failed result into an error. In text mode
// a successful result prints text; in JSON mode the result itself is printed.
func (a *App) report(r kvstorage.Result, text string) error {
	if a.JSON {
		if err := json.NewEncoder(a.Out).Encode(r); err != nil {
			return err
		}
	} else if r.OK() {
		fmt.Fprintln(a.Out, text)
	}
	if !r.OK() {
		return &ResultError{Result: r}
	}
	return nil
}
