// kvs is the CLI for a single-file JSON key-value store.
package main

import (
	"fmt"
	"os"

	"datastore-lite/internal/cmd"
	"datastore-lite/internal/exithook"
)

var (
	run    = func() error { return cmd.Execute() }
	osExit = os.Exit
)

func main() {
	err := run()
	// Stores still open at this point are saved and unlocked here.
	if hookErr := exithook.Run(); hookErr != nil {
		fmt.Fprintln(os.Stderr, hookErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}
