package cmd

import (
	"github.com/spf13/cobra"
)

// newInsertCmd creates the insert command.
func newInsertCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <key> <value>",
		Short: "Insert a new key",
		Long: `Insert a value under a new key.

Keys are case-insensitive and stored in uppercase. Inserting an existing key
fails; delete it first to replace its value. The insert also fails if the
store would grow past its capacity.

Examples:
  kvs insert key1 "some value"
  kvs insert --capacity 10 key1 "too long"   # No enough space to store`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			res := app.Store.Insert(args[0], args[1])
			return app.report(res, app.SuccessColor("✓")+" "+res.Message)
		},
	}

	return cmd
}
