package cmd

import (
	"github.com/spf13/cobra"
)

// newReadCmd creates the read command.
func newReadCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			res := app.Store.Read(args[0])
			return app.report(res, res.Data)
		},
	}

	return cmd
}
