package cmd

import (
	"github.com/spf13/cobra"
)

// newDeleteCmd creates the delete command.
func newDeleteCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key and its value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			res := app.Store.Delete(args[0])
			return app.report(res, app.SuccessColor("✓")+" "+res.Message)
		},
	}

	return cmd
}
