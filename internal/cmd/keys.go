package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newKeysCmd creates the keys command.
func newKeysCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			keys := app.Store.Keys()
			if app.JSON {
				return json.NewEncoder(app.Out).Encode(keys)
			}
			for _, k := range keys {
				fmt.Fprintln(app.Out, k)
			}
			return nil
		},
	}

	return cmd
}
