package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the kvs release. Release builds set it with
// -ldflags "-X datastore-lite/internal/cmd.Version=1.2.3".
var Version = "0.3.0"

// VersionJSON is the JSON output format for the version command.
type VersionJSON struct {
	Version  string `json:"version"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

func currentVersion() VersionJSON {
	return VersionJSON{
		Version:  Version,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// newVersionCmd creates the version command. It never opens the store.
func newVersionCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kvs version and build platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := currentVersion()
			if provider.JSONOutput {
				return json.NewEncoder(provider.Out).Encode(v)
			}
			_, err := fmt.Fprintf(provider.Out, "kvs %s (%s, %s)\n", v.Version, v.Go, v.Platform)
			return err
		},
	}
}
