package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// StatsJSON is the JSON output format for the stats command.
type StatsJSON struct {
	Path     string  `json:"path"`
	Entries  int     `json:"entries"`
	Size     int64   `json:"size"`
	Capacity int64   `json:"capacity"`
	Usage    float64 `json:"usage"`
}

// usageWarnPercent is the usage above which stats highlights the figure.
const usageWarnPercent = 90

// newStatsCmd creates the stats command.
func newStatsCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show size and capacity of the data store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			st := StatsJSON{
				Path:     app.Path,
				Entries:  app.Store.Len(),
				Size:     app.Store.Size(),
				Capacity: app.Store.Capacity(),
			}
			st.Usage = float64(st.Size) / float64(st.Capacity) * 100

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(st)
			}

			usage := fmt.Sprintf("%.2f%%", st.Usage)
			if st.Usage >= usageWarnPercent {
				usage = app.WarnColor(usage)
			}
			fmt.Fprintf(app.Out, "Path:     %s\n", st.Path)
			fmt.Fprintf(app.Out, "Entries:  %d\n", st.Entries)
			fmt.Fprintf(app.Out, "Size:     %s (%d bytes)\n", humanize.IBytes(uint64(st.Size)), st.Size)
			fmt.Fprintf(app.Out, "Capacity: %s (%d bytes)\n", humanize.IBytes(uint64(st.Capacity)), st.Capacity)
			fmt.Fprintf(app.Out, "Usage:    %s\n", usage)
			return nil
		},
	}

	return cmd
}
