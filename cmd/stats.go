package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-its/pkg/app"
	"github.com/deploymenttheory/go-its/pkg/app/storage"
)

var (
	statsPS  bool
	statsAll bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store counters and request metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithStorage(cmd, runOptions{}, func(ctx *app.Context, rt *app.Runtime) (any, error) {
			return storage.HandleStats(ctx, rt, &storage.StatsRequest{
				Stores: storage.StoreSelector{PS: statsPS, All: statsAll},
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsPS, "ps-only", false, "show only the protected storage area")
	statsCmd.Flags().BoolVar(&statsAll, "all", false, "show every enabled area")
	statsCmd.MarkFlagsMutuallyExclusive("ps-only", "all")
}
