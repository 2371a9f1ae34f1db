package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-its/pkg/app"
	"github.com/deploymenttheory/go-its/pkg/app/storage"
)

var (
	inspectPS  bool
	inspectAll bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the on-flash state of the storage areas",
	Long: `Classify both blocks of each storage area, as the mount recovery does,
and list the live files of the active block.

Examples:
  its inspect
  its inspect --ps --all -o json`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithStorage(cmd, runOptions{}, func(ctx *app.Context, rt *app.Runtime) (any, error) {
			return storage.HandleInspect(ctx, rt, &storage.InspectRequest{
				Stores: storage.StoreSelector{PS: inspectPS, All: inspectAll},
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectPS, "ps-only", false, "inspect only the protected storage area")
	inspectCmd.Flags().BoolVar(&inspectAll, "all", false, "inspect every enabled area")
	inspectCmd.MarkFlagsMutuallyExclusive("ps-only", "all")
}
