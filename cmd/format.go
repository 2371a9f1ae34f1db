package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-its/pkg/app"
	"github.com/deploymenttheory/go-its/pkg/app/storage"
)

var (
	formatPS  bool
	formatAll bool
	formatYes bool
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Erase and format the storage areas",
	Long: `Erase both blocks of a storage area and write an empty, committed
layout with a new store id. Every asset in the area is lost.

Examples:
  # Format the ITS area of a new image
  its format --image flash.img --yes

  # Format ITS and PS
  its format --ps --all --yes`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &storage.FormatRequest{
			Stores:  storage.StoreSelector{PS: formatPS, All: formatAll},
			Confirm: formatYes,
		}
		if err := req.Validate(); err != nil {
			return err
		}
		return runWithStorage(cmd, runOptions{createLayout: true}, func(ctx *app.Context, rt *app.Runtime) (any, error) {
			return storage.HandleFormat(ctx, rt, req)
		})
	},
}

func init() {
	rootCmd.AddCommand(formatCmd)

	formatCmd.Flags().BoolVar(&formatPS, "ps-only", false, "format only the protected storage area")
	formatCmd.Flags().BoolVar(&formatAll, "all", false, "format every enabled area")
	formatCmd.Flags().BoolVarP(&formatYes, "yes", "y", false, "confirm erasing all assets")

	formatCmd.MarkFlagsMutuallyExclusive("ps-only", "all")
}
