package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-its/pkg/app"
	"github.com/deploymenttheory/go-its/pkg/app/storage"
)

var removeOwner int32

var removeCmd = &cobra.Command{
	Use:     "remove <uid>",
	Aliases: []string{"rm"},
	Short:   "Delete an asset",
	Long: `Delete an asset. Write-once assets cannot be removed.

Examples:
  its remove 42
  its rm 1 --owner 256 --ps`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(removeOwner, args[0])
		if err != nil {
			return err
		}
		return runWithStorage(cmd, runOptions{}, func(ctx *app.Context, rt *app.Runtime) (any, error) {
			return storage.HandleRemove(ctx, rt, &storage.RemoveRequest{Target: target})
		})
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
	addTargetFlags(removeCmd, &removeOwner)
}
