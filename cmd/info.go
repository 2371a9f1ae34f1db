package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-its/pkg/app"
	"github.com/deploymenttheory/go-its/pkg/app/storage"
)

var infoOwner int32

var infoCmd = &cobra.Command{
	Use:   "info <uid>",
	Short: "Show asset metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(infoOwner, args[0])
		if err != nil {
			return err
		}
		return runWithStorage(cmd, runOptions{}, func(ctx *app.Context, rt *app.Runtime) (any, error) {
			return storage.HandleInfo(ctx, rt, &storage.InfoRequest{Target: target})
		})
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	addTargetFlags(infoCmd, &infoOwner)
}
