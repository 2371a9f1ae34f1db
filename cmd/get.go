package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-its/pkg/app"
	"github.com/deploymenttheory/go-its/pkg/app/storage"
)

var (
	getOwner  int32
	getOffset uint32
	getLength uint32
)

var getCmd = &cobra.Command{
	Use:   "get <uid>",
	Short: "Read an asset",
	Long: `Read asset data. Table output writes the raw bytes; json and yaml
wrap them with the asset target.

Examples:
  # Print a stored secret
  its get 42

  # Read 16 bytes starting at offset 8
  its get 42 --offset 8 --length 16 > part.bin`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGet(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(getCmd)

	addTargetFlags(getCmd, &getOwner)
	getCmd.Flags().Uint32Var(&getOffset, "offset", 0, "first byte to read")
	getCmd.Flags().Uint32Var(&getLength, "length", 0, "bytes to read (0 reads to the end)")
}

func runGet(cmd *cobra.Command, uidArg string) error {
	target, err := parseTarget(getOwner, uidArg)
	if err != nil {
		return err
	}

	return runWithStorage(cmd, runOptions{}, func(ctx *app.Context, rt *app.Runtime) (any, error) {
		return storage.HandleGet(ctx, rt, &storage.GetRequest{
			Target: target,
			Offset: getOffset,
			Length: getLength,
		})
	})
}
