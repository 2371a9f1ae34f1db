package cmd

import (
	"bytes"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-its/pkg/app"
	"github.com/deploymenttheory/go-its/pkg/app/storage"
)

var (
	setOwner int32
	setFlags []string

	// Data sources, stdin when neither is given
	setData string
	setFile string
)

var setCmd = &cobra.Command{
	Use:   "set <uid>",
	Short: "Store an asset",
	Long: `Create or replace the asset identified by owner and uid.

Examples:
  # Store a short secret
  its set 42 --data "hunter2"

  # Store a key file that can never be changed or removed
  its set 7 --owner -1 --file device.key --flags write-once

  # Store data from a pipe in the protected storage area
  its set 1 --owner 256 --ps < blob.bin`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSet(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(setCmd)

	addTargetFlags(setCmd, &setOwner)
	setCmd.Flags().StringSliceVar(&setFlags, "flags", nil, "create flags (write-once, no-confidentiality, no-replay-protection)")
	setCmd.Flags().StringVarP(&setData, "data", "d", "", "asset contents")
	setCmd.Flags().StringVarP(&setFile, "file", "f", "", "read asset contents from file")

	setCmd.MarkFlagsMutuallyExclusive("data", "file")
}

func runSet(cmd *cobra.Command, uidArg string) error {
	target, err := parseTarget(setOwner, uidArg)
	if err != nil {
		return err
	}

	data, length, closeData, err := openSetData(cmd)
	if err != nil {
		return err
	}
	defer closeData()

	return runWithStorage(cmd, runOptions{}, func(ctx *app.Context, rt *app.Runtime) (any, error) {
		return storage.HandleSet(ctx, rt, &storage.SetRequest{
			Target: target,
			Flags:  setFlags,
			Data:   data,
			Length: length,
		})
	})
}

// openSetData returns the asset source and its length
func openSetData(cmd *cobra.Command) (io.Reader, uint32, func(), error) {
	noop := func() {}
	switch {
	case cmd.Flags().Changed("data"):
		return strings.NewReader(setData), uint32(len(setData)), noop, nil
	case setFile != "":
		f, err := os.Open(setFile)
		if err != nil {
			return nil, 0, noop, app.NewError(app.ErrCodeInvalidInput, "failed to open asset file", err)
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, noop, app.NewError(app.ErrCodeInvalidInput, "failed to stat asset file", err)
		}
		if st.Size() > math.MaxUint32 {
			f.Close()
			return nil, 0, noop, app.NewError(app.ErrCodeInvalidInput, "asset file is too large", nil)
		}
		return f, uint32(st.Size()), func() { f.Close() }, nil
	default:
		buf, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, 0, noop, app.NewError(app.ErrCodeInvalidInput, "failed to read asset from stdin", err)
		}
		if uint64(len(buf)) > math.MaxUint32 {
			return nil, 0, noop, app.NewError(app.ErrCodeInvalidInput, "asset is too large", nil)
		}
		return bytes.NewReader(buf), uint32(len(buf)), noop, nil
	}
}
