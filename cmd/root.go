package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string

	// Configuration source
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "its",
	Short: "Internal trusted storage on raw flash",
	Long: `its stores small confidential assets in a power-fail safe,
log-structured filesystem on NOR or NAND style flash.

The flash is emulated by an image file (or RAM for experiments) laid out
as configured in its-config.yaml, with ITS_* environment overrides.

Commands:
  set         Store an asset
  get         Read an asset
  info        Show asset metadata
  remove      Delete an asset
  format      Erase and format the storage areas
  inspect     Show the on-flash state of the storage areas
  stats       Show store counters and request metrics`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default searches ./its-config.yaml, $HOME/.its, /etc/its)")

	// Shortcuts for the most common config overrides
	rootCmd.PersistentFlags().String("image", "", "flash image file")
	rootCmd.PersistentFlags().String("flash-kind", "", "flash emulation (file, nand, ram)")
	rootCmd.PersistentFlags().Bool("ps", false, "enable the protected storage area")
	rootCmd.PersistentFlags().String("log-level", "", "log level")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// bindOverrides maps the shortcut flags onto config keys. Only flags set on
// the command line take precedence over the file and environment.
func bindOverrides(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		"image":      "flash.image",
		"flash-kind": "flash.kind",
		"ps":         "ps.enabled",
		"log-level":  "log.level",
	}
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quiet
}

// GetOutputFormat returns the output format
func GetOutputFormat() string {
	return outputFormat
}
