package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-its/internal/config"
	"github.com/deploymenttheory/go-its/internal/logging"
	"github.com/deploymenttheory/go-its/pkg/app"
	"github.com/deploymenttheory/go-its/pkg/app/storage"
)

// runOptions adjusts how a command opens the storage runtime
type runOptions struct {
	// createLayout formats unusable stores instead of failing
	createLayout bool
}

// runWithStorage loads the configuration, opens the runtime, calls fn and
// prints its response in the selected output format
func runWithStorage(cmd *cobra.Command, opts runOptions, fn func(*app.Context, *app.Runtime) (any, error)) error {
	v := config.New(cfgFile)
	if err := bindOverrides(v, cmd); err != nil {
		return app.NewError(app.ErrCodeConfig, "invalid flags", err)
	}
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return app.NewError(app.ErrCodeConfig, "failed to load configuration", err)
	}
	if opts.createLayout {
		cfg.ITS.CreateLayout = true
		cfg.PS.CreateLayout = true
	}

	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return app.NewError(app.ErrCodeConfig, "failed to configure logging", err)
	}
	switch {
	case GetQuiet():
		log.SetLevel(logrus.ErrorLevel)
	case GetVerbose() && !log.IsLevelEnabled(logrus.DebugLevel):
		log.SetLevel(logrus.DebugLevel)
	}

	ctx := app.NewContext()
	if c := cmd.Context(); c != nil {
		ctx.Context = c
	}
	ctx.OutputFormat = GetOutputFormat()
	ctx.Verbose = GetVerbose()
	ctx.Quiet = GetQuiet()
	ctx.Out = cmd.OutOrStdout()
	ctx.Logger = log

	rt, err := app.Open(cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	response, err := fn(ctx, rt)
	if err != nil {
		return err
	}
	// asset data is the result of get, quiet only drops reports
	if _, data := response.(*storage.GetResponse); ctx.Quiet && !data {
		return nil
	}
	return storage.FormatOutput(ctx.Out, response, ctx.OutputFormat)
}
