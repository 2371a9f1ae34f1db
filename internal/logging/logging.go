// Package logging builds the logrus logger used by the command line tools
package logging

import (
	"fmt"
	"io"

	"github.com/deploymenttheory/go-its/internal/config"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing to out with the configured level and format
func New(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	switch cfg.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return l, nil
}
