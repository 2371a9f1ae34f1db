package app

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Out receives command output
	Out io.Writer

	Logger logrus.FieldLogger
}

// NewContext creates a new application context
func NewContext() *Context {
	return &Context{
		Context:      context.Background(),
		OutputFormat: "table",
		Out:          os.Stdout,
		Logger:       logrus.StandardLogger(),
	}
}

// Log outputs a message based on verbosity settings
func (c *Context) Log(message string) {
	if !c.Quiet && c.Verbose {
		c.Logger.Info(message)
	}
}
