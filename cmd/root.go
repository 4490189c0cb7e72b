// Package cmd implements the toolbox's command-line surface: transform
// (pipeline A), extract and flatten (pipeline B).
package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mii-cds/cdstoolbox/internal/log"
)

// Command wraps the root cobra.Command with the shared persistent flags
// every subcommand needs: log format and level.
type Command struct {
	rootCmd *cobra.Command

	logFormat string
	logLevel  string

	outW io.Writer
	errW io.Writer
}

// NewCommand builds the root command and registers every subcommand.
func NewCommand() *Command {
	c := &Command{outW: os.Stdout, errW: os.Stderr}

	c.rootCmd = &cobra.Command{
		Use:           "cdstoolbox",
		Short:         "Transform hospital tables into clinical resources and extract object-centric event logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.rootCmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "standard", "logging format: standard or json")
	c.rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", log.Info, "logging level: DEBUG, INFO, WARN, ERROR")

	c.rootCmd.AddCommand(newTransformCommand(c))
	c.rootCmd.AddCommand(newExtractCommand(c))
	c.rootCmd.AddCommand(newFlattenCommand(c))

	return c
}

// Logger builds a logger from the command's current flag values.
func (c *Command) Logger() (log.Logger, error) {
	return log.NewLogger(c.logFormat, c.logLevel, c.outW, c.errW)
}

// Out returns the writer used for standard output.
func (c *Command) Out() io.Writer { return c.outW }

// SetOut overrides the output writers, for tests.
func (c *Command) SetOut(out, err io.Writer) {
	c.outW, c.errW = out, err
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// Execute runs the command with the process's actual arguments.
func (c *Command) Execute(ctx context.Context) error {
	return c.rootCmd.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the command against an explicit argument list, for
// tests.
func (c *Command) ExecuteWithArgs(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}
