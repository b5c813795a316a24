// cottonlog is the operator CLI over stored bale sessions.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/cottonlog/internal/bootstrap"
	"github.com/kirillkom/cottonlog/internal/config"
	"github.com/kirillkom/cottonlog/internal/observability/logging"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cli struct {
	configFile string
	logLevel   string
	app        *bootstrap.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "cottonlog",
		Short:         "Inspect and edit bale weighing sessions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "error", "log level for diagnostic output")

	root.AddCommand(
		c.sessionsCmd(),
		c.manualCmd(),
		c.importCmd(),
		c.searchCmd(),
		c.reportCmd(),
		c.exportCmd(),
		c.ledgerCmd(),
	)
	return root
}

func (c *cli) open(ctx context.Context) error {
	if c.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", c.configFile); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Events are published by the API; the CLI edits offline.
	cfg.EventsEnabled = false

	logger := logging.NewJSONLogger("cli", c.logLevel)
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	c.app = app
	return nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
