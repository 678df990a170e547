// Package cli implements the phonecheck admin command.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"phonecheck/internal/app"
	"phonecheck/internal/platform/config"
	"phonecheck/internal/platform/logger"
)

func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "phonecheck",
		Short:         "Admin tool for the PhoneCheck lookup service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "path to a config file (default: ./phonecheck.yaml if present)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(importSafelistCmd(g), tokenCmd(g), checkCmd(g))
	return cmd
}

func (g *globals) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = io.Discard
	if g.verbose {
		w = cmd.ErrOrStderr()
	}
	return cfg, logger.NewWithWriter(w, cfg.Log), nil
}

// withApp builds the service graph without the parts a one-shot command
// never needs, runs fn and releases the connections.
func (g *globals) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, err := g.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Build(ctx, cfg, log, app.WithoutKafka(), app.WithoutOTP())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()
	return fn(ctx, a)
}
