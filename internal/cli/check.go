package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"phonecheck/internal/app"
	"phonecheck/internal/verdict"
	"phonecheck/pkg/requestcontext"
)

func checkCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "check <number>",
		Short: "Run one lookup and print the verdict as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				ctx = requestcontext.WithChannel(ctx, "cli")
				v, err := a.Pipeline.Analyze(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(verdict.ToView(v))
			})
		},
	}
}
