package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "phonecheck/internal/jwt_token"
)

func tokenCmd(g *globals) *cobra.Command {
	c := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}
	c.AddCommand(tokenIssueCmd(g))
	return c
}

func tokenIssueCmd(g *globals) *cobra.Command {
	var subject string
	var ttl time.Duration

	c := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed API token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := g.load(cmd)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.DefaultTTL
			}
			svc, err := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	c.Flags().StringVar(&subject, "subject", "", "token subject, e.g. the client name (required)")
	c.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.default_ttl)")
	_ = c.MarkFlagRequired("subject")
	return c
}
