package main

import (
	"fmt"
	"time"

	"rillscope/internal/core/services"
	"rillscope/pkg/validation"

	"github.com/spf13/cobra"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a dashboard access token",
		Long: `Sign a bearer token with the configured JWT secret.

Tokens with the admin role unlock moderation actions.

Examples:
  rillscope token --subject ops@example.com --role admin
  rillscope token --subject kiosk --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := validation.ValidateSubject(subject); err != nil {
				return err
			}
			if role != services.RoleViewer && role != cfg.Auth.AdminRole {
				return fmt.Errorf("role must be %s or %s", services.RoleViewer, cfg.Auth.AdminRole)
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL
			}

			auth := services.NewAuthService(cfg.Auth.JWTSecret, ttl, cfg.Auth.AdminRole)
			token, err := auth.GenerateToken(subject, role)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject (required)")
	cmd.Flags().StringVar(&role, "role", services.RoleViewer, "viewer or the configured admin role")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.access_token_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
