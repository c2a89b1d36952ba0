package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/spfresh/internal/server"
)

func newTokenCommand(root *rootFlags) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a JWT for the HTTP API",
		Long: `Generate an HS256 token signed with server.jwt_secret from the config
file or SPFRESH_JWT_SECRET.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret is not configured")
			}
			token, err := server.GenerateToken(cfg.Server.JWTSecret, cfg.Server.JWTIssuer, subject, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "spfresh-client", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (0 never expires)")
	return cmd
}
