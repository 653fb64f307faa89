package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/ticket-autobuy/internal/utils"
)

// NewTokenCommand mints an operator JWT for the listing API.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		subject string
		ttlMin  int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator access token",
		Long: `Mint an HS256 access token with role OPERATOR, signed with JWT_SECRET.

The token authorizes POST /v1/listings/:id/buy and DELETE /v1/listings/:id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.LoadConfig()
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if ttlMin <= 0 {
				ttlMin = cfg.AccessTTLMin
			}
			tok, err := utils.NewAccessToken(cfg.JWTSecret, subject, utils.RoleOperator, ttlMin)
			if err != nil {
				return err
			}
			out := map[string]string{"token": tok.Token, "expires_at": tok.Exp.Format(time.RFC3339)}
			return emit(cmd.OutOrStdout(), rootOpts.Format, out, tok.Token)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject (operator name)")
	cmd.Flags().IntVar(&ttlMin, "ttl-min", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
	return cmd
}
