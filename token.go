package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/config"
	"storefront/internal/middleware"
)

func tokenCmd() *cobra.Command {
	var (
		userHex string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := config.AppEnv.JWTSecret
			if secret == "" {
				return errors.New("JWT_SECRET is required")
			}
			userID := primitive.NewObjectID()
			if userHex != "" {
				var err error
				if userID, err = primitive.ObjectIDFromHex(userHex); err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			}
			if ttl <= 0 {
				ttl = config.AppEnv.AccessTokenTTL
			}

			token, err := middleware.IssueToken(userID, role, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userHex, "user", "", "user id (hex); random when empty")
	cmd.Flags().StringVar(&role, "role", middleware.RoleUser, "role claim (user or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to ACCESS_TOKEN_TTL)")

	return cmd
}
