package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/database"
)

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.AppEnv
			if cfg.MongoURI == "" {
				return errors.New("MONGO_URI is required")
			}

			client, err := database.Connect(cfg.MongoURI)
			if err != nil {
				return fmt.Errorf("connect mongo: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			}()

			if err := database.EnsureIndexes(client.Database(cfg.DBName)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ready on", cfg.DBName)
			return nil
		},
	}
}
