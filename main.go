package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storefront/internal/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "storefront",
		Short:   "Storefront order, payment and notification backend",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.Load()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(indexesCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
