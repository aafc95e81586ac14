package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datajunction/djqs/config"

	// registers the index schema migrations
	_ "github.com/datajunction/djqs/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var dotenvFlag string

var rootCmd = &cobra.Command{
	Use:           "djqs",
	Short:         "DataJunction query service",
	Long:          "djqs runs SQL against the engines of registered catalogs and keeps track of every query and its results.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dotenvFlag == "" {
			return nil
		}
		if _, err := os.Stat(dotenvFlag); err != nil {
			return fmt.Errorf("dotenv: %w", err)
		}
		if err := os.Setenv("DOTENV_FILE", dotenvFlag); err != nil {
			return err
		}
		config.Reset()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dotenvFlag, "dotenv", "", "Path of the dotenv file to load (default .env)")

	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	// Workers
	rootCmd.AddCommand(workerCmd)
}
