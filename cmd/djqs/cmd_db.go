package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/database/seeders"
	"github.com/datajunction/djqs/pkg/database"
	"github.com/datajunction/djqs/pkg/migration"
)

var seedFileFlag string

// openIndex loads config and opens the index database only; maintenance
// commands need neither the results backend nor the queue.
func openIndex(ctx context.Context) (*gorm.DB, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return database.Open(ctx, config.Index(), database.DefaultOptions())
}

// withIndex runs fn against the index database and closes it afterwards.
func withIndex(cmd *cobra.Command, fn func(db *gorm.DB) error) error {
	db, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close(db)
	return fn(db)
}

// djqs migrate
var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Aliases: []string{"upgrade"},
	Short:   "Run all pending index database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndex(cmd, func(db *gorm.DB) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Running migrations…")
			return migration.New(db).WithOutput(cmd.OutOrStdout()).Run()
		})
	},
}

// djqs migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndex(cmd, func(db *gorm.DB) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Rolling back last batch…")
			return migration.New(db).WithOutput(cmd.OutOrStdout()).Rollback()
		})
	},
}

// djqs migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndex(cmd, func(db *gorm.DB) error {
			return migration.New(db).WithOutput(cmd.OutOrStdout()).Status()
		})
	},
}

// djqs seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register the engines and catalogs listed in a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := seeders.Load(seedFileFlag)
		if err != nil {
			return err
		}
		return withIndex(cmd, func(db *gorm.DB) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Seeding from %s…\n", seedFileFlag)
			return seeders.Run(cmd.Context(), db, f, cmd.OutOrStdout())
		})
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFileFlag, "file", "f", "config/djqs.yaml", "YAML file with engines and catalogs")
}
