/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/quickcart/apiserver/config"
	"github.com/quickcart/apiserver/internal/db"
	"github.com/quickcart/apiserver/internal/store/mongostore"
	"github.com/spf13/cobra"
)

var migrationsPath string

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if err := cfg.Database.Validate(); err != nil {
			return err
		}
		log := newLogger(cfg)

		if cfg.Database.Driver == config.DriverMongo {
			client, err := db.OpenMongo(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect mongo failed: %w", err)
			}
			defer func() {
				_ = client.Disconnect(cmd.Context())
			}()
			if err := mongostore.EnsureIndexes(cmd.Context(), client.Database(cfg.Database.MongoDatabase)); err != nil {
				return fmt.Errorf("ensure indexes failed: %w", err)
			}
			log.Info("mongo indexes ensured")
			return nil
		}

		migrator, err := newMigrator(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if err := migrator.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("no migrations to apply")
				return nil
			}
			return fmt.Errorf("migrate up failed: %w", err)
		}
		log.Info("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if err := cfg.Database.Validate(); err != nil {
			return err
		}
		if cfg.Database.Driver != config.DriverPostgres {
			return fmt.Errorf("migrate down is only supported for %s", config.DriverPostgres)
		}

		migrator, err := newMigrator(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if err := migrator.Steps(-1); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return fmt.Errorf("migrate down failed: %w", err)
		}
		newLogger(cfg).Info("rolled back one migration")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "internal/db/migrations", "directory holding the SQL migrations")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}

func newMigrator(cfg config.Config) (*migrate.Migrate, error) {
	migrator, err := migrate.New("file://"+migrationsPath, db.PostgresURL(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return migrator, nil
}
