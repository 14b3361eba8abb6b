package main

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/invoicedesk/internal/migration"
	"github.com/smallbiznis/invoicedesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrateTimeout = 2 * time.Minute

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), fx.Invoke(migration.Apply))
		},
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), fx.Invoke(migration.Apply))
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations (PostgreSQL only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
				dbType, err := db.ResolveType(cfg)
				if err != nil {
					return err
				}
				if dbType != db.TypePostgres {
					return fmt.Errorf("migrate down is not supported for %s", dbType)
				}
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				if err := migration.RollbackMigrations(sqlDB, steps); err != nil {
					return err
				}
				log.Info("migrations reverted", zap.Int("steps", steps))
				return nil
			}))
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")

	cmd.AddCommand(up, down)
	return cmd
}

// runOnce starts the infrastructure, runs the invoked work and shuts down.
func runOnce(parent context.Context, work fx.Option) error {
	if parent == nil {
		parent = context.Background()
	}
	app := fx.New(infrastructure(), work)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, migrateTimeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}
