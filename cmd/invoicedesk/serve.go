package main

import (
	"github.com/smallbiznis/invoicedesk/internal/migration"
	"github.com/smallbiznis/invoicedesk/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	app := fx.New(
		infrastructure(),
		migration.Module,
		server.Module,
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}
