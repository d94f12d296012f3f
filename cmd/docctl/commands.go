package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/app"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/config"
	"github.com/noah-isme/sma-docs-api/pkg/database"
	"github.com/noah-isme/sma-docs-api/pkg/logger"
)

// backend is what commands run against. Tests replace it.
type backend interface {
	Migrate(ctx context.Context) error
	DrainOutbox(ctx context.Context) (int, error)
	CreateOrganization(ctx context.Context, req service.CreateOrganizationRequest) (*models.Organization, error)
	Close()
}

type openBackendFunc func(ctx context.Context) (backend, error)

func newRootCmd() *cobra.Command {
	return buildRootCmd(openContainer)
}

func buildRootCmd(open openBackendFunc) *cobra.Command {
	root := &cobra.Command{
		Use:          "docctl",
		Short:        "Administrative tasks for the document API",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(open), outboxCmd(open), orgCmd(open))
	return root
}

func migrateCmd(open openBackendFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			be, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer be.Close()
			if err := be.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func outboxCmd(open openBackendFunc) *cobra.Command {
	outbox := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and run durable side effects",
	}
	outbox.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Run one outbox claim cycle synchronously",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			be, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer be.Close()
			processed, err := be.DrainOutbox(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d outbox tasks\n", processed)
			return nil
		},
	})
	return outbox
}

func orgCmd(open openBackendFunc) *cobra.Command {
	org := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}
	var description string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Register an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			be, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer be.Close()
			req := service.CreateOrganizationRequest{Name: args[0]}
			if description != "" {
				req.Description = &description
			}
			created, err := be.CreateOrganization(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	create.Flags().StringVar(&description, "description", "", "organization description")
	org.AddCommand(create)
	return org
}

func printJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

type containerBackend struct {
	container *app.Container
}

func openContainer(ctx context.Context) (backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	container, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Error("build application failed", zap.Error(err))
		return nil, err
	}
	return &containerBackend{container: container}, nil
}

func (r *containerBackend) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, r.container.DB)
}

func (r *containerBackend) DrainOutbox(ctx context.Context) (int, error) {
	return r.container.Outbox.Drain(ctx)
}

func (r *containerBackend) CreateOrganization(ctx context.Context, req service.CreateOrganizationRequest) (*models.Organization, error) {
	return r.container.Organizations.Create(ctx, req)
}

func (r *containerBackend) Close() {
	_ = r.container.Logger.Sync()
	r.container.Close()
}
