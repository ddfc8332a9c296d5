package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/migrate"
)

// database is an open connection plus what the commands need to know about it.
type database struct {
	client *db.Client
	sql    *sql.DB
	logg   *logger.Logger
	close  func() error
}

type connectFunc func(ctx context.Context) (*database, error)

type options struct {
	dir      string
	embedded bool
	connect  connectFunc
}

// source is the directory goose reads, the compiled-in set when --embedded.
func (o *options) source() string {
	if o.embedded {
		return migrate.EmbeddedDir
	}
	return o.dir
}

func newRootCommand(connect connectFunc) *cobra.Command {
	opts := &options{connect: connect}
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the ledger database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	cmd.PersistentFlags().BoolVar(&opts.embedded, "embedded", false, "use the migrations compiled into the binary")

	for _, goose := range []struct{ use, short string }{
		{"up", "Apply every pending migration"},
		{"down", "Roll back the latest migration"},
		{"status", "Print applied and pending migrations"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   goose.use,
			Short: goose.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withDatabase(cmd, func(ctx context.Context, d *database) error {
					return migrate.Run(ctx, d.sql, opts.source(), cmd.Name())
				})
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version VERSION",
		Short: "Migrate up or down to VERSION (YYYYMMDDHHMMSS)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDatabase(cmd, func(ctx context.Context, d *database) error {
				return migrate.MigrateToVersion(ctx, d.sql, opts.source(), args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "automigrate",
		Short: "Build the schema from the models (SQLite and throwaway databases)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDatabase(cmd, func(ctx context.Context, d *database) error {
				return migrate.AutoMigrateModels(ctx, d.client)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Write an empty migration into --dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := migrate.CreateSQLMigration(opts.dir, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "created migration:", path)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check migration names and goose sections without a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			validate := func() error { return migrate.ValidateDir(opts.dir) }
			if opts.embedded {
				validate = migrate.ValidateEmbedded
			}
			if err := validate(); err != nil {
				return fmt.Errorf("migration validation failed: %w", err)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "migration validation passed")
			return err
		},
	})
	return cmd
}

// withDatabase runs fn on an open database. SQLite has no goose history, so
// every schema command on it falls back to building from the models.
func (o *options) withDatabase(cmd *cobra.Command, fn func(context.Context, *database) error) error {
	ctx := cmd.Context()
	d, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	ctx = d.logg.WithFields(ctx, map[string]any{"cmd": cmd.Name(), "driver": d.client.Driver()})
	if d.client.Driver() == config.DriverSQLite && cmd.Name() != "automigrate" {
		d.logg.Info(ctx, "sqlite database, building schema from models")
		fn = func(ctx context.Context, d *database) error { return migrate.AutoMigrateModels(ctx, d.client) }
	}
	if err := fn(ctx, d); err != nil {
		d.logg.Error(ctx, "migration command failed", err)
		return err
	}
	d.logg.Info(ctx, "migration command complete")
	return nil
}

func connectDatabase(ctx context.Context) (*database, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("extract sql.DB: %w", err)
	}
	return &database{client: client, sql: sqlDB, logg: logg, close: client.Close}, nil
}
