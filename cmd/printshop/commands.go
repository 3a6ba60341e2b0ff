package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/egannguyen/instaprint/internal/app"
	"github.com/egannguyen/instaprint/internal/config"
	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "printshop",
		Short:         "InstaPrint print shop order backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/default.yaml", "path to the YAML config file")

	root.AddCommand(
		newAPICmd(opts),
		newRelayCmd(opts),
		newWatchCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// withRuntime loads config, builds the runtime and closes it after fn.
func withRuntime(ctx context.Context, opts *options, fn func(ctx context.Context, rt *app.Runtime) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)

	rt, err := app.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to close runtime", "err", err)
		}
	}()
	return fn(ctx, rt)
}

func newAPICmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the HTTP API, the email function and operator sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, rt *app.Runtime) error {
				return rt.RunAPI(ctx)
			})
		},
	}
}

func newRelayCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Forward print_jobs changes from Postgres to Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, rt *app.Runtime) error {
				return rt.RunRelay(ctx)
			})
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	var operatorID, shopID, filter string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open a live order console for a shop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := entity.ParseOrderFilter(filter)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, rt *app.Runtime) error {
				return rt.Watch(ctx, nil, cmd.OutOrStdout(), operatorID, shopID, f)
			})
		},
	}
	cmd.Flags().StringVar(&operatorID, "operator", "", "operator (shop owner) id")
	cmd.Flags().StringVar(&shopID, "shop", "", "shop id, required when the operator owns several")
	cmd.Flags().StringVar(&filter, "filter", "pending", "pending, completed or all")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			app.NewLogger(cfg)

			db, err := app.OpenDB(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer db.Close()
			slog.Info("Database schema is up to date")
			return nil
		},
	}
}
