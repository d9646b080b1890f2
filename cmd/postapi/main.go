// Package main is the entry point for the posts API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "postapi/cmd/postapi/docs"
	"postapi/config"
	"postapi/internal/app"
	"postapi/internal/logging"
	"postapi/internal/post"
	"postapi/internal/post/posttest"
	"postapi/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "postapi",
		Short:        "CRUD HTTP API for short posts",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := logging.New(cmd.OutOrStdout(), logging.Options{
				Format: loaded.Log.Format,
				Level:  loaded.Log.Level,
			})
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			cfg = loaded
			return nil
		},
	}
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), cfg)
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	var count int
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fixture posts into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			return runSeed(cmd.Context(), cfg, count)
		},
	}
	seedCmd.Flags().IntVarP(&count, "count", "n", 10, "number of posts to insert")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}

	root.AddCommand(serveCmd, seedCmd, versionCmd)
	return root
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	slog.Info("starting postapi",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	application, err := app.New(ctx, app.Config{AppConfig: cfg})
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start(":" + cfg.Server.Port)
	}()

	var startErr error
	select {
	case startErr = <-errCh:
	case <-ctx.Done():
		slog.Info("received shutdown signal")
	}

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		if startErr == nil {
			return err
		}
	}
	if startErr != nil {
		slog.Error("server error", "error", startErr)
	}
	return startErr
}

func runSeed(ctx context.Context, cfg *config.Config, n int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := post.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Close(); err != nil {
			slog.Error("post store close error", "error", err)
		}
	}()

	posts, err := posttest.Seed(ctx, result.Store, n)
	if err != nil {
		return err
	}
	total, err := post.NewService(result.Store).Count(ctx)
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}
	slog.Info("seeded posts",
		"inserted", len(posts),
		"first_id", posts[0].ID,
		"last_id", posts[len(posts)-1].ID,
		"total", total,
		"storage", cfg.Storage.Type,
	)
	return nil
}
