package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/portfolio/internal/auth"
	"github.com/evcraddock/portfolio/internal/comment"
	"github.com/evcraddock/portfolio/internal/email"
	"github.com/evcraddock/portfolio/internal/logging"
	"github.com/evcraddock/portfolio/internal/web"
)

const cleanupInterval = 10 * time.Minute

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the comment server",
		Long: "Serve the comment API and web pages. Settings come from PF_* environment " +
			"variables; comments are stored in PostgreSQL when PF_DATABASE_URL is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")

	return cmd
}

func runServe(ctx context.Context, port int) error {
	cfg := auth.ConfigFromEnv()
	logging.Setup(cfg.DevMode)

	if cfg.AdminEmail == "" {
		slog.Warn("PF_ADMIN_EMAIL is not set; only authors can delete comments")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	opts, closeStore, err := serverOptions(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	srv, err := web.NewServer(database, cfg, opts...)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	addr := fmt.Sprintf(":%d", port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})
	g.Go(func() error {
		return cleanupLoop(gctx, srv, cleanupInterval)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// serverOptions picks the comment store and notifier for cfg. The returned
// func releases the store.
func serverOptions(ctx context.Context, cfg auth.Config) ([]web.Option, func(), error) {
	var opts []web.Option
	closeStore := func() {}

	if cfg.DatabaseURL != "" {
		repo, err := comment.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("storing comments in postgres")
		opts = append(opts, web.WithCommentStore(repo))
		closeStore = repo.Close
	}

	notifier := email.NewNotifier(cfg.SMTP(), cfg.NotifyEmail, cfg.BaseURL, nil)
	if notifier.Enabled() {
		slog.Info("comment notifications enabled", "to", cfg.NotifyEmail)
		opts = append(opts, web.WithNotifier(notifier))
	}

	return opts, closeStore, nil
}

// cleaner drops expired sessions, tokens and rate limiter entries.
type cleaner interface {
	Cleanup(ctx context.Context) error
}

// cleanupLoop runs c.Cleanup every interval until ctx is done.
func cleanupLoop(ctx context.Context, c cleaner, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Cleanup(ctx); err != nil {
				slog.Warn("cleanup failed", "err", err)
			}
		}
	}
}
