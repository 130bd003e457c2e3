package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/mrscan/internal/config"
	"github.com/dshills/mrscan/internal/scheduler"
	"github.com/dshills/mrscan/internal/webhook"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 30 * time.Second
)

var (
	flagListen  string
	flagWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Listen for GitLab and GitHub merge request webhooks and review each
opened, reopened or updated merge request after a short delay.

An endpoint is served for each source control with a configured token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		extra := map[string]string{}
		if flagListen != "" {
			extra["server.listenAddr"] = flagListen
		}
		if flagWorkers > 0 {
			extra["server.workers"] = fmt.Sprint(flagWorkers)
		}
		cfg, err := loadConfig(extra)
		if err != nil {
			fail(err)
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := serve(ctx, cfg, newLogger(cfg)); err != nil {
			fail(err)
		}
		return nil
	},
}

// serve runs the webhook server until ctx is done, then drains.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	sched, err := scheduler.New(scheduler.Options{
		Workers:    cfg.Server.Workers,
		MaxPending: cfg.Server.MaxPending,
		Logger:     log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Close(drainTimeout); err != nil {
			log.Warn().Err(err).Msg("scheduler did not drain in time")
		}
	}()

	opts := webhook.Options{
		GitLabSecret: cfg.GitLab.WebhookSecret,
		GitHubSecret: cfg.GitHub.WebhookSecret,
		Logger:       log,
	}
	if cfg.GitLab.Token != "" {
		client, err := newSCMClient(ctx, cfg, scmGitLab, log)
		if err != nil {
			return err
		}
		if opts.GitLab, err = newOrchestrator(cfg, client, sched, log); err != nil {
			return err
		}
	}
	if cfg.GitHub.Token != "" {
		client, err := newSCMClient(ctx, cfg, scmGitHub, log)
		if err != nil {
			return err
		}
		if opts.GitHub, err = newOrchestrator(cfg, client, sched, log); err != nil {
			return err
		}
	}
	if opts.GitLab == nil && opts.GitHub == nil {
		return fmt.Errorf("serve: %w (set GITLAB_TOKEN or GITHUB_TOKEN)", errMissingToken)
	}

	hooks, err := webhook.New(opts)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           hooks.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("gitlab_url", cfg.GitLab.URL).
			Bool("gitlab", opts.GitLab != nil).
			Bool("github", opts.GitHub != nil).
			Bool("review_enabled", cfg.Review.Enabled).
			Msg("mrscan listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func init() {
	addCommonFlags(serveCmd)
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (default from config, :3000)")
	serveCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Concurrent review workers")
}
