package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-digest/internal/api"
	"github.com/JakeFAU/trending-digest/internal/trending"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates and configures the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the latest report over HTTP",
		Long: `Starts the HTTP API on server.port. Crawls can be triggered with
POST /v1/runs, or scheduled with --crawl-every.`,
		Args: cobra.NoArgs,
		RunE: runServeCommand,
	}
	cmd.Flags().Duration("crawl-every", 0, "crawl on this interval while serving (0 disables)")
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer := api.NewServer(appInstance, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if every, _ := cmd.Flags().GetDuration("crawl-every"); every > 0 {
		go scheduleCrawls(ctx, appInstance, every, logger)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// scheduleCrawls runs a crawl immediately and then on every tick until ctx ends.
func scheduleCrawls(ctx context.Context, appInstance App, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		result, _, err := appInstance.Crawl(ctx)
		switch {
		case errors.Is(err, trending.ErrRunInProgress):
			logger.Info("scheduled crawl skipped, another run is in progress")
		case err != nil:
			logger.Error("scheduled crawl failed", zap.Error(err))
		default:
			logger.Info("scheduled crawl finished",
				zap.String("run_id", result.RunID),
				zap.Int("total_repos", result.Summary.TotalRepos),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
