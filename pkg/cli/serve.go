package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/strategos/pkg/cli/config"
	httpctrl "github.com/secmon-lab/strategos/pkg/controller/http"
	"github.com/secmon-lab/strategos/pkg/service/analyzer"
	"github.com/secmon-lab/strategos/pkg/service/dispatcher"
	"github.com/secmon-lab/strategos/pkg/service/selector"
	"github.com/secmon-lab/strategos/pkg/service/worker"
	"github.com/secmon-lab/strategos/pkg/usecase"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var cleanupInterval time.Duration
	var workflowMaxAge time.Duration
	var activeLimit int
	var historyLimit int
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var catalogCfg config.Catalog
	var sentryCfg config.Sentry

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("STRATEGOS_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "cleanup-interval",
			Usage:       "Interval between expired memory entry sweeps",
			Value:       worker.DefaultCleanupInterval,
			Sources:     cli.EnvVars("STRATEGOS_CLEANUP_INTERVAL"),
			Destination: &cleanupInterval,
		},
		&cli.DurationFlag{
			Name:        "workflow-max-age",
			Usage:       "Active workflows older than this are marked failed",
			Value:       worker.DefaultWorkflowMaxAge,
			Sources:     cli.EnvVars("STRATEGOS_WORKFLOW_MAX_AGE"),
			Destination: &workflowMaxAge,
		},
		&cli.IntFlag{
			Name:        "workflow-active-limit",
			Usage:       "Soft cap on concurrently tracked workflows",
			Value:       usecase.DefaultActiveLimit,
			Sources:     cli.EnvVars("STRATEGOS_WORKFLOW_ACTIVE_LIMIT"),
			Destination: &activeLimit,
		},
		&cli.IntFlag{
			Name:        "workflow-history-limit",
			Usage:       "Number of finished workflows retained in memory",
			Value:       usecase.DefaultHistoryLimit,
			Sources:     cli.EnvVars("STRATEGOS_WORKFLOW_HISTORY_LIMIT"),
			Destination: &historyLimit,
		},
	}

	// Add shared config flags
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, catalogCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			flushSentry, err := sentryCfg.Configure(version)
			if err != nil {
				return goerr.Wrap(err, "failed to configure sentry")
			}
			defer flushSentry()

			// Initialize memory store based on backend type
			store, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize memory store")
			}
			defer func() {
				if err := store.Close(); err != nil {
					logging.Default().Error("failed to close memory store", "error", err.Error())
				}
			}()

			cat, err := catalogCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load strategy catalog")
			}

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Gemini client")
			}

			azOpts := []analyzer.Option{}
			if llmClient != nil {
				azOpts = append(azOpts, analyzer.WithLLMClient(llmClient))
				logging.Default().Info("LLM refinement enabled for content analysis")
			} else {
				logging.Default().Warn("Gemini not configured, analysis runs heuristics only and execution is disabled")
			}

			coordinator := usecase.NewCoordinator(store,
				usecase.WithActiveLimit(activeLimit),
				usecase.WithHistoryLimit(historyLimit),
			)
			uc := usecase.New(
				analyzer.New(azOpts...),
				selector.New(cat, store),
				dispatcher.New(llmClient, store),
				cat,
				store,
				usecase.WithCoordinator(coordinator),
			)

			// Background maintenance workers
			cleanupWorker := worker.NewCleanupWorker(store, cleanupInterval)
			if err := cleanupWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start cleanup worker")
			}
			staleWorker := worker.NewStaleWorkflowWorker(coordinator, workflowMaxAge)
			if err := staleWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start stale workflow worker")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				staleWorker.Stop()
				cleanupWorker.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
