package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/askdoc/internal/cli"
	"github.com/cloo-solutions/askdoc/internal/config"
	"github.com/cloo-solutions/askdoc/internal/database"
	"github.com/cloo-solutions/askdoc/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Start the API server",
		Long:        "Start the askdoc HTTP API for document upload and streamed question answering",
		RunE:        runServe,
		Annotations: map[string]string{cli.EnvAnnotation: "ASKDOC_PORT,ASKDOC_API_KEY,ASKDOC_DATABASE_URL,ASKDOC_VECTOR_BACKEND,ASKDOC_OPENAI_API_KEY,ASKDOC_S3_BUCKET,ASKDOC_SENTRY_DSN"},
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides ASKDOC_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, cleanup, err := Setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate && cfg.VectorBackend == config.VectorBackendPgvector {
		source, _ := cmd.Flags().GetString("migrations")
		if _, err := database.Migrate(cfg.DatabaseURL, source, logger.Named("migrate")); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(*a.RouterConfig()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("collection", cfg.Collection))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
