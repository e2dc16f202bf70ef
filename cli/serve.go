package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cleanscore-server/handlers"
	"cleanscore-server/services"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := connect(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	cfg := b.cfg

	if err := services.EnsureIndexes(ctx, b.db); err != nil {
		return err
	}
	images, err := services.NewGridFSImageStore(b.db)
	if err != nil {
		return fmt.Errorf("gridfs bucket: %w", err)
	}

	index := b.locationIndex()
	locations := services.NewMongoLocationStore(b.db)
	analyzer := services.NewAnalyzer(services.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.VisionModel,
		Timeout:    cfg.AnalyzerTimeout,
		MaxRetries: cfg.AnalyzerMaxRetries,
	})
	if _, disabled := analyzer.(services.DisabledAnalyzer); disabled {
		slog.Warn("OPENAI_API_KEY not set, posts will be stored without a score")
	}

	router := handlers.NewRouter(handlers.Deps{
		Accounts:        services.NewUserService(b.db, b.redis, cfg.JWTSecret, cfg.CacheTTL),
		PostService:     services.NewPostService(services.NewMongoPostStore(b.db), images, analyzer, services.NewAggregator(locations, index), cfg.MaxImageBytes),
		LocationService: services.NewLocationService(locations, index),
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  cfg.AllowedOrigins,
		MaxImageBytes:   cfg.MaxImageBytes,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
