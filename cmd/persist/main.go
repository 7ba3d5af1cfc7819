// Command persist drains the chat message topic into the message store when
// the gateway runs with persistence.mode=kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
	"github.com/weiawesome/wes-io-live/community-chat/internal/kafka"
	"github.com/weiawesome/wes-io-live/community-chat/internal/repository"
	pkgconfig "github.com/weiawesome/wes-io-live/community-chat/pkg/config"
	pkglog "github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

func main() {
	configPath := "config"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	if err := pkgconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	cfg.Log.ServiceName = "community-chat-persist"
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	if err := run(cfg); err != nil {
		logger.Fatal().Err(err).Msg("persist worker stopped")
	}
}

func run(cfg *config.Config) error {
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = pkglog.WithLogger(ctx, logger)

	stores, err := repository.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer stores.Close()

	consumer, err := kafka.NewConsumer(cfg.Kafka, stores.Messages)
	if err != nil {
		return err
	}
	defer consumer.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := stores.Messages.Ping(pingCtx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Persistence.HealthPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           pkglog.HTTPMiddleware(logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("persist health endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("health server error")
		}
	}()

	runErr := consumer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("health server forced to shutdown")
	}

	return runErr
}
