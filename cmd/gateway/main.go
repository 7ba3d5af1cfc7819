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

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/weiawesome/wes-io-live/community-chat/internal/cache"
	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
	"github.com/weiawesome/wes-io-live/community-chat/internal/handler"
	"github.com/weiawesome/wes-io-live/community-chat/internal/hub"
	"github.com/weiawesome/wes-io-live/community-chat/internal/identity"
	"github.com/weiawesome/wes-io-live/community-chat/internal/kafka"
	"github.com/weiawesome/wes-io-live/community-chat/internal/mailer"
	"github.com/weiawesome/wes-io-live/community-chat/internal/notifier"
	"github.com/weiawesome/wes-io-live/community-chat/internal/repository"
	"github.com/weiawesome/wes-io-live/community-chat/internal/service"
	"github.com/weiawesome/wes-io-live/community-chat/internal/tasks"
	pkgconfig "github.com/weiawesome/wes-io-live/community-chat/pkg/config"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

// userDirectory is the directory as both the notifier and the connect
// path use it.
type userDirectory interface {
	notifier.Directory
	service.DirectoryWriter
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		os.Exit(runToken(os.Args[2:]))
	}

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

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	if err := run(cfg); err != nil {
		logger.Fatal().Err(err).Msg("gateway stopped")
	}
}

func run(cfg *config.Config) error {
	logger := pkglog.L()
	ctx := pkglog.WithLogger(context.Background(), logger)

	stores, err := repository.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer stores.Close()
	logger.Info().
		Str("storage", cfg.Storage.Driver).
		Str("database", cfg.Database.Driver).
		Msg("stores ready")

	var directory userDirectory = stores.Users
	var msgCache cache.MessageCache
	if cfg.Redis.Address != "" {
		rdb, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, caching disabled")
		} else {
			defer rdb.Close()
			msgCache = cache.NewRedisMessageCache(rdb, cfg.Cache.Prefix)
			directory = cache.NewCachedDirectory(stores.Users, rdb, cfg.Cache.Prefix, cfg.Cache.UserTTL)
			logger.Info().Str("address", cfg.Redis.Address).Msg("redis cache enabled")
		}
	}

	var sink service.MessageSink = stores.Messages
	if cfg.Persistence.Mode == config.PersistKafka {
		producer, err := kafka.NewConfluentProducer(cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()
		sink = producer
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("persisting through kafka")
	}

	sender, err := mailer.New(cfg.Mail)
	if err != nil {
		return err
	}
	logger.Info().Str("provider", mailer.ResolveProvider(cfg.Mail)).Msg("mailer ready")

	tokens, err := jwt.NewManager(cfg.Auth)
	if err != nil {
		return err
	}
	verifier := identity.NewJWTVerifier(tokens)

	wsHub := hub.NewHub()
	runner := tasks.NewRunner()

	mentions := notifier.New(directory, sender, wsHub, notifier.Config{
		AppURL:       cfg.Mention.AppURL,
		Brand:        cfg.Mention.Brand,
		ExcerptRunes: cfg.Mention.ExcerptRunes,
		MaxParallel:  cfg.Mention.MaxParallel,
	})

	chatSvc := service.NewChatService(wsHub, sink, mentions, directory, runner, service.ChatServiceConfig{
		PersistTimeout: cfg.Persistence.Timeout,
		MentionTimeout: cfg.Mention.Timeout,
	})
	historySvc := service.NewHistoryService(stores.Messages, msgCache, cfg.Cache.HistoryTTL)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(
		logger,
		handler.NewWSHandler(wsHub, chatSvc, verifier, cfg.WebSocket, cfg.CORS.AllowedOrigins),
		handler.NewHTTPHandler(historySvc, stores.Messages, cfg.History),
		identity.VerifyFunc(verifier),
	)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("community chat gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
	}
	wsHub.CloseAll()

	if err := runner.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("detached tasks still running at exit")
	}

	logger.Info().Msg("gateway stopped")
	return nil
}
