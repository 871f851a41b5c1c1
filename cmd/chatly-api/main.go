package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chatly-hq/chatly/internal/api"
	"github.com/chatly-hq/chatly/internal/audit"
	"github.com/chatly-hq/chatly/internal/authz"
	"github.com/chatly-hq/chatly/internal/bot"
	"github.com/chatly-hq/chatly/internal/channels"
	"github.com/chatly-hq/chatly/internal/common/config"
	"github.com/chatly-hq/chatly/internal/common/logging"
	"github.com/chatly-hq/chatly/internal/events"
	"github.com/chatly-hq/chatly/internal/gateway"
	"github.com/chatly-hq/chatly/internal/infra"
	"github.com/chatly-hq/chatly/internal/infra/cache"
	"github.com/chatly-hq/chatly/internal/infra/db"
	"github.com/chatly-hq/chatly/internal/infra/migrations"
	"github.com/chatly-hq/chatly/internal/membership"
	"github.com/chatly-hq/chatly/internal/messages"
	"github.com/chatly-hq/chatly/internal/notifications"
	"github.com/chatly-hq/chatly/internal/observability"
	"github.com/chatly-hq/chatly/internal/polls"
	"github.com/chatly-hq/chatly/internal/ratelimit"
	"github.com/chatly-hq/chatly/internal/reactions"
	"github.com/chatly-hq/chatly/internal/unread"
	"github.com/chatly-hq/chatly/internal/users"
	"github.com/chatly-hq/chatly/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting chatly-api",
		zap.String("version", version.Full()),
		zap.Int("port", cfg.Server.Port),
	)

	database, err := db.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := migrations.Run(ctx, database.Pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations applied")

	poolMonitor := db.NewPoolMonitor(database.Pool, logger, time.Minute)
	poolMonitor.Start(ctx)
	defer poolMonitor.Stop()

	var cacheClient *cache.Cache
	if cfg.Redis.Enabled {
		cacheClient, err = cache.New(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			logger.Warn("failed to connect to redis, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer func() {
				if err := cacheClient.Close(); err != nil {
					logger.Error("failed to close cache", zap.Error(err))
				}
			}()
			logger.Info("connected to redis")
		}
	}

	metrics := observability.NewMetrics(logger)

	healthChecker := observability.NewHealthChecker(logger, version.String())
	healthChecker.RegisterCheck("database", database.Health)
	if cacheClient != nil {
		healthChecker.RegisterCheck("redis", cacheClient.Ping)
	}

	hub := events.NewHub(logger)
	hub.SetMetrics(metrics)

	ids := infra.NewSnowflakeGenerator(int64(cfg.Server.WorkerID))
	auditLog := audit.NewLogger(logger)

	userRepo := users.NewRepository(database.Pool)
	userCache := users.NewListCache(userRepo)
	userSvc := users.NewService(userRepo, userCache, logger)

	var channelRepo *channels.Repository
	var memberRepo *membership.Repository
	if cacheClient != nil {
		channelRepo = channels.NewRepositoryWithCache(database.Pool, cacheClient)
		memberRepo = membership.NewRepositoryWithCache(database.Pool, cacheClient)
	} else {
		channelRepo = channels.NewRepository(database.Pool)
		memberRepo = membership.NewRepository(database.Pool)
	}
	messageRepo := messages.NewRepository(database.Pool, ids)
	reactionRepo := reactions.NewRepository(database.Pool)
	pollRepo := polls.NewRepository(database.Pool)
	unreadRepo := unread.NewRepository(database.Pool)
	botRepo := bot.NewRepository(database.Pool)

	var topicReg membership.TopicRegistry
	var push *notifications.PushSender
	var topics *notifications.Topics
	if cacheClient != nil {
		topics = notifications.NewTopics(cacheClient.Client())
		topicReg = topics
		push = notifications.NewPushSender(cacheClient.Client(), cfg.Push, metrics, logger)
	} else {
		logger.Warn("redis unavailable, push notifications disabled")
	}

	memberSvc := membership.NewService(memberRepo, channelRepo, hub, topicReg, auditLog, logger)

	var notifier messages.Notifier
	if topics != nil {
		notifier = notifications.NewDispatcher(topics, push, memberSvc, userSvc, logger)
	}

	authzSvc := authz.NewService(channelRepo, memberRepo)
	channelSvc := channels.NewService(channelRepo, memberSvc, logger)
	pollSvc := polls.NewService(pollRepo, logger)
	reactionSvc := reactions.NewService(reactionRepo, database.Pool, authzSvc, hub, logger)
	messageSvc := messages.NewService(messageRepo, channelRepo, memberSvc, authzSvc, pollRepo, hub, notifier, auditLog, logger)
	unreadSvc := unread.NewService(unreadRepo)
	botSvc := bot.NewService(botRepo, memberSvc, channelSvc, messageSvc, messageRepo, auditLog, logger)

	limiter := ratelimit.NewLimiter(cacheClient, cfg.RateLimit.MessagesPerMinute, cfg.RateLimit.Burst, cfg.RateLimit.Enabled)
	defer limiter.Stop()
	messageSvc.SetRateLimiter(limiter)

	gw := gateway.New(hub, authzSvc, metrics, logger)

	router := api.NewRouter(api.Handlers{
		Channels: api.NewChannelHandler(channelSvc, memberSvc, unreadSvc),
		Messages: api.NewMessageHandler(messageSvc, reactionSvc),
		Polls:    api.NewPollHandler(pollSvc),
		Push:     api.NewPushHandler(push),
		Bots:     api.NewBotHandler(botSvc),
		Gateway:  gw,
	}, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 3)

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := healthChecker.Start(ctx, cfg.Server.HealthPort); err != nil {
			errChan <- fmt.Errorf("health server: %w", err)
		}
	}()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Start(ctx, cfg.Metrics.Port); err != nil {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown failed", zap.Error(err))
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Error("hub shutdown failed", zap.Error(err))
	}
	cancel()

	logger.Info("shutdown complete")
	return nil
}
