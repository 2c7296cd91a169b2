package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"enrich-relay/internal/clay"
	"enrich-relay/internal/common/logging"
	"enrich-relay/internal/config"
	"enrich-relay/internal/correlation"
	"enrich-relay/internal/dispatcher"
	"enrich-relay/internal/handlers"
	"enrich-relay/internal/middleware"
	"enrich-relay/internal/ratelimit"
	rediscli "enrich-relay/internal/redis"
	"enrich-relay/internal/resolver"
	"enrich-relay/internal/server"
	slackcli "enrich-relay/internal/slack"
	"enrich-relay/internal/trigger"
)

func main() {
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", err)
		os.Exit(1)
	}

	// Shared Redis connection for redis-backed store and limiter.
	var rdb *goredis.Client
	if cfg.NeedsRedis() {
		client, err := rediscli.NewClient(&rediscli.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			logger.Error("failed to connect to redis", err)
			os.Exit(1)
		}
		defer client.Close()
		rdb = client
	}

	store, closeStore, err := buildStore(cfg, rdb)
	if err != nil {
		logger.Error("failed to initialize correlation store", err)
		os.Exit(1)
	}
	if closeStore != nil {
		defer closeStore()
	}

	limiter := buildLimiter(cfg, rdb, logger)

	chat := slackcli.New(cfg.SlackBotToken)
	enricher := clay.New(clay.Config{
		WebhookURL: cfg.ClayWebhookURL,
		APIBase:    cfg.ClayAPIBase,
		APIKey:     cfg.ClayAPIKey,
	}, logger)

	disp := dispatcher.New(dispatcher.Config{
		AllowedChannel: cfg.AllowedChannel,
		CallbackURL:    cfg.CallbackURL(),
		CallbackToken:  cfg.BotCallbackSecret,
		RateLimit:      cfg.RateLimitPerWindow,
		RateWindow:     cfg.RateLimitWindow,
	}, trigger.NewDetector(cfg.EnrichKeyword), limiter, store, chat, enricher, logger)

	res := resolver.New(cfg.BotCallbackSecret, store, chat, true, logger)

	h := handlers.New(cfg.SlackSigningSecret, disp, res, logger)

	router := mux.NewRouter()
	router.HandleFunc(cfg.SlackEventsPath, h.SlackEvents).Methods("POST")
	router.HandleFunc(cfg.CallbackPath, h.ClayCallback).Methods("POST")
	router.HandleFunc("/healthz", h.Health).Methods("GET")

	// Periodic sweep of idle rate-limit windows, once per window.
	maintenance := cron.New()
	maintenance.Schedule(cron.Every(cfg.RateLimitWindow), cron.FuncJob(limiter.Sweep))
	maintenance.Start()

	srv := server.New(middleware.LoggingMiddleware(router), cfg.Port, cfg.TLSCert, cfg.TLSKey)
	srv.Start()
	logger.Info("enrichment relay started",
		logging.String("port", cfg.Port),
		logging.String("events_path", cfg.SlackEventsPath),
		logging.String("callback_path", cfg.CallbackPath))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	maintenance.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", err)
		os.Exit(1)
	}
}

// buildStore selects the correlation store backend.
func buildStore(cfg *config.Config, rdb *goredis.Client) (correlation.Store, func() error, error) {
	switch cfg.CorrelationBackend {
	case config.BackendRedis:
		return correlation.NewRedisStore(rdb), nil, nil
	case config.BackendSQLite:
		store, err := correlation.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return correlation.NewMemoryStore(), nil, nil
	}
}

// buildLimiter selects the rate limiter backend.
func buildLimiter(cfg *config.Config, rdb *goredis.Client, logger logging.Logger) ratelimit.Limiter {
	if cfg.RateLimitBackend == config.LimiterRedis {
		return ratelimit.NewRedis(rdb, cfg.RateLimitPerWindow, cfg.RateLimitWindow, logger)
	}
	return ratelimit.NewLocal(cfg.RateLimitPerWindow, cfg.RateLimitWindow)
}
