// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/danielhkuo/topic-polls/cliparse"
	"github.com/danielhkuo/topic-polls/db"
	"github.com/danielhkuo/topic-polls/forum"
	"github.com/danielhkuo/topic-polls/metrics"
	"github.com/danielhkuo/topic-polls/polls"
	"github.com/danielhkuo/topic-polls/router"
	"github.com/danielhkuo/topic-polls/store"
	"github.com/danielhkuo/topic-polls/tracing"
)

func main() {
	var err error

	if err := cliparse.LoadDotEnv(".env"); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Tracing
	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.TraceSampling,
	})
	if err != nil {
		slog.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// Connect to the database
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Form token session
	var session polls.Session
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("redis ping failed", "error", err)
			os.Exit(1)
		}
		session = forum.NewRedisSession(rdb, cfg.FormTokenTTL)
		slog.Info("Form tokens stored in redis")
	} else {
		session = forum.NewMemorySession(cfg.FormTokenTTL)
		slog.Info("Form tokens stored in memory")
	}

	// Moderation log
	var modlog polls.ModerationLog = forum.NewSQLModerationLog(dbConn, cfg.IPHashSalt)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaLog, err := forum.NewKafkaModerationLog(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.IPHashSalt)
		if err != nil {
			slog.Error("kafka producer failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			kafkaLog.Close(ctx)
		}()
		modlog = forum.Fanout{modlog, kafkaLog}
		slog.Info("Moderation log streaming to kafka", "topic", cfg.KafkaTopic)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(dbConn, cfg.DatabaseType))

	svc := polls.NewService(polls.Deps{
		Store:        store.New(dbConn),
		Oracle:       forum.NewSQLOracle(dbConn),
		Session:      session,
		ModLog:       modlog,
		Guests:       polls.NewGuestVoteTracker(cfg.GuestTokenSalt),
		Metrics:      metrics.New(registry),
		StoreRetries: cfg.StoreRetries,
	})

	// Create router
	mux := router.NewRouter(svc, dbConn, registry)

	// Create server
	server := http.Server{
		Handler:           otelhttp.NewHandler(mux, tracing.ServiceName),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
