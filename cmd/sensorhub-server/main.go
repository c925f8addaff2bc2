package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sensorhub/internal/api"
	"github.com/sensorhub/internal/cache"
	"github.com/sensorhub/internal/config"
	"github.com/sensorhub/internal/ingest"
	"github.com/sensorhub/internal/mqttclient"
	"github.com/sensorhub/internal/store"
	"github.com/sensorhub/internal/stream"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config file (overrides env)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("starting sensorhub", "broker", cfg.BrokerURL, "topic", cfg.Topic, "http", cfg.HTTPAddr)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database config invalid", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st, err := store.NewPostgres(ctx, pool)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}

	var c *cache.Cache
	if cfg.RedisAddr != "" {
		c, err = cache.New(ctx, cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			// The cache is a hot-path convenience; run without it.
			logger.Warn("redis unreachable, latest-reading cache disabled", "error", err)
			c = nil
		} else {
			defer c.Close()
		}
	}

	hub := stream.NewHub(logger)
	go hub.Run()

	mqttc, err := mqttclient.New(mqttclient.Options{
		BrokerURL: cfg.BrokerURL,
		ClientID:  fmt.Sprintf("%s-%d", cfg.ClientID, time.Now().UnixNano()),
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
	})
	if err != nil {
		logger.Error("mqtt connect failed", "error", err)
		os.Exit(1)
	}
	defer mqttc.Close()

	ing := ingest.New(mqttc, st, hub, c, cfg.Topic, logger)
	if err := ing.Start(); err != nil {
		// Logged, not retried: the process stays up to serve the query API.
		logger.Error("topic subscription failed", "topic", cfg.Topic, "error", err)
	}

	srv := api.New(st, hub, c, logger)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := http.ListenAndServe(cfg.HTTPAddr, srv.Routes()); err != nil {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}
