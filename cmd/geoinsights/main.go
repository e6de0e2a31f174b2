package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cache/parsecache"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cache/redisstore"
	h3cluster "github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cluster/h3"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/config"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/health"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/router"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/server"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/datasets"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/events/kafka"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/ingest"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/logger"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/metrics"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/session"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "geoinsights",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting geoinsights",
		"addr", cfg.Addr,
		"version", Version,
		"datasets", cfg.DatasetsEnabled,
		"events", cfg.Events.Enabled,
		"csv_mode", cfg.CSVMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsHandler http.Handler
	var prov *metrics.Provider
	if cfg.MetricsEnabled {
		prov = metrics.Init(metrics.Config{
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		metricsHandler = prov.Handler()
	}

	mode := ingest.CSVSimple
	if cfg.CSVMode == config.CSVModeRFC4180 {
		mode = ingest.CSVQuoted
	}
	cache := parsecache.New(cfg.ParseCacheSize)
	parser := cache.Wrap(ingest.New(ingest.Options{CSVMode: mode}), cfg.CSVMode)

	cl, err := h3cluster.New(cfg.ClusterResMin, cfg.ClusterResMax)
	if err != nil {
		appLog.Error("cluster setup failed", "err", err)
		return 1
	}

	ready := map[string]health.Check{}
	deps := router.Deps{
		Logger:         appLog,
		Sessions:       session.NewRegistry(cfg.SessionMax),
		Parser:         parser,
		ParseCache:     cache,
		Clusterer:      cl,
		Policy:         cfg.CategoryPolicy,
		MaxUploadBytes: cfg.MaxUploadBytes,
		OpTimeout:      cfg.CacheOpTimeout,
	}

	evCfg := kafka.Config{
		Enabled: cfg.Events.Enabled,
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
		GroupID: cfg.Events.GroupID,
		Source:  hostname(),
	}

	if cfg.DatasetsEnabled {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		ready["redis"] = health.PingCheck(rc)

		opts := datasets.Options{Prefix: cfg.DatasetKeyPrefix, Logger: appLog}
		if evCfg.Enabled {
			pub, err := kafka.NewPublisher(evCfg, appLog)
			if err != nil {
				appLog.Error("kafka publisher setup failed", "err", err)
				return 1
			}
			defer func() { _ = pub.Close() }()
			opts.Publisher = pub
		}
		deps.Datasets = datasets.New(rc, opts)
	}

	if evCfg.Enabled {
		kopts := kafka.Options{Logger: appLog}
		if prov != nil {
			kopts.Register = prov.Registerer()
		}
		runner := kafka.NewRunner(evCfg, cache, kopts)
		if err := runner.Start(ctx); err != nil {
			appLog.Error("kafka consumer start failed", "err", err)
			return 1
		}
		defer runner.Stop()
		ready["kafka"] = health.PartitionCheck(runner)
	}

	h := server.Handler(appLog, router.New(deps), metricsHandler, ready)
	if err := server.Run(ctx, cfg, appLog, h); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "geoinsights"
	}
	return h
}
