package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"countrytimeline/internal/catalog"
	"countrytimeline/internal/flags"
	"countrytimeline/internal/platform/config"
	"countrytimeline/internal/platform/metrics"
	platformredis "countrytimeline/internal/platform/redis"
	"countrytimeline/internal/timeline"
)

// app holds the dependencies shared by the CLI and the HTTP server.
type app struct {
	catalog  catalog.Catalog
	flags    *flags.CachedProvider
	renderer *timeline.Renderer
	redis    *platformredis.Client
	metrics  *metrics.Metrics
}

// newApp wires the catalog, the flag caches and the renderer. reg may be nil,
// in which case no metrics are collected.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (*app, error) {
	cat, err := catalog.New(cfg.Catalog.Provider, cfg.Catalog.ReferenceFile)
	if err != nil {
		return nil, fmt.Errorf("error loading country catalog: %w", err)
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	a := &app{catalog: cat, metrics: m}

	// Caches are consulted in order: redis (shared) first, then the local directory
	var caches []flags.Cache
	a.redis, err = platformredis.New(ctx, cfg.Flags.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	if a.redis != nil {
		caches = append(caches, flags.NewRedisCache(a.redis.Client, cfg.Flags.RedisPrefix))
	}
	if cfg.Flags.CacheDir != "" {
		caches = append(caches, flags.NewDiskCache(cfg.Flags.CacheDir))
	}

	var fetcher flags.Fetcher
	if cfg.Flags.Download {
		fetcher = flags.NewHTTPFetcher(cfg.Flags.URLTemplate, cfg.Flags.Timeout)
	}

	a.flags = flags.NewCachedProvider(fetcher, caches, log, m)
	a.renderer = timeline.NewRenderer(a.flags, log, m)

	log.Debug("dependencies ready",
		"countries", len(cat.All()),
		"flag_caches", len(caches),
		"flag_downloads", cfg.Flags.Download,
	)
	return a, nil
}

// Close releases the redis connection, if any.
func (a *app) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
