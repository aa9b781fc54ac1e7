package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vogaflex/crm-insights/internal/analytics"
	"github.com/vogaflex/crm-insights/internal/cache"
	"github.com/vogaflex/crm-insights/internal/config"
	"github.com/vogaflex/crm-insights/internal/db"
	"github.com/vogaflex/crm-insights/internal/http/handlers"
	"github.com/vogaflex/crm-insights/internal/metrics"
	"github.com/vogaflex/crm-insights/internal/session"
	"github.com/vogaflex/crm-insights/internal/upstream"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	session *session.Session
	pinger  handlers.Pinger
	closers []func()
}

func newLogger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return log.Level(level).With().Str("service", "crm-insights").Logger()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	metrics.Init()
	a := &app{cfg: cfg, logger: logger}

	loc := cfg.Location()
	var (
		events     session.EventSource
		dashboards session.DashboardSource
	)
	switch cfg.Source {
	case config.SourcePostgres:
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.pinger = store
		events = store
		dashboards = &analytics.Local{
			Source:   store,
			Location: loc,
			Hours:    analytics.BusinessHours{Start: cfg.BusinessHoursStart, End: cfg.BusinessHoursEnd},
		}
		logger.Info().Msg("reading events from postgres")
	default:
		client := &upstream.Client{
			BaseURL: cfg.UpstreamURL,
			Client:  &http.Client{Timeout: cfg.UpstreamTimeout},
		}
		events = client
		dashboards = client
		logger.Info().Str("upstream", cfg.UpstreamURL).Msg("reading events from boundary api")
	}

	var c cache.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c = rc
		logger.Info().Msg("dashboard cache: redis")
	} else {
		c = cache.NewMemory()
	}
	a.closers = append(a.closers, func() { _ = c.Close() })

	a.session = session.New(session.Options{
		Events:            events,
		Dashboards:        dashboards,
		Cache:             c,
		CacheTTL:          cfg.CacheTTL,
		Location:          loc,
		ConversationLimit: cfg.ConversationLimit,
		MessageLimit:      cfg.MessageLimit,
		SearchDebounce:    cfg.SearchDebounce,
		Logger:            logger,
	})
	a.closers = append(a.closers, a.session.Close)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
