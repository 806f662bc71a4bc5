package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/user/missoula-scraper/internal/adapter/chromedp_browser"
	"github.com/user/missoula-scraper/internal/adapter/postgres"
	redis_adapter "github.com/user/missoula-scraper/internal/adapter/redis"
	"github.com/user/missoula-scraper/internal/adapter/static_browser"
	"github.com/user/missoula-scraper/internal/delivery/http/handler"
	"github.com/user/missoula-scraper/internal/delivery/http/router"
	"github.com/user/missoula-scraper/internal/repository"
	"github.com/user/missoula-scraper/internal/usecase"
	"github.com/user/missoula-scraper/pkg/config"
	"github.com/user/missoula-scraper/pkg/metrics"
	"go.uber.org/zap"
)

// App holds the wired components shared by the commands.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Scraper  *usecase.MeetingScraper
	Events   usecase.EventService
	Checks   map[string]handler.HealthCheck

	closers []func()
}

// New wires the application. Postgres and Redis are only connected when
// configured; a configured store that cannot be reached is an error.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Checks:   make(map[string]handler.HealthCheck),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	var (
		eventRepo  repository.EventRepository
		failedRepo repository.FailedMeetingRepository
		cache      repository.PlayerCacheRepository
	)

	if cfg.PostgresURL != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		eventRepo = postgres.NewEventRepo(db)
		failedRepo = postgres.NewFailedMeetingRepo(db)
		a.Checks["postgres"] = db.Ping
		logger.Info("PostgreSQL connection pool established")
	}

	if cfg.RedisAddr != "" {
		rdb, err := redis_adapter.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { rdb.Close() })
		cache = redis_adapter.NewPlayerCacheRepo(rdb)
		a.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("Redis connection established")
	}

	launcher, err := NewLauncher(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Scraper = usecase.NewMeetingScraper(launcher, cache, usecase.ScraperConfig{
		CalendarURL:     cfg.CalendarURL,
		VideoBaseURL:    cfg.VideoBaseURL,
		Location:        cfg.Location(),
		WaitTimeout:     cfg.WaitTimeout(),
		ListSettleDelay: cfg.ListSettleDelay(),
		MaxEvents:       cfg.MaxEvents,
		PlayerCacheTTL:  cfg.PlayerCacheTTL(),
		Selectors:       usecase.DefaultSelectors(),
	}, a.Metrics, logger)
	a.Events = usecase.NewEventService(a.Scraper, eventRepo, failedRepo, a.Metrics, logger)

	return a, nil
}

// NewLauncher picks the browser backend named in cfg.
func NewLauncher(cfg *config.Config, logger *zap.Logger) (repository.BrowserLauncher, error) {
	switch cfg.BrowserBackend {
	case config.BackendChromedp:
		return chromedp_browser.NewLauncher(chromedp_browser.Options{
			Headless:        cfg.Headless,
			UserAgent:       cfg.UserAgent,
			PageLoadTimeout: cfg.PageLoadTimeout(),
		}, logger), nil
	case config.BackendStatic:
		client := &http.Client{Timeout: cfg.PageLoadTimeout()}
		return static_browser.NewLauncher(client, cfg.UserAgent), nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q", cfg.BrowserBackend)
	}
}

// HTTPHandler builds the API router.
func (a *App) HTTPHandler() http.Handler {
	h := handler.NewHandler(a.Events, a.Checks, a.Config.Location(), a.Logger)
	return router.New(h, a.Metrics, a.Registry, a.Logger)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
