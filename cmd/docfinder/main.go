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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docfinder/internal/config"
	dbPostgres "github.com/kailas-cloud/docfinder/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/docfinder/internal/db/redis"
	logpkg "github.com/kailas-cloud/docfinder/internal/logger"
	"github.com/kailas-cloud/docfinder/internal/metrics"
	catalogrepo "github.com/kailas-cloud/docfinder/internal/repository/catalog"
	"github.com/kailas-cloud/docfinder/internal/repository/geocache"
	sessionrepo "github.com/kailas-cloud/docfinder/internal/repository/session"
	chiTransport "github.com/kailas-cloud/docfinder/internal/transport/chi"
	openaiChat "github.com/kailas-cloud/docfinder/internal/transport/openai"
	"github.com/kailas-cloud/docfinder/internal/transport/telegram"
	"github.com/kailas-cloud/docfinder/internal/transport/yandex"
	"github.com/kailas-cloud/docfinder/internal/usecase/assistant"
	healthuc "github.com/kailas-cloud/docfinder/internal/usecase/health"
	searchuc "github.com/kailas-cloud/docfinder/internal/usecase/search"
	"github.com/kailas-cloud/docfinder/internal/version"
)

// sessionStore is what the orchestrator and the health check need from a session backend.
type sessionStore interface {
	searchuc.SessionStore
	healthuc.Pinger
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docfinder",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("session_driver", cfg.Session.Driver),
		zap.Bool("oracle", cfg.Oracle.Enabled()),
		zap.Bool("geo", cfg.Geo.Enabled()),
		zap.Bool("telegram", cfg.Telegram.Enabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("docfinder stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("docfinder stopped gracefully")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	metrics.RegisterAssistantMetrics()
	metrics.RegisterHTTPMetrics()

	// Catalog
	conn, err := dbPostgres.Open(dbPostgres.Config{DSN: cfg.Catalog.DSN, MaxOpenConns: cfg.Catalog.MaxOpenConns})
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := dbPostgres.WaitForReady(ctx, conn, time.Duration(cfg.Catalog.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("catalog not ready: %w", err)
	}
	if cfg.Catalog.Migrate {
		if err := dbPostgres.Migrate(ctx, conn); err != nil {
			return fmt.Errorf("catalog migrate: %w", err)
		}
	}
	logger.Info("Connected to catalog")
	catalog := catalogrepo.New(conn)

	// Sessions
	sessions, closeSessions, err := buildSessionStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeSessions()
	logger.Info("Session store ready", zap.String("driver", cfg.Session.Driver))

	// Oracle: a nil chatter leaves AI search disabled.
	var (
		chat        assistant.Chatter
		oracleCheck healthuc.OracleChecker
	)
	if cfg.Oracle.Enabled() {
		client := openaiChat.NewClient(&openaiChat.Config{
			APIKey:      cfg.Oracle.APIKey,
			BaseURL:     cfg.Oracle.BaseURL,
			Model:       cfg.Oracle.Model,
			Temperature: cfg.Oracle.Temperature,
			RatePerSec:  cfg.Oracle.RatePerSec,
			Burst:       cfg.Oracle.Burst,
			Logger:      logger,
		})
		chat, oracleCheck = client, client
	}
	oracle := assistant.New(chat, assistant.Config{
		City:               cfg.Assistant.City,
		Timeout:            cfg.Oracle.Timeout(),
		MaxPromptHospitals: cfg.Oracle.MaxPromptHospitals,
		RecommendDoctors:   cfg.Oracle.RecommendDoctors,
	}, logger)

	// Geo: nil interfaces, not typed nil pointers, when disabled.
	var (
		geocoder searchuc.Geocoder
		maps     searchuc.MapRenderer
	)
	if cfg.Geo.Enabled() {
		yc := yandex.NewClient(&yandex.Config{
			APIKey:      cfg.Geo.APIKey,
			GeocodeURL:  cfg.Geo.GeocodeURL,
			StaticURL:   cfg.Geo.StaticURL,
			MapsBaseURL: cfg.Geo.MapsBaseURL,
			Timeout:     time.Duration(cfg.Geo.TimeoutSec) * time.Second,
			MapWidth:    cfg.Geo.MapWidth,
			MapHeight:   cfg.Geo.MapHeight,
			MapZoom:     cfg.Geo.MapZoom,
			Logger:      logger,
		})
		cached, err := geocache.New(yc, cfg.Geo.CacheSize, metrics.GeocodeCacheTotal)
		if err != nil {
			return fmt.Errorf("geocode cache: %w", err)
		}
		geocoder, maps = cached, yc
	}

	searchSvc := searchuc.New(catalog, oracle, sessions, geocoder, maps, searchuc.Config{
		City:                    cfg.Assistant.City,
		CityTokens:              cfg.Assistant.CityTokens,
		FetchLimit:              cfg.Catalog.FetchLimit,
		PageSize:                cfg.Catalog.PageSize,
		ReviewsShown:            cfg.Catalog.ReviewsShown,
		HistoryTurns:            cfg.Oracle.HistoryTurns,
		TrustUnvalidatedMatches: cfg.Assistant.TrustUnvalidatedMatches,
	})
	healthSvc := healthuc.New(sessions, catalog, oracleCheck)

	// Channels
	server := chiTransport.NewServer(searchSvc, healthSvc, logger)
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.HTTP.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if cfg.Telegram.Enabled() {
		bot, err := telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: time.Duration(cfg.Telegram.PollTimeoutSec) * time.Second,
			Debug:       cfg.Telegram.Debug,
		}, searchSvc, logger)
		if err != nil {
			stopErr := srv.Close()
			return errors.Join(err, stopErr)
		}
		g.Go(func() error { return bot.Run(gctx) })
	}

	return g.Wait() //nolint:wrapcheck // errors are wrapped by each goroutine
}

// buildSessionStore picks the session backend. The returned func releases it.
func buildSessionStore(ctx context.Context, cfg config.SessionConfig) (sessionStore, func(), error) {
	switch cfg.Driver {
	case "redis", "valkey":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("session store: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("session store not ready: %w", err)
		}
		return sessionrepo.New(store, cfg.KeyPrefix, cfg.TTL()), store.Close, nil
	default:
		mem := sessionrepo.NewMemoryStore(cfg.MemoryCapacity, cfg.TTL())
		return sessionrepo.New(mem, cfg.KeyPrefix, cfg.TTL()), func() {}, nil
	}
}
