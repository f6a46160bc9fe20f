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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stundenplan/internal/api"
	"stundenplan/internal/config"
	"stundenplan/internal/database"
	"stundenplan/internal/intranet"
	"stundenplan/internal/metrics"
	"stundenplan/internal/timetable"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load(os.Getenv("STUNDENPLAN_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.Warn().Str("level", cfg.Logging.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientLogger := logger.With().Str("component", "intranet").Logger()
	client := intranet.NewClient(intranet.Options{
		BaseURL:           cfg.Intranet.BaseURL,
		Username:          cfg.Intranet.Username,
		Password:          cfg.Intranet.Password,
		UsernameField:     cfg.Intranet.UsernameField,
		PasswordField:     cfg.Intranet.PasswordField,
		LoginPath:         cfg.Intranet.LoginPath,
		TimetablePath:     cfg.Intranet.TimetablePath,
		SessionCookie:     cfg.Intranet.SessionCookie,
		Timeout:           cfg.IntranetTimeout(),
		RequestsPerSecond: cfg.Intranet.RequestsPerSecond,
	}, &clientLogger)

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, cfg.CacheTTL())
		logger.Info().Str("addr", cfg.Redis.Address).Dur("ttl", cfg.CacheTTL()).Msg("timetable cache enabled")
	}

	fetcher := timetable.NewFetcher(client, cfg.Location(), &clientLogger)

	var (
		db    *database.DB
		store api.SnapshotStore
	)
	if cfg.Database.Path != "" {
		dbLogger := logger.With().Str("component", "database").Logger()
		db, err = database.NewDB(cfg.Database.Path, &dbLogger)
		if err != nil {
			logger.Fatal().Err(err).Msg("open db error")
		}
		defer db.Close()
		store = db

		retention := database.NewSnapshotRetention(db, cfg.Database.SnapshotRetentionDays, &dbLogger)
		go retention.Start(ctx)

		backup := database.NewBackupService(db, cfg.Backup, &dbLogger)
		go backup.Start(ctx)
	}

	apiLogger := logger.With().Str("component", "api").Logger()
	server := api.NewHTTPServer(cfg, fetcher, store, &apiLogger)

	watcher := config.NewRoomsWatcher(cfg.RoomsPath, 30*time.Second)
	watcher.OnUpdate = func(rooms *config.RoomsConfig) {
		server.SetUniverse(rooms.Universe())
		logger.Info().Str("rooms", rooms.String()).Msg("room universe loaded")
	}
	watcher.OnError = func(err error) {
		logger.Error().Err(err).Str("path", cfg.RoomsPath).Msg("failed to reload rooms, keeping previous universe")
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.RoomsPath).Msg("failed to load rooms")
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Str("base_url", cfg.Intranet.BaseURL).Msg("stundenplan started")
	if err := server.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("stundenplan stopped")
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if db != nil {
			if err := db.PingContext(ctxPing); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serve(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "metrics", logger)
}

func serve(ctx context.Context, srv *http.Server, name string, logger *zerolog.Logger) {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
