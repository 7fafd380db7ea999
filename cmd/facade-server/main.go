package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matchdayhq/facade/pkg/cache"
	"github.com/matchdayhq/facade/pkg/enrich"
	"github.com/matchdayhq/facade/pkg/health"
	"github.com/matchdayhq/facade/pkg/logging"
	"github.com/matchdayhq/facade/pkg/service"
	"github.com/matchdayhq/facade/pkg/upstream"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// Configuration from environment
	port := getEnv("PORT", "8080")
	environment := getEnv("ENVIRONMENT", "development")
	logLevel := getEnv("LOG_LEVEL", "info")
	redisURL := os.Getenv("REDIS_URL")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Pretty: environment == "development",
		Output: os.Stderr,
	})

	upstreamCfg := upstream.Config{
		ScheduleURL:  getEnv("SCHEDULE_API_URL", "https://api.football-data.org/v4/competitions/PL/matches"),
		StandingsURL: getEnv("STANDINGS_API_URL", "https://api.football-data.org/v4/competitions/PL/standings"),
		TeamURLBase:  getEnv("TEAM_API_URL", "https://api.football-data.org/v4/teams"),
		OddsURL:      getEnv("ODDS_API_URL", "https://api.the-odds-api.com/v4/odds"),
		AuthToken:    os.Getenv("FOOTBALL_API_TOKEN"),
		OddsAPIKey:   os.Getenv("ODDS_API_KEY"),
	}
	if upstreamCfg.AuthToken == "" {
		logger.Warn().Msg("FOOTBALL_API_TOKEN not set, schedule and standings requests will fail")
	}

	// Cache backing store: shared Redis when configured, process memory
	// otherwise.
	var store cache.Store
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis_url", redisURL).Msg("Using Redis cache backing store")
		store = cache.NewRedisStore(redisClient, logging.NewLogger("cache"))
	} else {
		logger.Info().Msg("Using in-memory cache backing store")
		store = cache.NewMemoryStore()
	}

	client := upstream.NewClient(upstreamCfg, logging.NewLogger("upstream"))
	enricher := enrich.NewEnricher(client, logging.NewLogger("enrich"))
	svc := service.New(store, client, enricher, logging.NewLogger("service"))
	aggregator := health.NewAggregator(store, client, logging.NewLogger("health"))

	srv := newServer(svc, aggregator, version, environment, logging.NewLogger("http"))

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Shutdown error")
		}
		close(done)
	}()

	logger.Info().
		Str("addr", httpServer.Addr).
		Str("environment", environment).
		Str("version", version).
		Msg("Starting facade server")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	<-done
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
