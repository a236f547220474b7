package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/salonflow/alexis-engine/internal/api"
	"github.com/salonflow/alexis-engine/internal/booking"
	"github.com/salonflow/alexis-engine/internal/catalog"
	"github.com/salonflow/alexis-engine/internal/config"
	"github.com/salonflow/alexis-engine/internal/dates"
	"github.com/salonflow/alexis-engine/internal/debounce"
	"github.com/salonflow/alexis-engine/internal/engine"
	"github.com/salonflow/alexis-engine/internal/intent"
	"github.com/salonflow/alexis-engine/internal/lexicon"
	"github.com/salonflow/alexis-engine/internal/llm"
	"github.com/salonflow/alexis-engine/internal/observability/metrics"
	"github.com/salonflow/alexis-engine/internal/scheduling"
	"github.com/salonflow/alexis-engine/internal/state"
	"github.com/salonflow/alexis-engine/internal/transcript"
	"github.com/salonflow/alexis-engine/pkg/logging"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting alexis engine", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	stateStore := state.NewRedisStore(redisClient)
	transcripts := transcript.NewStore(pool)
	collector := catalog.NewPostgresCollector(pool)

	lex := lexicon.NewResolver(lexicon.DefaultEntries())
	dateResolver := dates.NewResolver()

	openAI := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout)
	llmLogger := logger.With("component", "llm").Logger
	generator := llm.NewGenerator(llm.NewFallbackClient(openAI, nil, llmLogger), llmLogger)

	booker := booking.NewHTTPBooker(cfg.BookingAPIBaseURL, cfg.BookingAPIToken, logger.With("component", "booking"))
	committer := booking.NewCommitter(stateStore, booker, logger.With("component", "booking"), time.Local)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	turnMetrics := metrics.NewTurnMetrics(registry)

	router := engine.NewRouter(engine.Deps{
		Store:       stateStore,
		Transcripts: transcripts,
		Catalog:     collector,
		Aggregator: debounce.NewAggregator(logger.With("component", "debounce"),
			debounce.WithWindow(cfg.DebounceWindow),
			debounce.WithMaxWait(cfg.DebounceMaxWait),
		),
		Skill:            scheduling.NewSkill(dateResolver, lex),
		Dates:            dateResolver,
		Lexicon:          lex,
		Intents:          intent.NewClassifier(),
		Generator:        generator,
		Committer:        committer,
		Metrics:          turnMetrics,
		Logger:           logger.With("component", "engine"),
		GreetingCooldown: cfg.GreetingCooldown,
	})

	handler := api.New(&api.Config{
		Logger:         logger.With("component", "api"),
		Engine:         router,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
