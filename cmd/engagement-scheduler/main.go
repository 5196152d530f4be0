// cmd/engagement-scheduler/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"engagement-scheduler/internal/backoffice"
	"engagement-scheduler/internal/catalog"
	"engagement-scheduler/internal/common/config"
	"engagement-scheduler/internal/common/database"
	commonhttp "engagement-scheduler/internal/common/http"
	"engagement-scheduler/internal/common/logger"
	"engagement-scheduler/internal/common/observability"
	"engagement-scheduler/internal/engagement"
	"engagement-scheduler/internal/engagement/budget"
	"engagement-scheduler/internal/engagement/generator"
	"engagement-scheduler/internal/engagement/logsink"
	"engagement-scheduler/internal/geo"
)

// refreshInterval is how often the session snapshot (settings, types,
// names, catalog) is re-fetched while the scheduler runs.
const refreshInterval = 5 * time.Minute

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting engagement scheduler...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("engagement-scheduler")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Build the session pipeline ---
	sessionID := uuid.New().String()

	geoResolver := geo.NewResolver(geo.Config{
		LookupURL:     cfg.Geo.LookupURL,
		RegistryURL:   cfg.Geo.RegistryURL,
		CitySearchURL: cfg.Geo.CitySearchURL,
		DefaultCity:   cfg.Geo.DefaultCity,
		Timeout:       config.GetDuration(cfg.Geo.Timeout),
	}, commonhttp.NewClient(config.GetDuration(cfg.Geo.Timeout)), log)

	backofficeClient := backoffice.NewClient(
		cfg.BackOffice.BaseURL,
		commonhttp.NewClient(config.GetDuration(cfg.BackOffice.Timeout)),
		log,
	)

	catalogStore := catalog.NewStore(pg.DB, log)

	budgetStore := budget.NewRedisStore(
		redisClient.GetClient(),
		time.Duration(cfg.Engagement.SessionTTLHours)*time.Hour,
	)
	tracker := budget.NewTracker(budgetStore, sessionID, log)

	gen := generator.New(generator.Options{
		Counters:    catalogStore,
		Geo:         geoResolver,
		DefaultName: cfg.Engagement.DefaultName,
		Logger:      log,
	})

	sink := logsink.New(esClient.Client, cfg.Database.Elasticsearch.LogIndex, geoResolver, log)

	runtime := engagement.NewRuntime(engagement.RuntimeOptions{
		SessionID:     sessionID,
		Backoffice:    backofficeClient,
		Catalog:       catalogStore,
		Budget:        tracker,
		Generator:     gen,
		Display:       engagement.NewLogDisplay(log),
		Sink:          sink,
		Logger:        log,
		Observability: obs,
		Dwell:         config.GetDuration(cfg.Engagement.DwellMs),
	})

	runtime.Bootstrap(ctx)
	if err := runtime.Start(); err != nil {
		zapLog.Fatal("scheduler start failed", zap.Error(err))
	}
	zapLog.Info("Engagement scheduler started", zap.String("sessionId", sessionID))

	// --- Periodic snapshot refresh ---
	refreshDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshDone:
				return
			case <-ticker.C:
				runtime.Refresh(ctx)
			}
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := http.ListenAndServe(cfg.App.MetricsAddr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping scheduler...")
	close(refreshDone)
	runtime.Stop()

	zapLog.Info("Engagement scheduler stopped gracefully")
}
