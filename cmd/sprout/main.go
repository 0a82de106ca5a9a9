package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/vikiysara/sprout-backend/config"
	"github.com/vikiysara/sprout-backend/internal/api"
	"github.com/vikiysara/sprout-backend/internal/auth"
	"github.com/vikiysara/sprout-backend/internal/plant"
	"github.com/vikiysara/sprout-backend/internal/provider/gemini"
	"github.com/vikiysara/sprout-backend/internal/router"
	"github.com/vikiysara/sprout-backend/internal/seeder"
	"github.com/vikiysara/sprout-backend/internal/sensor"
	"github.com/vikiysara/sprout-backend/internal/telemetry"
	"github.com/vikiysara/sprout-backend/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("sprout", cfg.OTELExporterType, cfg.OTELExporterEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}
	log.Println("PostgreSQL connected")

	// 4. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}
	log.Println("Redis connected")

	// 5. Init stores
	authStore := auth.NewPostgresStore(pool)
	sensorStore := sensor.NewPostgresStore(pool)
	plantStore := plant.NewPostgresStore(pool, rdb)

	// 6. Init auth + rate limiter
	authMiddleware := auth.NewMiddleware(authStore, rdb)
	limiter := ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitRPM)

	// 7. Init generation router over the Gemini backend
	backend := gemini.New(cfg.GeminiAPIKey)
	rt := router.New(backend, router.Config{
		Tiers:       cfg.ModelTiers,
		MaxRetries:  cfg.MaxRetries,
		Timeout:     cfg.RequestTimeout,
		BackoffBase: cfg.BackoffBase,
	})

	// 8. Start the sensor ingest worker
	ingest := sensor.NewQueue(sensorStore, 256)
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		ingest.Process(workerCtx)
		close(workerDone)
	}()

	// 9. Init handler
	tracer := otel.GetTracerProvider().Tracer("sprout")
	handler := api.NewHandler(rt, sensorStore, ingest, plantStore, limiter, tracer)

	// 10. Seed dev data if RUN_SEED=true
	if os.Getenv("RUN_SEED") == "true" {
		seeder.SeedTestDeviceKey(ctx, authStore)
		seeder.SeedDefaultProfile(ctx, plantStore)
	}

	// 11. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"sprout"}`))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/v1/sensors", handler.HandleUpdateSensors)
		r.Post("/v1/chat", handler.HandleChat)
		r.Get("/v1/analytics/week", handler.HandleWeeklyAnalytics)
		r.Post("/v1/plant/care-profile", handler.HandleCareProfile)
		r.Get("/v1/plant/profile", handler.HandleGetProfile)
		r.Put("/v1/plant/profile", handler.HandleSaveProfile)
	})

	// 12. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Sprout backend starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	// Flush buffered sensor readings before exit.
	stopWorker()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Println("ingest worker did not drain in time")
	}

	log.Println("Server stopped")
}
