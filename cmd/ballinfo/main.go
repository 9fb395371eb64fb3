package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/cache"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/config"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/handlers"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/hub"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/simulator"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mongo is the system of record; refuse to start without it
	mongoCtx, mongoCancel := context.WithTimeout(ctx, 10*time.Second)
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err == nil {
		err = mongoClient.Ping(mongoCtx, nil)
	}
	mongoCancel()
	if err != nil {
		logger.Fatal("mongodb connection failed", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())
	logger.Info("connected to mongodb", zap.String("database", cfg.Mongo.Database))

	matches := store.NewMongoStore(mongoClient.Database(cfg.Mongo.Database), logger)
	if err := matches.EnsureIndexes(ctx); err != nil {
		logger.Warn("index creation failed", zap.Error(err))
	}

	// Redis only caches snapshots; run without it when it's down
	var snapshots *cache.SnapshotCache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
		redisClient.Close()
		redisClient = nil
	} else {
		snapshots = cache.NewSnapshotCache(redisClient)
		defer redisClient.Close()
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	var snapshotWriter hub.SnapshotWriter
	var snapshotReader handlers.SnapshotReader
	if snapshots != nil {
		snapshotWriter = snapshots
		snapshotReader = snapshots
	}

	h := hub.New(matches, snapshotWriter, logger)
	go h.Run(ctx)

	if cfg.Simulator.Enabled {
		sim := simulator.New(matches, h, cfg.Simulator, logger)
		go sim.Run(ctx)
	} else {
		logger.Info("periodic match updates disabled")
	}

	handler := handlers.New(ctx, h, matches, snapshotReader, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Auth"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handler.HandleHealth)
	r.Get("/metrics", handler.HandleMetrics)
	r.Get("/ws", handler.HandleWebSocket)

	r.Route("/api/matches", func(r chi.Router) {
		r.Get("/live", handler.HandleLiveMatches)
		r.Get("/previous", handler.HandlePreviousMatches)
		r.Get("/{matchID}", handler.HandleGetMatch)

		r.Group(func(r chi.Router) {
			r.Use(handlers.AdminOnly)
			r.Post("/{matchID}/update", handler.HandleUpdateMatch)
			r.Post("/{matchID}/events", handler.HandleAddMatchEvent)
		})
	})

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
