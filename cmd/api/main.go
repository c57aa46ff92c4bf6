package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/turfconnect/slot-reservations/internal/adapters/mongo"
	"github.com/turfconnect/slot-reservations/internal/adapters/postgres"
	redisadapter "github.com/turfconnect/slot-reservations/internal/adapters/redis"
	"github.com/turfconnect/slot-reservations/internal/config"
	"github.com/turfconnect/slot-reservations/internal/generator"
	httphandler "github.com/turfconnect/slot-reservations/internal/http"
	"github.com/turfconnect/slot-reservations/internal/idempotency"
	"github.com/turfconnect/slot-reservations/internal/observability"
	"github.com/turfconnect/slot-reservations/internal/payments"
	"github.com/turfconnect/slot-reservations/internal/rateLimit"
	"github.com/turfconnect/slot-reservations/internal/reservation"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)
	if err := repo.Migrate(context.Background()); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("turfconnect")
	venues := mongoadapter.NewVenueCatalog(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	flow := redisadapter.NewFlowStore(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	gateway := payments.NewSimulated(cfg.PaymentSuccessRate, 200*time.Millisecond)

	reservations := reservation.NewService(repo, flow, gateway, audit, logger, cfg.HoldTTL, cfg.FlowTTL)
	generators := generator.NewService(repo, flow, audit, logger, cfg.FlowTTL)

	handlers := httphandler.NewHandlers(reservations, generators, venues, idemp, logger)
	r := httphandler.NewRouter(handlers, rl, logger)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
