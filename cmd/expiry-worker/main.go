package main

import (
	"context"
	"log"
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
	"github.com/turfconnect/slot-reservations/internal/observability"
	"github.com/turfconnect/slot-reservations/internal/payments"
	"github.com/turfconnect/slot-reservations/internal/reservation"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("turfconnect"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	flow := redisadapter.NewFlowStore(redisClient)

	gateway := payments.NewSimulated(cfg.PaymentSuccessRate, 0)
	reservations := reservation.NewService(repo, flow, gateway, audit, logger, cfg.HoldTTL, cfg.FlowTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go run(ctx, reservations, logger, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

// run sweeps expired holds on a fixed interval. The API also reaps
// lazily on the hot paths; this keeps quiet venues from accumulating
// stale held slots between requests.
func run(ctx context.Context, reservations *reservation.Service, logger observability.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := reservations.ReapExpired(ctx)
			if err != nil {
				logger.Error("expiry sweep failed", err)
				continue
			}
			if released > 0 {
				logger.WithField("slots_released", released).Info("expiry sweep released slots")
			}
		}
	}
}
