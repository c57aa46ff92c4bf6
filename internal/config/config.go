package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr           string
	PostgresDSN        string
	MongoURI           string
	RedisAddr          string
	RabbitURL          string
	HoldTTL            time.Duration
	FlowTTL            time.Duration
	PaymentSuccessRate float64
	OTLPEndpoint       string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	holdTTL, _ := time.ParseDuration(os.Getenv("HOLD_TTL"))
	if holdTTL == 0 {
		holdTTL = 5 * time.Minute
	}

	flowTTL, _ := time.ParseDuration(os.Getenv("FLOW_TTL"))
	if flowTTL == 0 {
		flowTTL = 30 * time.Minute
	}

	successRate, err := strconv.ParseFloat(os.Getenv("PAYMENT_SUCCESS_RATE"), 64)
	if err != nil || successRate <= 0 || successRate > 1 {
		successRate = 0.8
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return &Config{
		HTTPAddr:           addr,
		PostgresDSN:        os.Getenv("PG_DSN"),
		MongoURI:           os.Getenv("MONGO_URI"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RabbitURL:          os.Getenv("RABBIT_URL"),
		HoldTTL:            holdTTL,
		FlowTTL:            flowTTL,
		PaymentSuccessRate: successRate,
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
