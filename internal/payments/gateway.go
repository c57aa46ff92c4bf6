package payments

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Result is the gateway verdict for one charge attempt. ProviderRef is the
// opaque transaction identifier the provider assigns either way.
type Result struct {
	Success     bool
	ProviderRef string
}

// Gateway is the external payment collaborator. A production implementation
// only has to satisfy the same two-outcome contract.
type Gateway interface {
	Charge(ctx context.Context, amount float64) (Result, error)
}

// Simulated approximates a gateway with a fixed success probability and a
// small processing delay.
type Simulated struct {
	successRate float64
	delay       time.Duration
}

func NewSimulated(successRate float64, delay time.Duration) *Simulated {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &Simulated{successRate: successRate, delay: delay}
}

func (g *Simulated) Charge(ctx context.Context, amount float64) (Result, error) {
	if amount <= 0 {
		return Result{}, fmt.Errorf("invalid charge amount %.2f", amount)
	}

	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(g.delay):
		}
	}

	ref := fmt.Sprintf("pi_sim_%s", randomAlphanumeric(24))
	return Result{
		Success:     rand.Float64() < g.successRate,
		ProviderRef: ref,
	}, nil
}

const alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumericChars[rand.Intn(len(alphanumericChars))]
	}
	return string(b)
}
