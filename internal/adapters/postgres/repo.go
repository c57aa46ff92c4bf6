package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/turfconnect/slot-reservations/internal/domain"
	"github.com/turfconnect/slot-reservations/internal/observability"
)

const (
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
	uniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn in one transaction; every multi-row mutation in the service
// layer goes through here so commits are all-or-nothing.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case serializationFailureCode, deadlockDetectedCode:
				return domain.ErrSerializationFailure
			}
		}
		return err
	}

	return tx.Commit(ctx)
}

// Migrate creates the schema. Used by local boot and tests; production runs
// the same DDL through its migration tooling.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS slots (
			id UUID PRIMARY KEY,
			venue_id UUID NOT NULL,
			date DATE NOT NULL,
			start_minute INT NOT NULL,
			end_minute INT NOT NULL,
			price NUMERIC NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('available', 'held', 'booked')),
			hold_expiry TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (venue_id, date, start_minute)
		);
		CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY,
			customer_id UUID NOT NULL,
			venue_id UUID NOT NULL,
			date DATE NOT NULL,
			total_amount NUMERIC NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending', 'paid', 'cancelled')),
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS booking_slots (
			booking_id UUID NOT NULL REFERENCES bookings (id),
			slot_id UUID NOT NULL REFERENCES slots (id) ON DELETE CASCADE,
			PRIMARY KEY (booking_id, slot_id)
		);
		CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			booking_id UUID NOT NULL REFERENCES bookings (id),
			provider_ref TEXT NOT NULL UNIQUE,
			amount NUMERIC NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending', 'success', 'failed')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS outbox (
			id UUID PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			payload_json BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			published_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			dedupe_key TEXT NOT NULL
		);
	`)
	return err
}
