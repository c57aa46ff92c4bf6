package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/turfconnect/slot-reservations/internal/domain"
)

const slotColumns = `id, venue_id, date, start_minute, end_minute, price, label, status, hold_expiry, created_at`

func scanSlot(row pgx.Row) (domain.Slot, error) {
	var s domain.Slot
	err := row.Scan(&s.ID, &s.VenueID, &s.Date, &s.StartMinute, &s.EndMinute, &s.Price, &s.Label, &s.Status, &s.HoldExpiry, &s.CreatedAt)
	return s, err
}

func (r *Repository) CreateSlot(ctx context.Context, tx pgx.Tx, s domain.Slot) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO slots (id, venue_id, date, start_minute, end_minute, price, label, status, hold_expiry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL)
	`, s.ID, s.VenueID, s.Date, s.StartMinute, s.EndMinute, s.Price, s.Label, s.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ErrDuplicateSlot
		}
		return err
	}
	return nil
}

func (r *Repository) GetSlot(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	s, err := scanSlot(r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListFutureSlots returns the venue's slots that have not yet ended, ordered
// by date then start time. Every listing view relies on this ordering.
func (r *Repository) ListFutureSlots(ctx context.Context, venueID uuid.UUID, date *time.Time, now time.Time) ([]domain.Slot, error) {
	nowDate := domain.DateOnly(now)
	nowMinute := now.UTC().Hour()*60 + now.UTC().Minute()

	query := `
		SELECT ` + slotColumns + ` FROM slots
		WHERE venue_id = $1 AND (date > $2 OR (date = $2 AND end_minute > $3))
	`
	args := []interface{}{venueID, nowDate, nowMinute}
	if date != nil {
		query += ` AND date = $4`
		args = append(args, domain.DateOnly(*date))
	}
	query += ` ORDER BY date, start_minute`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// ListVenueSlotsInRange returns every slot of the venue with a date inside
// [from, to], regardless of status. The bulk generator previews against this.
func (r *Repository) ListVenueSlotsInRange(ctx context.Context, venueID uuid.UUID, from, to time.Time) ([]domain.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE venue_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, start_minute
	`, venueID, domain.DateOnly(from), domain.DateOnly(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// GetSlotsForUpdate takes exclusive row locks on the candidate slots.
// Ordering by id keeps concurrent overlapping holds from deadlocking.
func (r *Repository) GetSlotsForUpdate(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]domain.Slot, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+slotColumns+` FROM slots WHERE id = ANY($1) ORDER BY id FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// FindSlotForUpdate probes for an existing slot at (venue, date, start) and
// locks it when present. Returns nil when the start time is free.
func (r *Repository) FindSlotForUpdate(ctx context.Context, tx pgx.Tx, venueID uuid.UUID, date time.Time, startMinute int) (*domain.Slot, error) {
	s, err := scanSlot(tx.QueryRow(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE venue_id = $1 AND date = $2 AND start_minute = $3
		FOR UPDATE
	`, venueID, domain.DateOnly(date), startMinute))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) UpdateSlot(ctx context.Context, tx pgx.Tx, s domain.Slot) error {
	result, err := tx.Exec(ctx, `
		UPDATE slots SET start_minute = $2, end_minute = $3, price = $4, label = $5 WHERE id = $1
	`, s.ID, s.StartMinute, s.EndMinute, s.Price, s.Label)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ErrDuplicateSlot
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	result, err := tx.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) MarkSlotsHeld(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, expiry time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE slots SET status = 'held', hold_expiry = $2 WHERE id = ANY($1)
	`, ids, expiry)
	return err
}

func (r *Repository) MarkSlotsBooked(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE slots SET status = 'booked', hold_expiry = NULL WHERE id = ANY($1)
	`, ids)
	return err
}

func (r *Repository) ReleaseSlots(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE slots SET status = 'available', hold_expiry = NULL WHERE id = ANY($1)
	`, ids)
	return err
}

// ReleaseOrphanHeldSlots resets held slots whose expiry passed and that no
// pending booking still references.
func (r *Repository) ReleaseOrphanHeldSlots(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE slots SET status = 'available', hold_expiry = NULL
		WHERE status = 'held' AND hold_expiry < $1
		  AND NOT EXISTS (
			SELECT 1 FROM booking_slots bs
			JOIN bookings b ON b.id = bs.booking_id
			WHERE bs.slot_id = slots.id AND b.status = 'pending'
		  )
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
