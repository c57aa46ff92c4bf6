package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/turfconnect/slot-reservations/internal/domain"
)

func (r *Repository) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (id, customer_id, venue_id, date, total_amount, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.CustomerID, b.VenueID, b.Date, b.TotalAmount, b.Status, b.ExpiresAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, slotID := range b.SlotIDs {
		batch.Queue(`INSERT INTO booking_slots (booking_id, slot_id) VALUES ($1, $2)`, b.ID, slotID)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, venue_id, date, total_amount, status, expires_at, created_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.CustomerID, &b.VenueID, &b.Date, &b.TotalAmount, &b.Status, &b.ExpiresAt, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.SlotIDs, err = r.bookingSlotIDs(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingForUpdate locks the booking row. Payment finalization and the
// reaper both go through here so they are strictly ordered on the same
// booking.
func (r *Repository) GetBookingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	err := tx.QueryRow(ctx, `
		SELECT id, customer_id, venue_id, date, total_amount, status, expires_at, created_at
		FROM bookings WHERE id = $1
		FOR UPDATE
	`, id).Scan(&b.ID, &b.CustomerID, &b.VenueID, &b.Date, &b.TotalAmount, &b.Status, &b.ExpiresAt, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.SlotIDs, err = r.bookingSlotIDs(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) bookingSlotIDs(ctx context.Context, q queryer, bookingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT slot_id FROM booking_slots WHERE booking_id = $1`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) UpdateBookingStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BookingStatus) error {
	result, err := tx.Exec(ctx, `UPDATE bookings SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExpiredPendingBookingIDs lists bookings the reaper should cancel. Each one
// is then processed in its own transaction.
func (r *Repository) ExpiredPendingBookingIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM bookings
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) InsertPayment(ctx context.Context, tx pgx.Tx, p domain.Payment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (id, booking_id, provider_ref, amount, status)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.BookingID, p.ProviderRef, p.Amount, p.Status)
	return err
}

func (r *Repository) ListPayments(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, provider_ref, amount, status, created_at
		FROM payments WHERE booking_id = $1
		ORDER BY created_at ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.ProviderRef, &p.Amount, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
