package reservation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/turfconnect/slot-reservations/internal/adapters/postgres"
	"github.com/turfconnect/slot-reservations/internal/domain"
	"github.com/turfconnect/slot-reservations/internal/observability"
	"github.com/turfconnect/slot-reservations/internal/payments"
	"golang.org/x/sync/errgroup"
)

// reapBatchSize caps how many expired bookings one lazy sweep processes, so a
// backlog never stalls the request that happened to trigger it.
const reapBatchSize = 100

// FlowStore carries a customer's single tracked pending booking across
// requests. Stored ids are hints, never authoritative.
type FlowStore interface {
	SetActiveBooking(ctx context.Context, customerID, bookingID uuid.UUID, ttl time.Duration) error
	ActiveBooking(ctx context.Context, customerID uuid.UUID) (uuid.UUID, bool, error)
	ClearActiveBooking(ctx context.Context, customerID uuid.UUID) error
}

type AuditLogger interface {
	LogHold(ctx context.Context, b domain.Booking) error
	LogPayment(ctx context.Context, b domain.Booking, p domain.Payment) error
}

// Service owns the slot state machine: hold acquisition, expiry reaping, and
// the booking lifecycle through payment.
type Service struct {
	repo    *postgres.Repository
	flow    FlowStore
	gateway payments.Gateway
	audit   AuditLogger
	logger  observability.Logger
	holdTTL time.Duration
	flowTTL time.Duration
}

func NewService(repo *postgres.Repository, flow FlowStore, gateway payments.Gateway, audit AuditLogger, logger observability.Logger, holdTTL, flowTTL time.Duration) *Service {
	return &Service{
		repo:    repo,
		flow:    flow,
		gateway: gateway,
		audit:   audit,
		logger:  logger,
		holdTTL: holdTTL,
		flowTTL: flowTTL,
	}
}

// HoldSlots atomically places a hold on 1-3 slots and opens a pending
// booking. All validation happens under exclusive row locks on exactly the
// candidate slots, so two racing holds on overlapping sets are strictly
// ordered and the loser sees ErrSlotUnavailable.
func (s *Service) HoldSlots(ctx context.Context, customerID uuid.UUID, slotIDs []uuid.UUID) (*domain.Booking, error) {
	if len(slotIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "no slots requested")
	}
	seen := make(map[uuid.UUID]struct{}, len(slotIDs))
	for _, id := range slotIDs {
		if _, dup := seen[id]; dup {
			return nil, errors.Wrap(domain.ErrInvalidInput, "duplicate slot id")
		}
		seen[id] = struct{}{}
	}

	// Stale holds must not masquerade as unavailable slots.
	if _, err := s.ReapExpired(ctx); err != nil {
		s.logger.Error("reap before hold failed", err)
	}

	var booking domain.Booking
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		slots, err := s.repo.GetSlotsForUpdate(ctx, tx, slotIDs)
		if err != nil {
			return err
		}
		if len(slots) != len(slotIDs) {
			return domain.ErrSlotsNotFound
		}
		if len(slots) > domain.MaxSlotsPerBooking {
			return domain.ErrTooManySlots
		}
		for _, slot := range slots[1:] {
			if slot.VenueID != slots[0].VenueID || !slot.Date.Equal(slots[0].Date) {
				return domain.ErrHeterogeneousSelection
			}
		}
		// Last check before committing: a slot may have transitioned
		// between the UI read and this transaction.
		for _, slot := range slots {
			if slot.Status != domain.SlotAvailable {
				return domain.ErrSlotUnavailable
			}
		}

		booking = domain.NewBooking(customerID, slots, s.holdTTL)
		if err := s.repo.CreateBooking(ctx, tx, booking); err != nil {
			return err
		}
		if err := s.repo.MarkSlotsHeld(ctx, tx, slotIDs, booking.ExpiresAt); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"booking_id": booking.ID,
			"venue_id":   booking.VenueID,
			"slot_ids":   booking.SlotIDs,
			"expires_at": booking.ExpiresAt.Format(time.RFC3339),
		})
		return s.repo.InsertOutbox(ctx, tx, postgres.NewOutboxRecord("booking", booking.ID, "booking.held", payload))
	})
	if err != nil {
		observability.HoldsTotal.WithLabelValues(holdResult(err)).Inc()
		return nil, err
	}
	observability.HoldsTotal.WithLabelValues("ok").Inc()

	if err := s.flow.SetActiveBooking(ctx, customerID, booking.ID, s.flowTTL); err != nil {
		s.logger.Error("failed to record active booking", err)
	}
	if s.audit != nil {
		_ = s.audit.LogHold(ctx, booking)
	}
	return &booking, nil
}

func holdResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrSlotUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrSlotsNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTooManySlots), errors.Is(err, domain.ErrHeterogeneousSelection):
		return "rejected"
	default:
		return "error"
	}
}

// ReapExpired releases holds and bookings past their deadline. Safe to call
// from any request path; each expired booking commits on its own so one
// failure never blocks the rest.
func (s *Service) ReapExpired(ctx context.Context) (int, error) {
	now := time.Now()
	released := 0

	ids, err := s.repo.ExpiredPendingBookingIDs(ctx, now, reapBatchSize)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		var reaped int
		err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
			reaped = 0
			b, err := s.repo.GetBookingForUpdate(ctx, tx, id)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			// Re-check under lock: a concurrent payment may have
			// finalized, or another sweep got here first.
			if b.Status != domain.BookingPending || !b.Expired(now) {
				return nil
			}
			if err := s.repo.ReleaseSlots(ctx, tx, b.SlotIDs); err != nil {
				return err
			}
			if err := s.repo.UpdateBookingStatus(ctx, tx, b.ID, domain.BookingCancelled); err != nil {
				return err
			}
			reaped = len(b.SlotIDs)
			payload, _ := json.Marshal(map[string]interface{}{"booking_id": b.ID})
			return s.repo.InsertOutbox(ctx, tx, postgres.NewOutboxRecord("booking", b.ID, "booking.expired", payload))
		})
		if err != nil {
			s.logger.Error("failed to reap booking", err)
			continue
		}
		if reaped > 0 {
			released += reaped
			observability.ReapedBookings.Inc()
		}
	}

	orphans, err := s.repo.ReleaseOrphanHeldSlots(ctx, now)
	if err != nil {
		return released, err
	}
	released += int(orphans)
	if released > 0 {
		observability.ReapedSlots.Add(float64(released))
	}
	return released, nil
}

// ProcessPayment charges the booking amount and finalizes the booking. The
// booking row is locked for the whole attempt, so a concurrent reap and a
// payment completion on the same booking cannot interleave. Expiry is
// re-validated here independently of reaper timing.
func (s *Service) ProcessPayment(ctx context.Context, customerID, bookingID uuid.UUID) (*domain.Payment, error) {
	if _, err := s.ReapExpired(ctx); err != nil {
		s.logger.Error("reap before payment failed", err)
	}

	var booking domain.Booking
	var payment domain.Payment
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := s.repo.GetBookingForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.CustomerID != customerID {
			return domain.ErrForbidden
		}
		if b.Status != domain.BookingPending || b.Expired(time.Now()) {
			return domain.ErrBookingExpired
		}

		result, err := s.gateway.Charge(ctx, b.TotalAmount)
		if err != nil {
			return errors.Wrap(err, "payment gateway")
		}

		status := domain.PaymentFailed
		if result.Success {
			status = domain.PaymentSuccess
		}
		payment = domain.NewPayment(b.ID, result.ProviderRef, b.TotalAmount, status)
		if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}

		if result.Success {
			// Lock the slots before transitioning them, same as the
			// hold path.
			if _, err := s.repo.GetSlotsForUpdate(ctx, tx, b.SlotIDs); err != nil {
				return err
			}
			if err := s.repo.MarkSlotsBooked(ctx, tx, b.SlotIDs); err != nil {
				return err
			}
			if err := s.repo.UpdateBookingStatus(ctx, tx, b.ID, domain.BookingPaid); err != nil {
				return err
			}
			payload, _ := json.Marshal(map[string]interface{}{
				"booking_id":   b.ID,
				"provider_ref": payment.ProviderRef,
				"amount":       payment.Amount,
			})
			if err := s.repo.InsertOutbox(ctx, tx, postgres.NewOutboxRecord("booking", b.ID, "booking.paid", payload)); err != nil {
				return err
			}
		}
		booking = *b
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.PaymentsTotal.WithLabelValues(string(payment.Status)).Inc()
	if s.audit != nil {
		_ = s.audit.LogPayment(ctx, booking, payment)
	}
	if payment.Status == domain.PaymentSuccess {
		if err := s.flow.ClearActiveBooking(ctx, customerID); err != nil {
			s.logger.Error("failed to clear active booking", err)
		}
	}
	// On failure the booking stays pending with its original expiry; the
	// customer may retry until the hold runs out.
	return &payment, nil
}

// Cancel releases a pending booking's slots and marks it cancelled.
// Idempotent: cancelling an already finished booking is a no-op.
func (s *Service) Cancel(ctx context.Context, customerID, bookingID uuid.UUID) error {
	if _, err := s.ReapExpired(ctx); err != nil {
		s.logger.Error("reap before cancel failed", err)
	}

	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := s.repo.GetBookingForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.CustomerID != customerID {
			return domain.ErrForbidden
		}
		if b.Status != domain.BookingPending {
			return nil
		}
		if err := s.repo.ReleaseSlots(ctx, tx, b.SlotIDs); err != nil {
			return err
		}
		if err := s.repo.UpdateBookingStatus(ctx, tx, b.ID, domain.BookingCancelled); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{"booking_id": b.ID})
		return s.repo.InsertOutbox(ctx, tx, postgres.NewOutboxRecord("booking", b.ID, "booking.cancelled", payload))
	})
	if err != nil {
		return err
	}

	if err := s.flow.ClearActiveBooking(ctx, customerID); err != nil {
		s.logger.Error("failed to clear active booking", err)
	}
	return nil
}

// GetBooking returns the customer's booking with its payment attempts.
func (s *Service) GetBooking(ctx context.Context, customerID, bookingID uuid.UUID) (*domain.Booking, []domain.Payment, error) {
	var b *domain.Booking
	var pays []domain.Payment

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		b, err = s.repo.GetBooking(gctx, bookingID)
		return err
	})
	g.Go(func() error {
		var err error
		pays, err = s.repo.ListPayments(gctx, bookingID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if b.CustomerID != customerID {
		return nil, nil, domain.ErrForbidden
	}
	return b, pays, nil
}

// ActiveBooking resolves the customer's tracked pending booking. The stored
// id may be stale or expired, so it is re-validated on every read and
// cleared when no longer pending.
func (s *Service) ActiveBooking(ctx context.Context, customerID uuid.UUID) (*domain.Booking, error) {
	if _, err := s.ReapExpired(ctx); err != nil {
		s.logger.Error("reap before active booking read failed", err)
	}

	id, ok, err := s.flow.ActiveBooking(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}

	b, err := s.repo.GetBooking(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		_ = s.flow.ClearActiveBooking(ctx, customerID)
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.CustomerID != customerID || b.Status != domain.BookingPending || b.Expired(time.Now()) {
		_ = s.flow.ClearActiveBooking(ctx, customerID)
		return nil, domain.ErrNotFound
	}
	return b, nil
}
