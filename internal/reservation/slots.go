package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/turfconnect/slot-reservations/internal/domain"
)

// ListSlots returns the venue's future slots, reaping stale holds first so
// customers never see a hold that has already lapsed.
func (s *Service) ListSlots(ctx context.Context, venueID uuid.UUID, date *time.Time) ([]domain.Slot, error) {
	if _, err := s.ReapExpired(ctx); err != nil {
		s.logger.Error("reap before slot listing failed", err)
	}
	return s.repo.ListFutureSlots(ctx, venueID, date, time.Now())
}

// CreateSlot adds one slot. Duplicate (venue, date, start) is a conflict.
func (s *Service) CreateSlot(ctx context.Context, venueID uuid.UUID, date time.Time, startMinute, endMinute int, price float64, label string) (*domain.Slot, error) {
	slot, err := domain.NewSlot(venueID, date, startMinute, endMinute, price, label)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		return s.repo.CreateSlot(ctx, tx, slot)
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// UpdateSlot edits an available slot's interval, price or label. Held and
// booked slots are immutable to edits.
func (s *Service) UpdateSlot(ctx context.Context, slotID uuid.UUID, startMinute, endMinute int, price float64, label string) (*domain.Slot, error) {
	if startMinute < 0 || endMinute > 24*60 || startMinute >= endMinute || price < 0 {
		return nil, domain.ErrInvalidInput
	}

	var updated domain.Slot
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		slots, err := s.repo.GetSlotsForUpdate(ctx, tx, []uuid.UUID{slotID})
		if err != nil {
			return err
		}
		if len(slots) == 0 {
			return domain.ErrNotFound
		}
		if slots[0].Status != domain.SlotAvailable {
			return domain.ErrConflict
		}
		updated = slots[0]
		updated.StartMinute = startMinute
		updated.EndMinute = endMinute
		updated.Price = price
		updated.Label = label
		return s.repo.UpdateSlot(ctx, tx, updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSlot removes an available slot. Held and booked slots cannot be
// deleted.
func (s *Service) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		slots, err := s.repo.GetSlotsForUpdate(ctx, tx, []uuid.UUID{slotID})
		if err != nil {
			return err
		}
		if len(slots) == 0 {
			return domain.ErrNotFound
		}
		if slots[0].Status != domain.SlotAvailable {
			return domain.ErrConflict
		}
		return s.repo.DeleteSlot(ctx, tx, slotID)
	})
}

// GetSlot resolves one slot for ownership checks in the API layer.
func (s *Service) GetSlot(ctx context.Context, slotID uuid.UUID) (*domain.Slot, error) {
	return s.repo.GetSlot(ctx, slotID)
}
