package generator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/turfconnect/slot-reservations/internal/adapters/postgres"
	"github.com/turfconnect/slot-reservations/internal/domain"
	"github.com/turfconnect/slot-reservations/internal/observability"
)

// FlowStore keeps an owner's previewed generation proposal between the
// preview and confirm requests.
type FlowStore interface {
	SetGenerationParams(ctx context.Context, ownerID uuid.UUID, params domain.GenerationParams, ttl time.Duration) error
	GenerationParams(ctx context.Context, ownerID uuid.UUID) (domain.GenerationParams, bool, error)
	ClearGenerationParams(ctx context.Context, ownerID uuid.UUID) error
}

type AuditLogger interface {
	LogGeneration(ctx context.Context, ownerID uuid.UUID, params domain.GenerationParams, created, replaced int) error
}

// Service expands a generation template into concrete slots in two phases:
// preview computes counts without touching inventory, confirm re-expands the
// stored params and applies everything in one transaction. Booked slots are
// never replaced regardless of strategy.
type Service struct {
	repo    *postgres.Repository
	flow    FlowStore
	audit   AuditLogger
	logger  observability.Logger
	flowTTL time.Duration
}

func NewService(repo *postgres.Repository, flow FlowStore, audit AuditLogger, logger observability.Logger, flowTTL time.Duration) *Service {
	return &Service{
		repo:    repo,
		flow:    flow,
		audit:   audit,
		logger:  logger,
		flowTTL: flowTTL,
	}
}

// Plan is what a preview reports back: how many slots the confirm step would
// create or replace, and why candidates were dropped.
type Plan struct {
	ToCreate      int `json:"to_create"`
	ToReplace     int `json:"to_replace"`
	SkippedExists int `json:"skipped_exists"`
	SkippedBooked int `json:"skipped_booked"`
}

func (p Plan) Total() int {
	return p.ToCreate + p.ToReplace
}

// Preview resolves the template against current inventory and stores the
// params for a later confirm. Inventory is only read, never written.
func (s *Service) Preview(ctx context.Context, ownerID uuid.UUID, params domain.GenerationParams) (Plan, error) {
	if err := params.Validate(); err != nil {
		return Plan{}, err
	}

	existing, err := s.repo.ListVenueSlotsInRange(ctx, params.VenueID, params.StartDate, params.EndDate)
	if err != nil {
		return Plan{}, err
	}
	index := make(map[slotKey]domain.SlotStatus, len(existing))
	for _, slot := range existing {
		index[keyOf(slot.Date, slot.StartMinute)] = slot.Status
	}

	var plan Plan
	for _, c := range params.Expand() {
		status, exists := index[keyOf(c.Date, c.StartMinute)]
		switch {
		case !exists:
			plan.ToCreate++
		case status == domain.SlotBooked:
			plan.SkippedBooked++
		case params.Strategy == domain.ConflictOverwrite:
			plan.ToReplace++
		default:
			plan.SkippedExists++
		}
	}

	if err := s.flow.SetGenerationParams(ctx, ownerID, params, s.flowTTL); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

type slotKey struct {
	date        string
	startMinute int
}

func keyOf(date time.Time, startMinute int) slotKey {
	return slotKey{date.Format("2006-01-02"), startMinute}
}

// Result is the outcome of a confirmed generation run.
type Result struct {
	Created  int `json:"created"`
	Replaced int `json:"replaced"`
	Skipped  int `json:"skipped"`
}

// Confirm re-runs the expansion from the stored params and applies it
// atomically. Each existing slot is probed under lock; replacement is
// delete-then-create so no stale slot id survives with new fields.
func (s *Service) Confirm(ctx context.Context, ownerID, venueID uuid.UUID) (Result, error) {
	params, ok, err := s.flow.GenerationParams(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, domain.ErrNotFound
	}
	if params.VenueID != venueID {
		return Result{}, domain.ErrNotFound
	}
	if err := params.Validate(); err != nil {
		return Result{}, err
	}

	var result Result
	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		result = Result{}
		for _, c := range params.Expand() {
			existing, err := s.repo.FindSlotForUpdate(ctx, tx, params.VenueID, c.Date, c.StartMinute)
			if err != nil {
				return err
			}
			switch {
			case existing == nil:
				slot, err := domain.NewSlot(params.VenueID, c.Date, c.StartMinute, c.EndMinute, c.Price, "")
				if err != nil {
					return err
				}
				if err := s.repo.CreateSlot(ctx, tx, slot); err != nil {
					return err
				}
				result.Created++
			case existing.Status == domain.SlotBooked:
				// Paid inventory is never destroyed.
				result.Skipped++
			case params.Strategy == domain.ConflictOverwrite:
				if err := s.repo.DeleteSlot(ctx, tx, existing.ID); err != nil {
					return err
				}
				slot, err := domain.NewSlot(params.VenueID, c.Date, c.StartMinute, c.EndMinute, c.Price, existing.Label)
				if err != nil {
					return err
				}
				if err := s.repo.CreateSlot(ctx, tx, slot); err != nil {
					return err
				}
				result.Replaced++
			default:
				result.Skipped++
			}
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"venue_id": params.VenueID,
			"created":  result.Created,
			"replaced": result.Replaced,
		})
		return s.repo.InsertOutbox(ctx, tx, postgres.NewOutboxRecord("venue", params.VenueID, "slots.generated", payload))
	})
	if err != nil {
		return Result{}, err
	}

	observability.GeneratedSlots.Add(float64(result.Created + result.Replaced))
	if err := s.flow.ClearGenerationParams(ctx, ownerID); err != nil {
		s.logger.Error("failed to clear generation params", err)
	}
	if s.audit != nil {
		_ = s.audit.LogGeneration(ctx, ownerID, params, result.Created, result.Replaced)
	}
	return result, nil
}
