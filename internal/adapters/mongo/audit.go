package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/turfconnect/slot-reservations/internal/domain"
	"github.com/turfconnect/slot-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    uuid.UUID `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogHold(ctx context.Context, b domain.Booking) error {
	data := map[string]interface{}{
		"booking_id": b.ID,
		"venue_id":   b.VenueID,
		"slot_ids":   b.SlotIDs,
		"total":      b.TotalAmount,
		"expires_at": b.ExpiresAt.Format(time.RFC3339),
	}
	return a.LogEvent(ctx, "booking.held", b.CustomerID, data)
}

func (a *AuditLogger) LogPayment(ctx context.Context, b domain.Booking, p domain.Payment) error {
	data := map[string]interface{}{
		"booking_id":   b.ID,
		"provider_ref": p.ProviderRef,
		"amount":       p.Amount,
		"status":       p.Status,
	}
	return a.LogEvent(ctx, "booking.payment", b.CustomerID, data)
}

func (a *AuditLogger) LogGeneration(ctx context.Context, ownerID uuid.UUID, params domain.GenerationParams, created, replaced int) error {
	data := map[string]interface{}{
		"venue_id": params.VenueID,
		"mode":     params.Mode,
		"strategy": params.Strategy,
		"created":  created,
		"replaced": replaced,
	}
	return a.LogEvent(ctx, "slots.generated", ownerID, data)
}
