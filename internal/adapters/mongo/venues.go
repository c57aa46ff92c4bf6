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

// VenueCatalog is the read side of the venue listing system, which owns venue
// CRUD, images and verification. The reservation core only asks whether a
// venue exists, is approved, and who owns it.
type VenueCatalog struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewVenueCatalog(db *mongo.Database, logger observability.Logger) *VenueCatalog {
	return &VenueCatalog{
		coll:   db.Collection("venues"),
		logger: logger,
	}
}

type VenueDoc struct {
	ID         uuid.UUID `bson:"_id"`
	OwnerID    uuid.UUID `bson:"owner_id"`
	Name       string    `bson:"name"`
	City       string    `bson:"city"`
	State      string    `bson:"state"`
	Address    string    `bson:"address"`
	Facilities []string  `bson:"facilities"`
	Status     string    `bson:"status"` // pending, approved, rejected
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func (c *VenueCatalog) GetVenue(ctx context.Context, id uuid.UUID) (*VenueDoc, error) {
	var venue VenueDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&venue)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.Error("failed to get venue", err)
		return nil, err
	}
	return &venue, nil
}

// GetApprovedVenue resolves a venue customers may book. Listings still in
// review never accept holds.
func (c *VenueCatalog) GetApprovedVenue(ctx context.Context, id uuid.UUID) (*VenueDoc, error) {
	venue, err := c.GetVenue(ctx, id)
	if err != nil {
		return nil, err
	}
	if venue.Status != "approved" {
		return nil, domain.ErrNotFound
	}
	return venue, nil
}

func (c *VenueCatalog) CreateVenue(ctx context.Context, venue VenueDoc) error {
	venue.CreatedAt = time.Now()
	venue.UpdatedAt = time.Now()
	_, err := c.coll.InsertOne(ctx, venue)
	if err != nil {
		c.logger.Error("failed to create venue", err)
		return err
	}
	return nil
}
