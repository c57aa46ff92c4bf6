package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/turfconnect/slot-reservations/internal/domain"
)

// FlowStore is the per-user workflow state: the customer's single tracked
// pending booking and an owner's pending bulk-generation proposal. Entries
// are TTL-bound and never authoritative; readers re-validate against the
// database.
type FlowStore struct {
	client *redis.Client
}

func NewFlowStore(client *redis.Client) *FlowStore {
	return &FlowStore{client: client}
}

func bookingKey(customerID uuid.UUID) string {
	return "flow:" + customerID.String() + ":booking"
}

func genParamsKey(ownerID uuid.UUID) string {
	return "flow:" + ownerID.String() + ":genparams"
}

func (f *FlowStore) SetActiveBooking(ctx context.Context, customerID, bookingID uuid.UUID, ttl time.Duration) error {
	return f.client.Set(ctx, bookingKey(customerID), bookingID.String(), ttl).Err()
}

func (f *FlowStore) ActiveBooking(ctx context.Context, customerID uuid.UUID) (uuid.UUID, bool, error) {
	val, err := f.client.Get(ctx, bookingKey(customerID)).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

func (f *FlowStore) ClearActiveBooking(ctx context.Context, customerID uuid.UUID) error {
	return f.client.Del(ctx, bookingKey(customerID)).Err()
}

func (f *FlowStore) SetGenerationParams(ctx context.Context, ownerID uuid.UUID, params domain.GenerationParams, ttl time.Duration) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return f.client.Set(ctx, genParamsKey(ownerID), data, ttl).Err()
}

func (f *FlowStore) GenerationParams(ctx context.Context, ownerID uuid.UUID) (domain.GenerationParams, bool, error) {
	val, err := f.client.Get(ctx, genParamsKey(ownerID)).Bytes()
	if err == redis.Nil {
		return domain.GenerationParams{}, false, nil
	}
	if err != nil {
		return domain.GenerationParams{}, false, err
	}
	var params domain.GenerationParams
	if err := json.Unmarshal(val, &params); err != nil {
		return domain.GenerationParams{}, false, err
	}
	return params, true, nil
}

func (f *FlowStore) ClearGenerationParams(ctx context.Context, ownerID uuid.UUID) error {
	return f.client.Del(ctx, genParamsKey(ownerID)).Err()
}
