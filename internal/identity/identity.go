package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/turfconnect/slot-reservations/internal/domain"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
)

// Principal is the identity the upstream auth layer vouches for. The core
// trusts it as-is; issuing and verifying credentials happens elsewhere.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Customer returns the calling customer or ErrForbidden.
func Customer(ctx context.Context) (Principal, error) {
	p, ok := FromContext(ctx)
	if !ok || p.Role != RoleCustomer {
		return Principal{}, domain.ErrForbidden
	}
	return p, nil
}

// Owner returns the calling venue owner or ErrForbidden.
func Owner(ctx context.Context) (Principal, error) {
	p, ok := FromContext(ctx)
	if !ok || p.Role != RoleOwner {
		return Principal{}, domain.ErrForbidden
	}
	return p, nil
}
