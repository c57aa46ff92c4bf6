package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrForbidden            = errors.New("forbidden")

	ErrSlotsNotFound          = errors.New("one or more slots not found")
	ErrTooManySlots           = errors.New("too many slots requested")
	ErrHeterogeneousSelection = errors.New("slots span more than one venue or date")
	ErrSlotUnavailable        = errors.New("slot unavailable")
	ErrDuplicateSlot          = errors.New("slot already exists at this start time")
	ErrBookingExpired         = errors.New("booking expired")
)
