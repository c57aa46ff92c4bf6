package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxSlotsPerBooking bounds a single reservation.
const MaxSlotsPerBooking = 3

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingPaid      BookingStatus = "paid"
	BookingCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	VenueID     uuid.UUID
	Date        time.Time
	SlotIDs     []uuid.UUID
	TotalAmount float64
	Status      BookingStatus
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// NewBooking builds a pending booking over already-validated slots. The total
// is fixed at hold time and never re-read from slot prices later.
func NewBooking(customerID uuid.UUID, slots []Slot, ttl time.Duration) Booking {
	b := Booking{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     BookingPending,
		ExpiresAt:  time.Now().Add(ttl),
	}
	for _, s := range slots {
		b.SlotIDs = append(b.SlotIDs, s.ID)
		b.TotalAmount += s.Price
	}
	if len(slots) > 0 {
		b.VenueID = slots[0].VenueID
		b.Date = slots[0].Date
	}
	return b
}

func (b Booking) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment records one charge attempt. A booking may accumulate failed
// attempts; at most one succeeds.
type Payment struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	ProviderRef string
	Amount      float64
	Status      PaymentStatus
	CreatedAt   time.Time
}

func NewPayment(bookingID uuid.UUID, providerRef string, amount float64, status PaymentStatus) Payment {
	return Payment{
		ID:          uuid.New(),
		BookingID:   bookingID,
		ProviderRef: providerRef,
		Amount:      amount,
		Status:      status,
	}
}
