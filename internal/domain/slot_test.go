package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turfconnect/slot-reservations/internal/domain"
)

func TestNewSlot(t *testing.T) {
	venueID := uuid.New()
	when := time.Date(2026, time.September, 7, 16, 30, 0, 0, time.UTC)

	slot, err := domain.NewSlot(venueID, when, 9*60, 10*60, 50, "court 1")
	require.NoError(t, err)
	assert.Equal(t, domain.SlotAvailable, slot.Status)
	assert.False(t, slot.IsBooked())
	assert.Equal(t, time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC), slot.Date)
	assert.Equal(t, time.Date(2026, time.September, 7, 9, 0, 0, 0, time.UTC), slot.StartAt())
	assert.Equal(t, time.Date(2026, time.September, 7, 10, 0, 0, 0, time.UTC), slot.EndAt())

	_, err = domain.NewSlot(venueID, when, 10*60, 10*60, 50, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = domain.NewSlot(venueID, when, 23*60, 25*60, 50, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = domain.NewSlot(venueID, when, 9*60, 10*60, -5, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Zero-price slots would produce bookings the gateway cannot charge.
	_, err = domain.NewSlot(venueID, when, 9*60, 10*60, 0, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseClock(t *testing.T) {
	min, err := domain.ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*60+30, min)
	assert.Equal(t, "09:30", domain.FormatClock(min))

	_, err = domain.ParseClock("9:30pm")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = domain.ParseClock("25:00")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewBooking(t *testing.T) {
	customerID := uuid.New()
	venueID := uuid.New()
	when := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

	a, err := domain.NewSlot(venueID, when, 9*60, 10*60, 50, "")
	require.NoError(t, err)
	b, err := domain.NewSlot(venueID, when, 10*60, 11*60, 75, "")
	require.NoError(t, err)

	booking := domain.NewBooking(customerID, []domain.Slot{a, b}, 5*time.Minute)
	assert.Equal(t, domain.BookingPending, booking.Status)
	assert.Equal(t, venueID, booking.VenueID)
	assert.Equal(t, when, booking.Date)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, booking.SlotIDs)
	assert.Equal(t, 125.0, booking.TotalAmount)

	assert.False(t, booking.Expired(time.Now()))
	assert.True(t, booking.Expired(time.Now().Add(6*time.Minute)))
}
