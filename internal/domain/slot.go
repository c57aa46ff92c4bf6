package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotHeld      SlotStatus = "held"
	SlotBooked    SlotStatus = "booked"
)

// Slot is one bookable interval of one venue on one date. Times are minutes
// since midnight, local to the venue's calendar date.
type Slot struct {
	ID          uuid.UUID
	VenueID     uuid.UUID
	Date        time.Time
	StartMinute int
	EndMinute   int
	Price       float64
	Label       string
	Status      SlotStatus
	HoldExpiry  *time.Time
	CreatedAt   time.Time
}

func NewSlot(venueID uuid.UUID, date time.Time, startMinute, endMinute int, price float64, label string) (Slot, error) {
	if startMinute < 0 || endMinute > 24*60 || startMinute >= endMinute {
		return Slot{}, fmt.Errorf("%w: slot interval %s-%s", ErrInvalidInput, FormatClock(startMinute), FormatClock(endMinute))
	}
	// The gateway cannot charge a zero amount, so free slots are not
	// representable.
	if price <= 0 {
		return Slot{}, fmt.Errorf("%w: non-positive price", ErrInvalidInput)
	}
	return Slot{
		ID:          uuid.New(),
		VenueID:     venueID,
		Date:        DateOnly(date),
		StartMinute: startMinute,
		EndMinute:   endMinute,
		Price:       price,
		Label:       label,
		Status:      SlotAvailable,
	}, nil
}

// IsBooked is the derived display flag the legacy model persisted.
func (s Slot) IsBooked() bool {
	return s.Status == SlotBooked
}

// StartAt anchors the slot's start on its calendar date in UTC.
func (s Slot) StartAt() time.Time {
	return s.Date.Add(time.Duration(s.StartMinute) * time.Minute)
}

func (s Slot) EndAt() time.Time {
	return s.Date.Add(time.Duration(s.EndMinute) * time.Minute)
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseClock parses "15:04" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad clock time %q", ErrInvalidInput, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
