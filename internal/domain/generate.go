package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxTimeBlocks bounds a bulk-generation template.
const MaxTimeBlocks = 3

type GenerationMode string

const (
	GenerateAllDays  GenerationMode = "all"
	GenerateWeekdays GenerationMode = "weekdays"
	GenerateWeekends GenerationMode = "weekends"
)

type ConflictStrategy string

const (
	ConflictSkip      ConflictStrategy = "skip"
	ConflictOverwrite ConflictStrategy = "overwrite"
)

type TimeBlock struct {
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`
	Price       float64 `json:"price"`
}

// GenerationParams is the resolved input of one bulk-generation run. The same
// params expand to the same candidates, which is what lets preview and
// confirm agree.
type GenerationParams struct {
	VenueID     uuid.UUID        `json:"venue_id"`
	StartDate   time.Time        `json:"start_date"`
	EndDate     time.Time        `json:"end_date"`
	Mode        GenerationMode   `json:"mode"`
	Blocks      []TimeBlock      `json:"blocks"`
	SlotMinutes int              `json:"slot_minutes"`
	Strategy    ConflictStrategy `json:"strategy"`
}

func (p GenerationParams) Validate() error {
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("%w: reversed date range", ErrInvalidInput)
	}
	switch p.Mode {
	case GenerateAllDays, GenerateWeekdays, GenerateWeekends:
	default:
		return fmt.Errorf("%w: unknown generation mode %q", ErrInvalidInput, p.Mode)
	}
	switch p.Strategy {
	case ConflictSkip, ConflictOverwrite:
	default:
		return fmt.Errorf("%w: unknown conflict strategy %q", ErrInvalidInput, p.Strategy)
	}
	if len(p.Blocks) == 0 || len(p.Blocks) > MaxTimeBlocks {
		return fmt.Errorf("%w: need 1..%d time blocks", ErrInvalidInput, MaxTimeBlocks)
	}
	if p.SlotMinutes <= 0 {
		return fmt.Errorf("%w: non-positive slot duration", ErrInvalidInput)
	}
	for _, b := range p.Blocks {
		if b.StartMinute < 0 || b.EndMinute > 24*60 || b.StartMinute >= b.EndMinute {
			return fmt.Errorf("%w: block %s-%s not chronological", ErrInvalidInput, FormatClock(b.StartMinute), FormatClock(b.EndMinute))
		}
		if b.Price <= 0 {
			return fmt.Errorf("%w: non-positive block price", ErrInvalidInput)
		}
	}
	return nil
}

// SlotCandidate is one interval the generator wants to exist.
type SlotCandidate struct {
	Date        time.Time
	StartMinute int
	EndMinute   int
	Price       float64
}

// Expand deterministically produces every candidate interval: each date
// admitted by the mode, each block sliced into consecutive SlotMinutes
// pieces. A trailing remainder shorter than SlotMinutes is dropped.
func (p GenerationParams) Expand() []SlotCandidate {
	var out []SlotCandidate
	for d := DateOnly(p.StartDate); !d.After(DateOnly(p.EndDate)); d = d.AddDate(0, 0, 1) {
		if !p.admits(d.Weekday()) {
			continue
		}
		for _, b := range p.Blocks {
			for start := b.StartMinute; start+p.SlotMinutes <= b.EndMinute; start += p.SlotMinutes {
				out = append(out, SlotCandidate{
					Date:        d,
					StartMinute: start,
					EndMinute:   start + p.SlotMinutes,
					Price:       b.Price,
				})
			}
		}
	}
	return out
}

func (p GenerationParams) admits(w time.Weekday) bool {
	weekend := w == time.Saturday || w == time.Sunday
	switch p.Mode {
	case GenerateWeekdays:
		return !weekend
	case GenerateWeekends:
		return weekend
	default:
		return true
	}
}
