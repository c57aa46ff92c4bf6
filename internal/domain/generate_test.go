package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turfconnect/slot-reservations/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validParams() domain.GenerationParams {
	return domain.GenerationParams{
		VenueID:     uuid.New(),
		StartDate:   date(2026, time.September, 7), // Monday
		EndDate:     date(2026, time.September, 13),
		Mode:        domain.GenerateAllDays,
		Blocks:      []domain.TimeBlock{{StartMinute: 9 * 60, EndMinute: 11 * 60, Price: 50}},
		SlotMinutes: 60,
		Strategy:    domain.ConflictSkip,
	}
}

func TestGenerationParams_Validate(t *testing.T) {
	require.NoError(t, validParams().Validate())

	cases := map[string]func(*domain.GenerationParams){
		"reversed range":     func(p *domain.GenerationParams) { p.EndDate = p.StartDate.AddDate(0, 0, -1) },
		"unknown mode":       func(p *domain.GenerationParams) { p.Mode = "fortnightly" },
		"unknown strategy":   func(p *domain.GenerationParams) { p.Strategy = "merge" },
		"no blocks":          func(p *domain.GenerationParams) { p.Blocks = nil },
		"too many blocks":    func(p *domain.GenerationParams) { p.Blocks = make([]domain.TimeBlock, domain.MaxTimeBlocks+1) },
		"zero duration":      func(p *domain.GenerationParams) { p.SlotMinutes = 0 },
		"reversed block":     func(p *domain.GenerationParams) { p.Blocks[0].StartMinute = p.Blocks[0].EndMinute },
		"block pastEOD":      func(p *domain.GenerationParams) { p.Blocks[0].EndMinute = 25 * 60 },
		"negative price":     func(p *domain.GenerationParams) { p.Blocks[0].Price = -1 },
		"zero price":         func(p *domain.GenerationParams) { p.Blocks[0].Price = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validParams()
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), domain.ErrInvalidInput)
		})
	}
}

func TestGenerationParams_Expand_WeekdayFilter(t *testing.T) {
	// Three consecutive days starting Friday: only Monday of the next week
	// falls outside, so weekdays mode keeps Friday and drops the weekend.
	p := validParams()
	p.StartDate = date(2026, time.September, 4) // Friday
	p.EndDate = date(2026, time.September, 6)   // Sunday
	p.Mode = domain.GenerateWeekdays

	got := p.Expand()
	require.Len(t, got, 2) // Friday only, two one-hour slices of 09:00-11:00
	for _, c := range got {
		assert.Equal(t, time.Friday, c.Date.Weekday())
	}

	p.Mode = domain.GenerateWeekends
	got = p.Expand()
	require.Len(t, got, 4)
	for _, c := range got {
		wd := c.Date.Weekday()
		assert.True(t, wd == time.Saturday || wd == time.Sunday)
	}
}

func TestGenerationParams_Expand_SlicesBlocks(t *testing.T) {
	p := validParams()
	p.EndDate = p.StartDate // single Monday
	p.Blocks = []domain.TimeBlock{
		{StartMinute: 9 * 60, EndMinute: 11 * 60, Price: 50},
		{StartMinute: 18 * 60, EndMinute: 20*60 + 30, Price: 80},
	}

	got := p.Expand()
	// 09:00-11:00 gives two slots; 18:00-20:30 gives two, the trailing
	// 30-minute remainder is dropped.
	require.Len(t, got, 4)

	assert.Equal(t, 9*60, got[0].StartMinute)
	assert.Equal(t, 10*60, got[0].EndMinute)
	assert.Equal(t, 50.0, got[0].Price)
	assert.Equal(t, 10*60, got[1].StartMinute)

	assert.Equal(t, 18*60, got[2].StartMinute)
	assert.Equal(t, 19*60, got[3].StartMinute)
	assert.Equal(t, 20*60, got[3].EndMinute)
	assert.Equal(t, 80.0, got[3].Price)
}

func TestGenerationParams_Expand_Deterministic(t *testing.T) {
	p := validParams()
	p.EndDate = p.StartDate.AddDate(0, 0, 13)
	p.Blocks = append(p.Blocks, domain.TimeBlock{StartMinute: 14 * 60, EndMinute: 17 * 60, Price: 65})

	first := p.Expand()
	second := p.Expand()
	assert.Equal(t, first, second)
}

func TestGenerationParams_Expand_NormalizesDates(t *testing.T) {
	p := validParams()
	p.StartDate = time.Date(2026, time.September, 7, 15, 42, 0, 0, time.UTC)
	p.EndDate = p.StartDate

	got := p.Expand()
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.Equal(t, date(2026, time.September, 7), c.Date)
	}
}
