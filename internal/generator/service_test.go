package generator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/turfconnect/slot-reservations/internal/adapters/postgres"
	"github.com/turfconnect/slot-reservations/internal/domain"
	"github.com/turfconnect/slot-reservations/internal/generator"
	"github.com/turfconnect/slot-reservations/internal/observability"
)

type fakeFlow struct {
	mu     sync.Mutex
	params map[uuid.UUID]domain.GenerationParams
}

func newFakeFlow() *fakeFlow {
	return &fakeFlow{params: make(map[uuid.UUID]domain.GenerationParams)}
}

func (f *fakeFlow) SetGenerationParams(ctx context.Context, ownerID uuid.UUID, params domain.GenerationParams, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params[ownerID] = params
	return nil
}

func (f *fakeFlow) GenerationParams(ctx context.Context, ownerID uuid.UUID) (domain.GenerationParams, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.params[ownerID]
	return p, ok, nil
}

func (f *fakeFlow) ClearGenerationParams(ctx context.Context, ownerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.params, ownerID)
	return nil
}

type fakeAudit struct{ runs int }

func (f *fakeAudit) LogGeneration(ctx context.Context, ownerID uuid.UUID, params domain.GenerationParams, created, replaced int) error {
	f.runs++
	return nil
}

func startRepo(t *testing.T) *postgres.Repository {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_USER": "turf", "POSTGRES_PASSWORD": "turf", "POSTGRES_DB": "turf"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, "postgres://turf:turf@"+host+":"+port.Port()+"/turf?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := postgres.NewRepository(pool)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func baseParams(venueID uuid.UUID) domain.GenerationParams {
	return domain.GenerationParams{
		VenueID:     venueID,
		StartDate:   time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC), // Mon
		EndDate:     time.Date(2026, time.September, 9, 0, 0, 0, 0, time.UTC), // Wed
		Mode:        domain.GenerateAllDays,
		Blocks:      []domain.TimeBlock{{StartMinute: 9 * 60, EndMinute: 11 * 60, Price: 50}},
		SlotMinutes: 60,
		Strategy:    domain.ConflictSkip,
	}
}

func TestService_PreviewThenConfirm(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	flow := newFakeFlow()
	audit := &fakeAudit{}
	svc := generator.NewService(repo, flow, audit, observability.NewLogger(), 30*time.Minute)

	venueID := uuid.New()
	ownerID := uuid.New()
	params := baseParams(venueID)

	plan, err := svc.Preview(ctx, ownerID, params)
	require.NoError(t, err)
	// 3 days, one two-hour block sliced hourly.
	assert.Equal(t, 6, plan.ToCreate)
	assert.Zero(t, plan.ToReplace)
	assert.Equal(t, 6, plan.Total())

	result, err := svc.Confirm(ctx, ownerID, venueID)
	require.NoError(t, err)
	assert.Equal(t, plan.ToCreate, result.Created)
	assert.Zero(t, result.Replaced)
	assert.Zero(t, result.Skipped)

	slots, err := repo.ListVenueSlotsInRange(ctx, venueID, params.StartDate, params.EndDate)
	require.NoError(t, err)
	assert.Len(t, slots, 6)
	for _, s := range slots {
		assert.Equal(t, domain.SlotAvailable, s.Status)
		assert.Equal(t, 50.0, s.Price)
	}

	// Params are consumed by the confirm.
	_, err = svc.Confirm(ctx, ownerID, venueID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, audit.runs)
}

func TestService_Confirm_SkipStrategy(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	flow := newFakeFlow()
	svc := generator.NewService(repo, flow, &fakeAudit{}, observability.NewLogger(), 30*time.Minute)

	venueID := uuid.New()
	ownerID := uuid.New()
	params := baseParams(venueID)
	params.EndDate = params.StartDate

	// Pre-seed the 09:00 slot at a different price.
	seeded, err := domain.NewSlot(venueID, params.StartDate, 9*60, 10*60, 120, "prime")
	require.NoError(t, err)
	err = repo.WithTx(ctx, func(tx pgx.Tx) error { return repo.CreateSlot(ctx, tx, seeded) })
	require.NoError(t, err)

	plan, err := svc.Preview(ctx, ownerID, params)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.ToCreate)
	assert.Equal(t, 1, plan.SkippedExists)

	result, err := svc.Confirm(ctx, ownerID, venueID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)

	// The seeded slot is untouched.
	got, err := repo.GetSlot(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.Price)
	assert.Equal(t, "prime", got.Label)
}

func TestService_Confirm_OverwriteStrategy(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	flow := newFakeFlow()
	svc := generator.NewService(repo, flow, &fakeAudit{}, observability.NewLogger(), 30*time.Minute)

	venueID := uuid.New()
	ownerID := uuid.New()
	params := baseParams(venueID)
	params.EndDate = params.StartDate
	params.Strategy = domain.ConflictOverwrite

	seeded, err := domain.NewSlot(venueID, params.StartDate, 9*60, 10*60, 120, "prime")
	require.NoError(t, err)
	booked, err := domain.NewSlot(venueID, params.StartDate, 10*60, 11*60, 90, "")
	require.NoError(t, err)
	err = repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := repo.CreateSlot(ctx, tx, seeded); err != nil {
			return err
		}
		if err := repo.CreateSlot(ctx, tx, booked); err != nil {
			return err
		}
		return repo.MarkSlotsBooked(ctx, tx, []uuid.UUID{booked.ID})
	})
	require.NoError(t, err)

	plan, err := svc.Preview(ctx, ownerID, params)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.ToReplace)
	assert.Equal(t, 1, plan.SkippedBooked)
	assert.Zero(t, plan.ToCreate)

	result, err := svc.Confirm(ctx, ownerID, venueID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Replaced)
	assert.Equal(t, 1, result.Skipped)

	// The available slot was replaced with the template price, keeping its
	// label; the booked slot survived overwrite.
	slots, err := repo.ListVenueSlotsInRange(ctx, venueID, params.StartDate, params.EndDate)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 50.0, slots[0].Price)
	assert.Equal(t, "prime", slots[0].Label)
	assert.NotEqual(t, seeded.ID, slots[0].ID)
	assert.Equal(t, domain.SlotBooked, slots[1].Status)
	assert.Equal(t, 90.0, slots[1].Price)
}

func TestService_Confirm_WrongVenue(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	flow := newFakeFlow()
	svc := generator.NewService(repo, flow, &fakeAudit{}, observability.NewLogger(), 30*time.Minute)

	ownerID := uuid.New()
	params := baseParams(uuid.New())

	_, err := svc.Preview(ctx, ownerID, params)
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, ownerID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Preview_InvalidParams(t *testing.T) {
	repo := startRepo(t)
	flow := newFakeFlow()
	svc := generator.NewService(repo, flow, &fakeAudit{}, observability.NewLogger(), 30*time.Minute)

	params := baseParams(uuid.New())
	params.SlotMinutes = 0
	_, err := svc.Preview(context.Background(), uuid.New(), params)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
