package reservation_test

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
	"github.com/turfconnect/slot-reservations/internal/observability"
	"github.com/turfconnect/slot-reservations/internal/payments"
	"github.com/turfconnect/slot-reservations/internal/reservation"
)

type fakeFlow struct {
	mu     sync.Mutex
	active map[uuid.UUID]uuid.UUID
}

func newFakeFlow() *fakeFlow {
	return &fakeFlow{active: make(map[uuid.UUID]uuid.UUID)}
}

func (f *fakeFlow) SetActiveBooking(ctx context.Context, customerID, bookingID uuid.UUID, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[customerID] = bookingID
	return nil
}

func (f *fakeFlow) ActiveBooking(ctx context.Context, customerID uuid.UUID) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.active[customerID]
	return id, ok, nil
}

func (f *fakeFlow) ClearActiveBooking(ctx context.Context, customerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, customerID)
	return nil
}

type fakeAudit struct {
	mu       sync.Mutex
	holds    int
	payments int
}

func (f *fakeAudit) LogHold(ctx context.Context, b domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holds++
	return nil
}

func (f *fakeAudit) LogPayment(ctx context.Context, b domain.Booking, p domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments++
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

func seedSlots(t *testing.T, repo *postgres.Repository, venueID uuid.UUID, date time.Time, startMinutes ...int) []domain.Slot {
	t.Helper()
	out := make([]domain.Slot, 0, len(startMinutes))
	for _, start := range startMinutes {
		slot, err := domain.NewSlot(venueID, date, start, start+60, 50, "")
		require.NoError(t, err)
		err = repo.WithTx(context.Background(), func(tx pgx.Tx) error {
			return repo.CreateSlot(context.Background(), tx, slot)
		})
		require.NoError(t, err)
		out = append(out, slot)
	}
	return out
}

func slotIDs(slots []domain.Slot) []uuid.UUID {
	ids := make([]uuid.UUID, len(slots))
	for i, s := range slots {
		ids[i] = s.ID
	}
	return ids
}

func TestService_HoldSlots(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	flow := newFakeFlow()
	audit := &fakeAudit{}
	svc := reservation.NewService(repo, flow, payments.NewSimulated(1.0, 0), audit, observability.NewLogger(), 5*time.Minute, 30*time.Minute)

	venueID := uuid.New()
	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	slots := seedSlots(t, repo, venueID, date, 9*60, 10*60, 11*60)

	t.Run("acquires hold", func(t *testing.T) {
		customerID := uuid.New()
		booking, err := svc.HoldSlots(ctx, customerID, slotIDs(slots[:2]))
		require.NoError(t, err)
		assert.Equal(t, domain.BookingPending, booking.Status)
		assert.Equal(t, 100.0, booking.TotalAmount)

		held, err := repo.GetSlot(ctx, slots[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SlotHeld, held.Status)
		require.NotNil(t, held.HoldExpiry)
		assert.WithinDuration(t, booking.ExpiresAt, *held.HoldExpiry, time.Second)

		active, err := svc.ActiveBooking(ctx, customerID)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, active.ID)
	})

	t.Run("overlapping hold loses", func(t *testing.T) {
		_, err := svc.HoldSlots(ctx, uuid.New(), slotIDs(slots[1:3]))
		assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

		// The free slot must not have been touched by the failed attempt.
		free, err := repo.GetSlot(ctx, slots[2].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SlotAvailable, free.Status)
	})

	t.Run("rejects bad selections", func(t *testing.T) {
		customerID := uuid.New()

		_, err := svc.HoldSlots(ctx, customerID, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.HoldSlots(ctx, customerID, []uuid.UUID{slots[2].ID, slots[2].ID})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.HoldSlots(ctx, customerID, []uuid.UUID{uuid.New()})
		assert.ErrorIs(t, err, domain.ErrSlotsNotFound)

		otherDay := seedSlots(t, repo, venueID, date.AddDate(0, 0, 1), 9*60)
		_, err = svc.HoldSlots(ctx, customerID, []uuid.UUID{slots[2].ID, otherDay[0].ID})
		assert.ErrorIs(t, err, domain.ErrHeterogeneousSelection)

		four := seedSlots(t, repo, venueID, date.AddDate(0, 0, 2), 9*60, 10*60, 11*60, 12*60)
		_, err = svc.HoldSlots(ctx, customerID, slotIDs(four))
		assert.ErrorIs(t, err, domain.ErrTooManySlots)
	})
}

func TestService_HoldSlots_ConcurrentOverlap(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	svc := reservation.NewService(repo, newFakeFlow(), payments.NewSimulated(1.0, 0), &fakeAudit{}, observability.NewLogger(), 5*time.Minute, 30*time.Minute)

	venueID := uuid.New()
	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	slots := seedSlots(t, repo, venueID, date, 9*60, 10*60)
	ids := slotIDs(slots)

	// All four racers want the same pair of slots. The row locks inside
	// HoldSlots must serialize them so exactly one wins and the rest see
	// the slots as taken, never a partial or double hold.
	const racers = 4
	type outcome struct {
		booking *domain.Booking
		err     error
	}
	results := make(chan outcome, racers)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		go func() {
			<-start
			b, err := svc.HoldSlots(ctx, uuid.New(), ids)
			results <- outcome{booking: b, err: err}
		}()
	}
	close(start)

	var winner *domain.Booking
	wins := 0
	for i := 0; i < racers; i++ {
		r := <-results
		if r.err == nil {
			wins++
			winner = r.booking
			continue
		}
		assert.ErrorIs(t, r.err, domain.ErrSlotUnavailable)
	}
	require.Equal(t, 1, wins)
	require.NotNil(t, winner)

	// Both slots belong to the single winning booking.
	for _, id := range ids {
		slot, err := repo.GetSlot(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SlotHeld, slot.Status)
		require.NotNil(t, slot.HoldExpiry)
		assert.WithinDuration(t, winner.ExpiresAt, *slot.HoldExpiry, time.Second)
	}
	got, err := repo.GetBooking(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, got.Status)
	assert.ElementsMatch(t, ids, got.SlotIDs)
}

func TestService_HoldSlots_ConcurrentPartialOverlap(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	svc := reservation.NewService(repo, newFakeFlow(), payments.NewSimulated(1.0, 0), &fakeAudit{}, observability.NewLogger(), 5*time.Minute, 30*time.Minute)

	venueID := uuid.New()
	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	slots := seedSlots(t, repo, venueID, date, 9*60, 10*60, 11*60)

	// Two racers share only the middle slot; at most one can commit.
	sets := [][]uuid.UUID{
		{slots[0].ID, slots[1].ID},
		{slots[1].ID, slots[2].ID},
	}
	errs := make(chan error, len(sets))
	start := make(chan struct{})
	for _, ids := range sets {
		ids := ids
		go func() {
			<-start
			_, err := svc.HoldSlots(ctx, uuid.New(), ids)
			errs <- err
		}()
	}
	close(start)

	wins := 0
	for range sets {
		if err := <-errs; err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
		}
	}
	require.Equal(t, 1, wins)

	// The contested slot is held exactly once; the loser's other slot
	// stayed available.
	contested, err := repo.GetSlot(ctx, slots[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SlotHeld, contested.Status)

	available := 0
	for _, s := range slots {
		got, err := repo.GetSlot(ctx, s.ID)
		require.NoError(t, err)
		if got.Status == domain.SlotAvailable {
			available++
		}
	}
	assert.Equal(t, 1, available)
}

func TestService_ProcessPayment(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	flow := newFakeFlow()
	audit := &fakeAudit{}
	logger := observability.NewLogger()

	succeeding := reservation.NewService(repo, flow, payments.NewSimulated(1.0, 0), audit, logger, 5*time.Minute, 30*time.Minute)
	failing := reservation.NewService(repo, flow, payments.NewSimulated(0.0, 0), audit, logger, 5*time.Minute, 30*time.Minute)

	venueID := uuid.New()
	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

	t.Run("success finalizes booking", func(t *testing.T) {
		customerID := uuid.New()
		slots := seedSlots(t, repo, venueID, date, 9*60)
		booking, err := succeeding.HoldSlots(ctx, customerID, slotIDs(slots))
		require.NoError(t, err)

		payment, err := succeeding.ProcessPayment(ctx, customerID, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentSuccess, payment.Status)
		assert.Equal(t, booking.TotalAmount, payment.Amount)

		got, pays, err := succeeding.GetBooking(ctx, customerID, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingPaid, got.Status)
		assert.Len(t, pays, 1)

		slot, err := repo.GetSlot(ctx, slots[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SlotBooked, slot.Status)
		assert.Nil(t, slot.HoldExpiry)

		_, err = succeeding.ActiveBooking(ctx, customerID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("failure keeps booking retryable", func(t *testing.T) {
		customerID := uuid.New()
		slots := seedSlots(t, repo, venueID, date, 10*60)
		booking, err := failing.HoldSlots(ctx, customerID, slotIDs(slots))
		require.NoError(t, err)

		payment, err := failing.ProcessPayment(ctx, customerID, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentFailed, payment.Status)

		slot, err := repo.GetSlot(ctx, slots[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SlotHeld, slot.Status)

		// Retry through a gateway that approves; both attempts stay on
		// record.
		retry, err := succeeding.ProcessPayment(ctx, customerID, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentSuccess, retry.Status)

		_, pays, err := succeeding.GetBooking(ctx, customerID, booking.ID)
		require.NoError(t, err)
		assert.Len(t, pays, 2)
	})

	t.Run("wrong customer is rejected", func(t *testing.T) {
		customerID := uuid.New()
		slots := seedSlots(t, repo, venueID, date, 11*60)
		booking, err := succeeding.HoldSlots(ctx, customerID, slotIDs(slots))
		require.NoError(t, err)

		_, err = succeeding.ProcessPayment(ctx, uuid.New(), booking.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("expired booking is gone", func(t *testing.T) {
		expiring := reservation.NewService(repo, flow, payments.NewSimulated(1.0, 0), audit, logger, -time.Second, 30*time.Minute)
		customerID := uuid.New()
		slots := seedSlots(t, repo, venueID, date, 12*60)
		booking, err := expiring.HoldSlots(ctx, customerID, slotIDs(slots))
		require.NoError(t, err)

		_, err = expiring.ProcessPayment(ctx, customerID, booking.ID)
		assert.ErrorIs(t, err, domain.ErrBookingExpired)

		// The lazy reap inside the payment path released the slot.
		slot, err := repo.GetSlot(ctx, slots[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SlotAvailable, slot.Status)
	})
}

func TestService_ReapExpired(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	flow := newFakeFlow()
	logger := observability.NewLogger()

	expiring := reservation.NewService(repo, flow, payments.NewSimulated(1.0, 0), &fakeAudit{}, logger, -time.Second, 30*time.Minute)
	svc := reservation.NewService(repo, flow, payments.NewSimulated(1.0, 0), &fakeAudit{}, logger, 5*time.Minute, 30*time.Minute)

	venueID := uuid.New()
	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	slots := seedSlots(t, repo, venueID, date, 9*60, 10*60)

	booking, err := expiring.HoldSlots(ctx, uuid.New(), slotIDs(slots))
	require.NoError(t, err)

	released, err := svc.ReapExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	got, err := repo.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)

	// Reaping again finds nothing.
	released, err = svc.ReapExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)

	// The freed slots can be held again immediately.
	_, err = svc.HoldSlots(ctx, uuid.New(), slotIDs(slots))
	require.NoError(t, err)
}

func TestService_Cancel(t *testing.T) {
	repo := startRepo(t)
	ctx := context.Background()
	flow := newFakeFlow()
	svc := reservation.NewService(repo, flow, payments.NewSimulated(1.0, 0), &fakeAudit{}, observability.NewLogger(), 5*time.Minute, 30*time.Minute)

	venueID := uuid.New()
	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	slots := seedSlots(t, repo, venueID, date, 9*60)

	customerID := uuid.New()
	booking, err := svc.HoldSlots(ctx, customerID, slotIDs(slots))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, customerID, booking.ID))

	slot, err := repo.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SlotAvailable, slot.Status)

	got, err := repo.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)

	// Second cancel is a no-op, not an error.
	require.NoError(t, svc.Cancel(ctx, customerID, booking.ID))

	// A stranger cannot cancel someone else's booking.
	err = svc.Cancel(ctx, uuid.New(), booking.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.ActiveBooking(ctx, customerID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
