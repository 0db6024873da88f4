package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-booking/internal/audit"
	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
	"github.com/Shivanand-hulikatti/event-booking/internal/testutil"
)

var (
	alice = model.Caller{UserID: "alice", Role: model.RoleUser}
	bob   = model.Caller{UserID: "bob", Role: model.RoleUser}
)

func newBookingService(t *testing.T) (*service.BookingService, *InventoryRepository, context.Context) {
	t.Helper()
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	repo := NewInventoryRepository(pool)
	return service.NewBookingService(repo, audit.Discard, 50), repo, ctx
}

func TestInventory_ConcurrentReservationsNeverOversell(t *testing.T) {
	svc, repo, ctx := newBookingService(t)
	pool := repo.db
	eventID := testutil.InsertEvent(t, ctx, pool, "Small venue", 5)

	const callers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: eventID, Quantity: 1})
			if err != nil && !errors.Is(err, model.ErrInsufficientInventory) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, testutil.AvailableSeats(t, ctx, pool, eventID))
	assert.Equal(t, 5, testutil.CountBookings(t, ctx, pool, eventID))
}

func TestInventory_TieredTotalIsExact(t *testing.T) {
	svc, repo, ctx := newBookingService(t)
	pool := repo.db
	eventID := testutil.InsertEvent(t, ctx, pool, "Gala", 100)
	tierID := testutil.InsertTier(t, ctx, pool, eventID, "vip", "99.99", 10)

	b, err := svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: eventID, TierID: &tierID, Quantity: 2})
	require.NoError(t, err)

	stored, err := repo.GetBooking(ctx, b.ID, "alice")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("199.98").Equal(stored.TotalPrice), "got %s", stored.TotalPrice)
	assert.Equal(t, model.BookingStatusConfirmed, stored.Status)
	assert.Equal(t, 98, testutil.AvailableSeats(t, ctx, pool, eventID))
	assert.Equal(t, 8, testutil.AvailableQuantity(t, ctx, pool, tierID))
}

func TestInventory_TierShortageRollsBackEventSeats(t *testing.T) {
	svc, repo, ctx := newBookingService(t)
	pool := repo.db
	eventID := testutil.InsertEvent(t, ctx, pool, "Gala", 100)
	tierID := testutil.InsertTier(t, ctx, pool, eventID, "vip", "10.00", 1)

	_, err := svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: eventID, TierID: &tierID, Quantity: 2})
	require.ErrorIs(t, err, model.ErrInsufficientInventory)

	assert.Equal(t, 100, testutil.AvailableSeats(t, ctx, pool, eventID))
	assert.Equal(t, 1, testutil.AvailableQuantity(t, ctx, pool, tierID))
	assert.Zero(t, testutil.CountBookings(t, ctx, pool, eventID))
}

func TestInventory_UnknownTierIsNotFound(t *testing.T) {
	svc, repo, ctx := newBookingService(t)
	pool := repo.db
	eventID := testutil.InsertEvent(t, ctx, pool, "Gala", 10)
	otherEvent := testutil.InsertEvent(t, ctx, pool, "Other", 10)
	foreignTier := testutil.InsertTier(t, ctx, pool, otherEvent, "std", "1.00", 5)

	missing := "999"
	_, err := svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: eventID, TierID: &missing, Quantity: 1})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: eventID, TierID: &foreignTier, Quantity: 1})
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.Equal(t, 10, testutil.AvailableSeats(t, ctx, pool, eventID))
	assert.Equal(t, 5, testutil.AvailableQuantity(t, ctx, pool, foreignTier))
}

func TestInventory_ConcurrentCancelReleasesOnce(t *testing.T) {
	svc, repo, ctx := newBookingService(t)
	pool := repo.db
	eventID := testutil.InsertEvent(t, ctx, pool, "Gala", 10)
	tierID := testutil.InsertTier(t, ctx, pool, eventID, "std", "5.00", 10)

	b, err := svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: eventID, TierID: &tierID, Quantity: 4})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 6)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Cancel(ctx, alice, b.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, model.ErrAlreadyCancelled)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 10, testutil.AvailableSeats(t, ctx, pool, eventID))
	assert.Equal(t, 10, testutil.AvailableQuantity(t, ctx, pool, tierID))

	stored, err := repo.GetBooking(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, stored.Status)
}

func TestInventory_CancelByStrangerIsNotFound(t *testing.T) {
	svc, repo, ctx := newBookingService(t)
	pool := repo.db
	eventID := testutil.InsertEvent(t, ctx, pool, "Gala", 10)

	b, err := svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: eventID, Quantity: 3})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, bob, b.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, 7, testutil.AvailableSeats(t, ctx, pool, eventID))
}

func TestInventory_WritesRequireTransaction(t *testing.T) {
	_, repo, ctx := newBookingService(t)
	eventID := testutil.InsertEvent(t, ctx, repo.db, "Gala", 10)

	assert.ErrorIs(t, repo.DecrementSeats(ctx, eventID, 1), database.ErrNoTransaction)
	_, err := repo.GetEventForUpdate(ctx, eventID)
	assert.ErrorIs(t, err, database.ErrNoTransaction)
	assert.Equal(t, 10, testutil.AvailableSeats(t, ctx, repo.db, eventID))
}

func TestInventory_CountersStayWithinBounds(t *testing.T) {
	_, repo, ctx := newBookingService(t)
	eventID := testutil.InsertEvent(t, ctx, repo.db, "Gala", 3)

	err := repo.WithTx(ctx, func(ctx context.Context) error {
		return repo.IncrementSeats(ctx, eventID, 1)
	})
	assert.ErrorIs(t, err, ErrCounterInvariant)

	err = repo.WithTx(ctx, func(ctx context.Context) error {
		return repo.DecrementSeats(ctx, eventID, 4)
	})
	assert.ErrorIs(t, err, model.ErrInsufficientInventory)
	assert.Equal(t, 3, testutil.AvailableSeats(t, ctx, repo.db, eventID))
}

func TestInventory_ListBookings(t *testing.T) {
	svc, repo, ctx := newBookingService(t)
	pool := repo.db
	ev1 := testutil.InsertEvent(t, ctx, pool, "One", 10)
	ev2 := testutil.InsertEvent(t, ctx, pool, "Two", 10)

	_, err := svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: ev1, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: ev2, Quantity: 1})
	require.NoError(t, err)
	bobs, err := svc.Reserve(ctx, bob, model.CreateBookingRequest{EventID: ev1, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, bob, bobs.ID)
	require.NoError(t, err)

	all, err := repo.ListBookings(ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repo.ListBookings(ctx, model.BookingFilter{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	cancelled, err := repo.ListBookings(ctx, model.BookingFilter{EventID: ev1, Status: model.BookingStatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, bobs.ID, cancelled[0].ID)

	page, err := repo.ListBookings(ctx, model.BookingFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestInventory_TwoLargeRequestsOnlyOneFits(t *testing.T) {
	svc, repo, ctx := newBookingService(t)
	pool := repo.db
	eventID := testutil.InsertEvent(t, ctx, pool, "Club", 10)

	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, alice, model.CreateBookingRequest{EventID: eventID, Quantity: 6})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, model.ErrInsufficientInventory)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, testutil.AvailableSeats(t, ctx, pool, eventID))
	assert.Equal(t, 1, testutil.CountBookings(t, ctx, pool, eventID))
}
