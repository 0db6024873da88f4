package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/testutil"
)

func TestBuildEventUpdate(t *testing.T) {
	name := "New name"
	venue := "Hall B"
	starts := time.Date(2026, 6, 1, 18, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	sets, args := buildEventUpdate(model.UpdateEventRequest{Name: &name, Venue: &venue, StartsAt: &starts})
	assert.Equal(t, []string{"name = @name", "venue = @venue", "starts_at = @starts_at"}, sets)
	assert.Equal(t, "New name", args["name"])
	assert.Equal(t, "Hall B", args["venue"])
	assert.Equal(t, starts.UTC(), args["starts_at"])
	assert.NotContains(t, args, "description")

	sets, args = buildEventUpdate(model.UpdateEventRequest{})
	assert.Empty(t, sets)
	assert.Empty(t, args)
}

func TestEventRepository_CreateAndRead(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	repo := NewEventRepository(pool)

	created, err := repo.Create(ctx, model.CreateEventRequest{
		Name:     "GopherCon",
		Venue:    "Main hall",
		Capacity: 100,
		Tiers: []model.CreateTierRequest{
			{Name: "standard", Price: decimal.RequireFromString("25.50"), Quantity: 80},
			{Name: "vip", Price: decimal.RequireFromString("99.99"), Quantity: 20},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, created.AvailableSeats)
	require.Len(t, created.Tiers, 2)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "GopherCon", got.Name)
	assert.Equal(t, 100, got.Capacity)
	require.Len(t, got.Tiers, 2)
	assert.Equal(t, "standard", got.Tiers[0].Name)
	assert.True(t, decimal.RequireFromString("99.99").Equal(got.Tiers[1].Price))
	assert.Equal(t, 20, got.Tiers[1].AvailableQuantity)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Tiers, 2)

	_, err = repo.GetByID(ctx, "999")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEventRepository_DuplicateTierRollsBack(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	repo := NewEventRepository(pool)

	_, err := repo.Create(ctx, model.CreateEventRequest{
		Name:     "Twice",
		Capacity: 10,
		Tiers: []model.CreateTierRequest{
			{Name: "a", Price: decimal.NewFromInt(1), Quantity: 1},
			{Name: "a", Price: decimal.NewFromInt(2), Quantity: 1},
		},
	})
	require.ErrorIs(t, err, model.ErrValidation)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEventRepository_Update(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	repo := NewEventRepository(pool)

	eventID := testutil.InsertEvent(t, ctx, pool, "Before", 10)
	name := "After"
	desc := "now with a description"

	updated, err := repo.Update(ctx, eventID, model.UpdateEventRequest{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, "now with a description", updated.Description)
	assert.Equal(t, 10, updated.Capacity)
	assert.Equal(t, 10, updated.AvailableSeats)

	_, err = repo.Update(ctx, "missing", model.UpdateEventRequest{Name: &name})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
