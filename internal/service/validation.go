package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// gateStore is what ValidationGate reads. Both reads lock the row inside the
// caller's transaction, so the answer reflects the snapshot that is mutated next.
type gateStore interface {
	GetEventForUpdate(ctx context.Context, eventID string) (model.Event, error)
	GetTierForUpdate(ctx context.Context, eventID, tierID string) (model.TicketTier, error)
}

// ValidationGate performs the read-only checks of a reservation. It has no
// side effects.
type ValidationGate struct {
	store       gateStore
	maxQuantity int
}

// NewValidationGate builds a gate. maxQuantity < 1 disables the upper bound.
func NewValidationGate(store gateStore, maxQuantity int) *ValidationGate {
	return &ValidationGate{store: store, maxQuantity: maxQuantity}
}

// ValidateQuantity rejects quantities below one or above the per-booking cap.
func (g *ValidationGate) ValidateQuantity(quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", model.ErrValidation)
	}
	if g.maxQuantity > 0 && quantity > g.maxQuantity {
		return fmt.Errorf("%w: quantity cannot exceed %d", model.ErrValidation, g.maxQuantity)
	}
	return nil
}

// EventExists returns the locked event row or model.ErrNotFound.
func (g *ValidationGate) EventExists(ctx context.Context, eventID string) (model.Event, error) {
	return g.store.GetEventForUpdate(ctx, eventID)
}

// TierExists returns the locked tier row. A tier belonging to another event
// is model.ErrNotFound.
func (g *ValidationGate) TierExists(ctx context.Context, eventID, tierID string) (model.TicketTier, error) {
	tier, err := g.store.GetTierForUpdate(ctx, eventID, tierID)
	if err != nil {
		return model.TicketTier{}, err
	}
	if tier.EventID != eventID {
		return model.TicketTier{}, model.ErrNotFound
	}
	return tier, nil
}

// HasSufficientStock reports whether currentAvailable covers requestedQty.
func HasSufficientStock(currentAvailable, requestedQty int) bool {
	return requestedQty >= 1 && currentAvailable >= requestedQty
}
