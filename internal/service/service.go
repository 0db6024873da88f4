// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

const maxCapacity = 100_000

// EventStore persists events and their tiers.
type EventStore interface {
	Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error)
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events EventStore
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore) *EventService {
	return &EventService{events: events}
}

// CreateEvent validates the request and delegates to the repository. Tier
// allotments may not add up to more than the event capacity.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: event name is required", model.ErrValidation)
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be a positive integer", model.ErrValidation)
	}
	if req.Capacity > maxCapacity {
		return nil, fmt.Errorf("%w: capacity cannot exceed 100,000", model.ErrValidation)
	}

	seen := make(map[string]struct{}, len(req.Tiers))
	allotted := 0
	for i := range req.Tiers {
		tier := &req.Tiers[i]
		tier.Name = strings.TrimSpace(tier.Name)
		if tier.Name == "" {
			return nil, fmt.Errorf("%w: tier %d: name is required", model.ErrValidation, i+1)
		}
		if _, dup := seen[tier.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate tier name %q", model.ErrValidation, tier.Name)
		}
		seen[tier.Name] = struct{}{}
		if tier.Price.LessThan(decimal.Zero) {
			return nil, fmt.Errorf("%w: tier %q: price must not be negative", model.ErrValidation, tier.Name)
		}
		if tier.Price.GreaterThan(model.MaxTierPrice) {
			return nil, fmt.Errorf("%w: tier %q: price cannot exceed %s", model.ErrValidation, tier.Name, model.MaxTierPrice.StringFixed(2))
		}
		if !tier.Price.Equal(tier.Price.Round(2)) {
			return nil, fmt.Errorf("%w: tier %q: price has more than two decimal places", model.ErrValidation, tier.Name)
		}
		if tier.Quantity <= 0 {
			return nil, fmt.Errorf("%w: tier %q: quantity must be a positive integer", model.ErrValidation, tier.Name)
		}
		allotted += tier.Quantity
	}
	if allotted > req.Capacity {
		return nil, fmt.Errorf("%w: tier quantities (%d) exceed capacity (%d)", model.ErrValidation, allotted, req.Capacity)
	}

	return s.events.Create(ctx, req)
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	return s.events.GetByID(ctx, id)
}

// UpdateEvent changes descriptive fields. Capacity and counters are not editable.
func (s *EventService) UpdateEvent(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	if req.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", model.ErrValidation)
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: event name must not be empty", model.ErrValidation)
		}
		req.Name = &name
	}
	return s.events.Update(ctx, id, req)
}
