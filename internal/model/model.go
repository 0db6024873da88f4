// Package model defines the core domain types for the event booking system.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event represents a bookable event with a fixed capacity and a live seat counter.
type Event struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Venue          string       `json:"venue"`
	StartsAt       *time.Time   `json:"starts_at,omitempty"`
	Capacity       int          `json:"capacity"`
	AvailableSeats int          `json:"available_seats"`
	Tiers          []TicketTier `json:"tiers"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return e.AvailableSeats <= 0
}

// TicketTier is a priced sub-allotment of an event's capacity.
type TicketTier struct {
	ID                string          `json:"id"`
	EventID           string          `json:"event_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"quantity"`
	AvailableQuantity int             `json:"available_quantity"`
}

// Largest values the price and total_price columns hold.
var (
	MaxTierPrice    = decimal.RequireFromString("9999999999.99")
	MaxBookingTotal = decimal.RequireFromString("999999999999.99")
)

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Venue       string              `json:"venue"`
	StartsAt    *time.Time          `json:"starts_at"`
	Capacity    int                 `json:"capacity"`
	Tiers       []CreateTierRequest `json:"tiers"`
}

// CreateTierRequest describes one ticket tier inside CreateEventRequest.
type CreateTierRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// UpdateEventRequest carries a partial update. Nil fields are left untouched.
// Capacity is fixed at creation and has no field here.
type UpdateEventRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Venue       *string    `json:"venue"`
	StartsAt    *time.Time `json:"starts_at"`
}

// Empty reports whether the request touches no field at all.
func (r UpdateEventRequest) Empty() bool {
	return r.Name == nil && r.Description == nil && r.Venue == nil && r.StartsAt == nil
}

// CreateBookingRequest is the payload for reserving stock.
type CreateBookingRequest struct {
	EventID  string  `json:"event_id"`
	TierID   *string `json:"tier_id"`
	Quantity int     `json:"quantity"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
