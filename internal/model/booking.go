package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the state of a booking. The only legal transition is
// confirmed -> cancelled.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	return s == BookingStatusConfirmed || s == BookingStatusCancelled
}

// Terminal reports whether no transition leaves s.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled
}

// CanTransitionTo reports whether a booking in state s may move to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return s == BookingStatusConfirmed && next == BookingStatusCancelled
}

// Booking is a ledger entry for seats (and optionally tier units) reserved by a user.
// Bookings are never deleted.
type Booking struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	EventID    string          `json:"event_id"`
	TierID     *string         `json:"tier_id,omitempty"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     BookingStatus   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// BookingFilter narrows ListBookings. Empty fields are ignored.
type BookingFilter struct {
	UserID  string
	EventID string
	Status  BookingStatus
	Limit   int
	Offset  int
}
