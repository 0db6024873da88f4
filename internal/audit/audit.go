// Package audit delivers a fire-and-forget record of booking outcomes.
//
// Producers call Sink.Record, which never blocks on I/O. Entries travel over a
// watermill pub/sub (in-process gochannel or redis streams) to a consumer that
// persists them into activity_logs.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the booking engine.
const (
	ActionBookingCreated      = "booking.created"
	ActionBookingCreateFailed = "booking.create_failed"
	ActionBookingCancelled    = "booking.cancelled"
	ActionBookingCancelFailed = "booking.cancel_failed"

	ResourceBooking = "booking"
	ResourceEvent   = "event"
)

// Entry is one audit record.
type Entry struct {
	ID            string         `json:"id"`
	ActorID       string         `json:"actor_id"`
	Action        string         `json:"action"`
	ResourceType  string         `json:"resource_type"`
	ResourceID    string         `json:"resource_id"`
	Details       map[string]any `json:"details,omitempty"`
	OriginAddress string         `json:"origin_address"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// Sink receives audit entries. Implementations must not block the caller on
// I/O and must never report failure back to it.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Entry)

func (f SinkFunc) Record(ctx context.Context, e Entry) { f(ctx, e) }

// Discard drops every entry.
var Discard Sink = SinkFunc(func(context.Context, Entry) {})

func (e Entry) withDefaults() Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	return e
}

type originKey struct{}

// WithOriginAddress stores the client address that audit entries should carry.
func WithOriginAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, originKey{}, addr)
}

// OriginAddress returns the address stored by WithOriginAddress.
func OriginAddress(ctx context.Context) string {
	addr, _ := ctx.Value(originKey{}).(string)
	return addr
}
