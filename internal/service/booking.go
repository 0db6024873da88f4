package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/event-booking/internal/audit"
	"github.com/Shivanand-hulikatti/event-booking/internal/logging"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

const (
	opReserve = "reserve"
	opCancel  = "cancel"

	defaultPageSize = 50
	maxPageSize     = 200
)

var tracer = otel.Tracer("github.com/Shivanand-hulikatti/event-booking/internal/service")

// InventoryStore is the transactional storage BookingService runs against.
// Counter and booking writes are only valid inside WithTx.
type InventoryStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetEventForUpdate(ctx context.Context, eventID string) (model.Event, error)
	GetTierForUpdate(ctx context.Context, eventID, tierID string) (model.TicketTier, error)
	DecrementSeats(ctx context.Context, eventID string, qty int) error
	DecrementTierQuantity(ctx context.Context, tierID string, qty int) error
	IncrementSeats(ctx context.Context, eventID string, qty int) error
	IncrementTierQuantity(ctx context.Context, tierID string, qty int) error

	InsertBooking(ctx context.Context, b model.Booking) error
	GetBookingForUpdate(ctx context.Context, bookingID, ownerID string) (model.Booking, error)
	MarkBookingCancelled(ctx context.Context, bookingID string) error
	GetBooking(ctx context.Context, bookingID, ownerID string) (model.Booking, error)
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

// BookingService reserves and releases inventory.
//
// A reservation locks the event row, then the tier row, and only then writes
// the booking. A cancellation locks the booking first, then returns seats to
// the event and the tier. Every mutation of one operation commits or rolls back
// together, and every outcome is reported to the audit sink after the
// transaction has finished.
type BookingService struct {
	store InventoryStore
	gate  *ValidationGate
	audit audit.Sink
	now   func() time.Time
}

// Option customises a BookingService.
type Option func(*BookingService)

// WithClock overrides the time source used for booking timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *BookingService) { s.now = now }
}

// NewBookingService constructs a BookingService. A nil sink discards entries.
func NewBookingService(store InventoryStore, sink audit.Sink, maxQuantity int, opts ...Option) *BookingService {
	if sink == nil {
		sink = audit.Discard
	}
	s := &BookingService{
		store: store,
		gate:  NewValidationGate(store, maxQuantity),
		audit: sink,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve books req.Quantity seats (and tier units when a tier is named) for
// the caller.
func (s *BookingService) Reserve(ctx context.Context, caller model.Caller, req model.CreateBookingRequest) (model.Booking, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "BookingService.Reserve", trace.WithAttributes(
		attribute.String("event.id", req.EventID),
		attribute.Int("booking.quantity", req.Quantity),
	))
	defer span.End()

	booking, err := s.reserve(ctx, caller, req)
	s.observe(ctx, span, opReserve, start, err)

	details := map[string]any{
		"event_id": req.EventID,
		"quantity": req.Quantity,
	}
	if req.TierID != nil {
		details["tier_id"] = *req.TierID
	}

	if err != nil {
		details["error_kind"] = model.ErrorKind(err)
		s.audit.Record(ctx, audit.Entry{
			ActorID:       caller.UserID,
			Action:        audit.ActionBookingCreateFailed,
			ResourceType:  audit.ResourceEvent,
			ResourceID:    req.EventID,
			Details:       details,
			OriginAddress: audit.OriginAddress(ctx),
		})
		return model.Booking{}, err
	}

	metrics.BookingsReserved.Inc()
	span.SetAttributes(attribute.String("booking.id", booking.ID))
	details["total_price"] = booking.TotalPrice.StringFixed(2)
	s.audit.Record(ctx, audit.Entry{
		ActorID:       caller.UserID,
		Action:        audit.ActionBookingCreated,
		ResourceType:  audit.ResourceBooking,
		ResourceID:    booking.ID,
		Details:       details,
		OriginAddress: audit.OriginAddress(ctx),
	})
	return booking, nil
}

func (s *BookingService) reserve(ctx context.Context, caller model.Caller, req model.CreateBookingRequest) (model.Booking, error) {
	if err := authorize(caller); err != nil {
		return model.Booking{}, err
	}
	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		return model.Booking{}, fmt.Errorf("%w: event_id is required", model.ErrValidation)
	}
	if req.TierID != nil {
		tierID := strings.TrimSpace(*req.TierID)
		if tierID == "" {
			return model.Booking{}, fmt.Errorf("%w: tier_id must not be empty", model.ErrValidation)
		}
		req.TierID = &tierID
	}
	if err := s.gate.ValidateQuantity(req.Quantity); err != nil {
		return model.Booking{}, err
	}

	var booking model.Booking
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		event, err := s.gate.EventExists(ctx, req.EventID)
		if err != nil {
			return err
		}
		var tier model.TicketTier
		if req.TierID != nil {
			if tier, err = s.gate.TierExists(ctx, event.ID, *req.TierID); err != nil {
				return err
			}
		}

		if event.IsFull() {
			return fmt.Errorf("%w: event is sold out", model.ErrInsufficientInventory)
		}
		if !HasSufficientStock(event.AvailableSeats, req.Quantity) {
			return fmt.Errorf("%w: %d seats available", model.ErrInsufficientInventory, event.AvailableSeats)
		}

		total := decimal.Zero
		if req.TierID != nil {
			if !HasSufficientStock(tier.AvailableQuantity, req.Quantity) {
				return fmt.Errorf("%w: %d tickets left in tier %q",
					model.ErrInsufficientInventory, tier.AvailableQuantity, tier.Name)
			}
			total = tier.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
			if total.GreaterThan(model.MaxBookingTotal) {
				return fmt.Errorf("%w: total price cannot exceed %s", model.ErrValidation, model.MaxBookingTotal.StringFixed(2))
			}
		}

		if err := s.store.DecrementSeats(ctx, event.ID, req.Quantity); err != nil {
			return err
		}
		if req.TierID != nil {
			if err := s.store.DecrementTierQuantity(ctx, *req.TierID, req.Quantity); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		booking = model.Booking{
			ID:         uuid.NewString(),
			UserID:     caller.UserID,
			EventID:    event.ID,
			TierID:     req.TierID,
			Quantity:   req.Quantity,
			TotalPrice: total,
			Status:     model.BookingStatusConfirmed,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return s.store.InsertBooking(ctx, booking)
	})
	if err != nil {
		return model.Booking{}, err
	}
	return booking, nil
}

// Cancel moves a confirmed booking to cancelled and returns its seats and
// tier units. Only the owner or an admin may cancel; anyone else gets
// model.ErrNotFound.
func (s *BookingService) Cancel(ctx context.Context, caller model.Caller, bookingID string) (model.Booking, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "BookingService.Cancel", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	defer span.End()

	booking, err := s.cancel(ctx, caller, bookingID)
	s.observe(ctx, span, opCancel, start, err)

	if err != nil {
		s.audit.Record(ctx, audit.Entry{
			ActorID:       caller.UserID,
			Action:        audit.ActionBookingCancelFailed,
			ResourceType:  audit.ResourceBooking,
			ResourceID:    bookingID,
			Details:       map[string]any{"error_kind": model.ErrorKind(err)},
			OriginAddress: audit.OriginAddress(ctx),
		})
		return model.Booking{}, err
	}

	metrics.BookingsCancelled.Inc()
	details := map[string]any{
		"event_id": booking.EventID,
		"quantity": booking.Quantity,
		"owner_id": booking.UserID,
	}
	if booking.TierID != nil {
		details["tier_id"] = *booking.TierID
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID:       caller.UserID,
		Action:        audit.ActionBookingCancelled,
		ResourceType:  audit.ResourceBooking,
		ResourceID:    booking.ID,
		Details:       details,
		OriginAddress: audit.OriginAddress(ctx),
	})
	return booking, nil
}

func (s *BookingService) cancel(ctx context.Context, caller model.Caller, bookingID string) (model.Booking, error) {
	if err := authorize(caller); err != nil {
		return model.Booking{}, err
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return model.Booking{}, fmt.Errorf("%w: booking id is required", model.ErrValidation)
	}

	var booking model.Booking
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.store.GetBookingForUpdate(ctx, bookingID, ownerScope(caller))
		if err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(model.BookingStatusCancelled) {
			if b.Status.Terminal() {
				return model.ErrAlreadyCancelled
			}
			return fmt.Errorf("booking %s has unexpected status %q", b.ID, b.Status)
		}

		if err := s.store.MarkBookingCancelled(ctx, b.ID); err != nil {
			return err
		}
		if err := s.store.IncrementSeats(ctx, b.EventID, b.Quantity); err != nil {
			return fmt.Errorf("release seats: %w", err)
		}
		if b.TierID != nil {
			if err := s.store.IncrementTierQuantity(ctx, *b.TierID, b.Quantity); err != nil {
				return fmt.Errorf("release tier quantity: %w", err)
			}
		}

		b.Status = model.BookingStatusCancelled
		b.UpdatedAt = s.now().UTC()
		booking = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	return booking, nil
}

// GetBooking returns one booking. Non-admin callers only see their own.
func (s *BookingService) GetBooking(ctx context.Context, caller model.Caller, bookingID string) (model.Booking, error) {
	if err := authorize(caller); err != nil {
		return model.Booking{}, err
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return model.Booking{}, fmt.Errorf("%w: booking id is required", model.ErrValidation)
	}
	return s.store.GetBooking(ctx, bookingID, ownerScope(caller))
}

// ListBookings returns a page of bookings. Non-admin callers are always
// restricted to their own bookings, whatever the filter says.
func (s *BookingService) ListBookings(ctx context.Context, caller model.Caller, filter model.BookingFilter) ([]model.Booking, error) {
	if err := authorize(caller); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		filter.UserID = caller.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, filter.Status)
	}
	if filter.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", model.ErrValidation)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultPageSize
	case filter.Limit > maxPageSize:
		filter.Limit = maxPageSize
	}
	return s.store.ListBookings(ctx, filter)
}

// observe records metrics and span status for one finished operation. Errors
// outside the domain taxonomy are logged in full here; callers only ever see
// them as an opaque failure.
func (s *BookingService) observe(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	kind := model.ErrorKind(err)
	metrics.ObserveTransaction(operation, start, kind)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	span.SetAttributes(attribute.String("error.kind", kind))
	if kind == "storage_failure" {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		logging.FromContext(ctx).
			WithError(err).
			WithField("operation", operation).
			Error("booking transaction failed")
		return
	}
	span.SetStatus(codes.Error, kind)
	logging.FromContext(ctx).
		WithField("operation", operation).
		WithField("error_kind", kind).
		Debug(err.Error())
}

func authorize(caller model.Caller) error {
	if caller.UserID == "" || !caller.Role.Valid() {
		return model.ErrForbidden
	}
	return nil
}

func ownerScope(caller model.Caller) string {
	if caller.IsAdmin() {
		return ""
	}
	return caller.UserID
}
