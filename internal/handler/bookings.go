package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-booking/internal/audit"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// BookingService is the booking engine used by BookingHandler.
type BookingService interface {
	Reserve(ctx context.Context, caller model.Caller, req model.CreateBookingRequest) (model.Booking, error)
	Cancel(ctx context.Context, caller model.Caller, bookingID string) (model.Booking, error)
	GetBooking(ctx context.Context, caller model.Caller, bookingID string) (model.Booking, error)
	ListBookings(ctx context.Context, caller model.Caller, filter model.BookingFilter) ([]model.Booking, error)
}

// BookingHandler exposes reservations and cancellations over HTTP. Every
// route expects Identity to have run.
type BookingHandler struct {
	svc   BookingService
	audit audit.Sink
}

// NewBookingHandler wires svc. Requests rejected before they reach svc are
// recorded on sink; a nil sink discards them.
func NewBookingHandler(svc BookingService, sink audit.Sink) *BookingHandler {
	if sink == nil {
		sink = audit.Discard
	}
	return &BookingHandler{svc: svc, audit: sink}
}

// CreateBooking handles POST /bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.audit.Record(r.Context(), audit.Entry{
			ActorID:       callerFrom(r.Context()).UserID,
			Action:        audit.ActionBookingCreateFailed,
			ResourceType:  audit.ResourceEvent,
			Details:       map[string]any{"error_kind": "validation", "reason": "malformed request body"},
			OriginAddress: audit.OriginAddress(r.Context()),
		})
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	booking, err := h.svc.Reserve(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// CancelBooking handles POST /bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.svc.Cancel(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// GetBooking handles GET /bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.svc.GetBooking(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// ListBookings handles GET /bookings?event_id=&status=&limit=&offset=
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.BookingFilter{
		EventID: q.Get("event_id"),
		Status:  model.BookingStatus(q.Get("status")),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	bookings, err := h.svc.ListBookings(r.Context(), callerFrom(r.Context()), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// ActivityReader reads persisted audit entries.
type ActivityReader interface {
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]audit.Entry, error)
}

// BookingActivity handles GET /bookings/{id}/activity
// Returns the audit trail recorded for one booking, oldest first.
func BookingActivity(reader ActivityReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := reader.ListByResource(r.Context(), audit.ResourceBooking, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if entries == nil {
			entries = []audit.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
