package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/audit"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

var (
	errNoTx          = errors.New("memstore: no transaction")
	errCounterBroken = errors.New("memstore: counter above ceiling")
)

type memTxKey struct{}

// memStore is an in-memory InventoryStore. WithTx holds a single lock for the
// whole unit of work and restores a snapshot when fn fails.
type memStore struct {
	mu       sync.Mutex
	events   map[string]model.Event
	tiers    map[string]model.TicketTier
	bookings map[string]model.Booking

	calls     atomic.Int64
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[string]model.Event{},
		tiers:    map[string]model.TicketTier{},
		bookings: map[string]model.Booking{},
	}
}

func (m *memStore) addEvent(id string, capacity int) {
	m.events[id] = model.Event{ID: id, Name: id, Capacity: capacity, AvailableSeats: capacity}
}

func (m *memStore) addTier(id, eventID, price string, quantity int) {
	m.tiers[id] = model.TicketTier{
		ID:                id,
		EventID:           eventID,
		Name:              id,
		Price:             decimal.RequireFromString(price),
		Quantity:          quantity,
		AvailableQuantity: quantity,
	}
}

func (m *memStore) seats(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[eventID].AvailableSeats
}

func (m *memStore) tierLeft(tierID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiers[tierID].AvailableQuantity
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()

	events := cloneMap(m.events)
	tiers := cloneMap(m.tiers)
	bookings := cloneMap(m.bookings)

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.events, m.tiers, m.bookings = events, tiers, bookings
		return err
	}
	return nil
}

func (m *memStore) enter(ctx context.Context) error {
	m.calls.Add(1)
	if ctx.Value(memTxKey{}) == nil {
		return errNoTx
	}
	return nil
}

func (m *memStore) GetEventForUpdate(ctx context.Context, eventID string) (model.Event, error) {
	if err := m.enter(ctx); err != nil {
		return model.Event{}, err
	}
	e, ok := m.events[eventID]
	if !ok {
		return model.Event{}, model.ErrNotFound
	}
	return e, nil
}

func (m *memStore) GetTierForUpdate(ctx context.Context, eventID, tierID string) (model.TicketTier, error) {
	if err := m.enter(ctx); err != nil {
		return model.TicketTier{}, err
	}
	t, ok := m.tiers[tierID]
	if !ok || t.EventID != eventID {
		return model.TicketTier{}, model.ErrNotFound
	}
	return t, nil
}

func (m *memStore) DecrementSeats(ctx context.Context, eventID string, qty int) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	e := m.events[eventID]
	if e.AvailableSeats < qty {
		return model.ErrInsufficientInventory
	}
	e.AvailableSeats -= qty
	m.events[eventID] = e
	return nil
}

func (m *memStore) DecrementTierQuantity(ctx context.Context, tierID string, qty int) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	t := m.tiers[tierID]
	if t.AvailableQuantity < qty {
		return model.ErrInsufficientInventory
	}
	t.AvailableQuantity -= qty
	m.tiers[tierID] = t
	return nil
}

func (m *memStore) IncrementSeats(ctx context.Context, eventID string, qty int) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	e := m.events[eventID]
	if e.AvailableSeats+qty > e.Capacity {
		return errCounterBroken
	}
	e.AvailableSeats += qty
	m.events[eventID] = e
	return nil
}

func (m *memStore) IncrementTierQuantity(ctx context.Context, tierID string, qty int) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	t := m.tiers[tierID]
	if t.AvailableQuantity+qty > t.Quantity {
		return errCounterBroken
	}
	t.AvailableQuantity += qty
	m.tiers[tierID] = t
	return nil
}

func (m *memStore) InsertBooking(ctx context.Context, b model.Booking) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	if m.insertErr != nil {
		return m.insertErr
	}
	m.bookings[b.ID] = b
	return nil
}

func (m *memStore) GetBookingForUpdate(ctx context.Context, bookingID, ownerID string) (model.Booking, error) {
	if err := m.enter(ctx); err != nil {
		return model.Booking{}, err
	}
	return m.lookup(bookingID, ownerID)
}

func (m *memStore) MarkBookingCancelled(ctx context.Context, bookingID string) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	b := m.bookings[bookingID]
	if b.Status != model.BookingStatusConfirmed {
		return model.ErrAlreadyCancelled
	}
	b.Status = model.BookingStatusCancelled
	m.bookings[bookingID] = b
	return nil
}

func (m *memStore) GetBooking(_ context.Context, bookingID, ownerID string) (model.Booking, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(bookingID, ownerID)
}

func (m *memStore) ListBookings(_ context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Booking{}
	for _, b := range m.bookings {
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		if filter.EventID != "" && b.EventID != filter.EventID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Offset >= len(out) {
		return []model.Booking{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) lookup(bookingID, ownerID string) (model.Booking, error) {
	b, ok := m.bookings[bookingID]
	if !ok || (ownerID != "" && b.UserID != ownerID) {
		return model.Booking{}, model.ErrNotFound
	}
	return b, nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *auditRecorder) Record(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *auditRecorder) last() audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return audit.Entry{}
	}
	return r.entries[len(r.entries)-1]
}

func (r *auditRecorder) count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}
