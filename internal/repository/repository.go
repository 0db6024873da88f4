// Package repository implements all database queries for the event booking system.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

const eventColumns = `id, name, description, venue, starts_at, capacity, available_seats, created_at, updated_at`

const tierColumns = `id, event_id, name, price::text, quantity, available_quantity`

// EventRepository handles persistence for events and their ticket tiers.
// It never writes the live counters after creation; that is InventoryRepository's job.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event and its tiers in one transaction. Counters start
// at the full allotment.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	now := time.Now().UTC()
	event := &model.Event{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Description:    req.Description,
		Venue:          req.Venue,
		StartsAt:       req.StartsAt,
		Capacity:       req.Capacity,
		AvailableSeats: req.Capacity,
		Tiers:          make([]model.TicketTier, 0, len(req.Tiers)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := database.WithTx(ctx, r.db, func(ctx context.Context) error {
		tx, err := database.MustTx(ctx)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO events (id, name, description, venue, starts_at, capacity, available_seats, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			event.ID, event.Name, event.Description, event.Venue, event.StartsAt,
			event.Capacity, event.AvailableSeats, event.CreatedAt, event.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		for _, tr := range req.Tiers {
			tier := model.TicketTier{
				ID:                uuid.New().String(),
				EventID:           event.ID,
				Name:              tr.Name,
				Price:             tr.Price,
				Quantity:          tr.Quantity,
				AvailableQuantity: tr.Quantity,
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO ticket_tiers (id, event_id, name, price, quantity, available_quantity)
				 VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
				tier.ID, tier.EventID, tier.Name, tier.Price.String(), tier.Quantity, tier.AvailableQuantity,
			)
			if err != nil {
				if database.IsUniqueViolation(err) {
					return fmt.Errorf("%w: duplicate tier name %q", model.ErrValidation, tier.Name)
				}
				return fmt.Errorf("insert tier: %w", err)
			}
			event.Tiers = append(event.Tiers, tier)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// List returns all events ordered by creation time descending, tiers included.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	index := make(map[string]int)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		e.Tiers = []model.TicketTier{}
		index[e.ID] = len(events)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	if len(events) == 0 {
		return events, nil
	}

	tiers, err := r.queryTiers(ctx, `SELECT `+tierColumns+` FROM ticket_tiers ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	for _, t := range tiers {
		if i, ok := index[t.EventID]; ok {
			events[i].Tiers = append(events[i].Tiers, t)
		}
	}
	return events, nil
}

// GetByID returns a single event with its tiers or model.ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, err
	}

	tiers, err := r.queryTiers(ctx,
		`SELECT `+tierColumns+` FROM ticket_tiers WHERE event_id = $1 ORDER BY created_at ASC, name ASC`, id)
	if err != nil {
		return nil, err
	}
	e.Tiers = tiers
	return &e, nil
}

// Update applies a partial update to the descriptive fields of an event.
// Only supplied fields are written; values are bound as named parameters and
// column names come from a fixed whitelist.
func (r *EventRepository) Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	sets, args := buildEventUpdate(req)
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args["id"] = id

	sql := `UPDATE events SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()
		 WHERE id = @id
		 RETURNING ` + eventColumns

	e, err := scanEvent(r.db.QueryRow(ctx, sql, args))
	if err != nil {
		return nil, err
	}

	tiers, err := r.queryTiers(ctx,
		`SELECT `+tierColumns+` FROM ticket_tiers WHERE event_id = $1 ORDER BY created_at ASC, name ASC`, id)
	if err != nil {
		return nil, err
	}
	e.Tiers = tiers
	return &e, nil
}

type eventField struct {
	column string
	value  func(model.UpdateEventRequest) (any, bool)
}

var updatableEventFields = []eventField{
	{"name", func(r model.UpdateEventRequest) (any, bool) { return deref(r.Name) }},
	{"description", func(r model.UpdateEventRequest) (any, bool) { return deref(r.Description) }},
	{"venue", func(r model.UpdateEventRequest) (any, bool) { return deref(r.Venue) }},
	{"starts_at", func(r model.UpdateEventRequest) (any, bool) {
		if r.StartsAt == nil {
			return nil, false
		}
		return r.StartsAt.UTC(), true
	}},
}

func buildEventUpdate(req model.UpdateEventRequest) ([]string, pgx.NamedArgs) {
	var sets []string
	args := pgx.NamedArgs{}
	for _, f := range updatableEventFields {
		v, ok := f.value(req)
		if !ok {
			continue
		}
		sets = append(sets, f.column+" = @"+f.column)
		args[f.column] = v
	}
	return sets, args
}

func deref(s *string) (any, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

func (r *EventRepository) queryTiers(ctx context.Context, sql string, args ...any) ([]model.TicketTier, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	tiers := []model.TicketTier{}
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tiers: %w", err)
	}
	return tiers, nil
}

func scanEvent(row pgx.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Venue, &e.StartsAt,
		&e.Capacity, &e.AvailableSeats, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Event{}, model.ErrNotFound
		}
		return model.Event{}, fmt.Errorf("scan event: %w", err)
	}
	return e, nil
}

func scanTier(row pgx.Row) (model.TicketTier, error) {
	var t model.TicketTier
	var price string
	err := row.Scan(&t.ID, &t.EventID, &t.Name, &price, &t.Quantity, &t.AvailableQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TicketTier{}, model.ErrNotFound
		}
		return model.TicketTier{}, fmt.Errorf("scan tier: %w", err)
	}
	t.Price, err = decimal.NewFromString(price)
	if err != nil {
		return model.TicketTier{}, fmt.Errorf("parse tier price: %w", err)
	}
	return t, nil
}
