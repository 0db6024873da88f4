package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// ErrCounterInvariant is returned when a compensating increment would push a
// counter above its ceiling. It indicates corrupted state, not a caller error.
var ErrCounterInvariant = errors.New("inventory counter invariant violated")

const bookingColumns = `id, user_id, event_id, tier_id, quantity, total_price::text, status, created_at, updated_at`

// InventoryRepository owns the live counters and the booking ledger.
//
// Every method that writes a counter or a booking requires a transaction
// started by WithTx and fails with database.ErrNoTransaction otherwise. Reads
// used for a mutation decision take row locks (FOR UPDATE) so the check and
// the write see the same row version.
type InventoryRepository struct {
	db *pgxpool.Pool
}

// NewInventoryRepository constructs an InventoryRepository.
func NewInventoryRepository(db *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// WithTx runs fn as one atomic unit of work.
func (r *InventoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, r.db, fn)
}

// GetEventForUpdate re-reads an event row and locks it until the transaction ends.
func (r *InventoryRepository) GetEventForUpdate(ctx context.Context, eventID string) (model.Event, error) {
	tx, err := database.MustTx(ctx)
	if err != nil {
		return model.Event{}, err
	}
	return scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
}

// GetTierForUpdate re-reads a tier scoped to eventID and locks it. A tier of
// another event is reported as model.ErrNotFound.
func (r *InventoryRepository) GetTierForUpdate(ctx context.Context, eventID, tierID string) (model.TicketTier, error) {
	tx, err := database.MustTx(ctx)
	if err != nil {
		return model.TicketTier{}, err
	}
	return scanTier(tx.QueryRow(ctx,
		`SELECT `+tierColumns+` FROM ticket_tiers WHERE id = $1 AND event_id = $2 FOR UPDATE`,
		tierID, eventID))
}

// DecrementSeats takes qty seats from an event. The update only applies when
// enough seats remain; zero affected rows means model.ErrInsufficientInventory.
func (r *InventoryRepository) DecrementSeats(ctx context.Context, eventID string, qty int) error {
	return r.conditionalUpdate(ctx,
		`UPDATE events
		 SET available_seats = available_seats - $2, updated_at = NOW()
		 WHERE id = $1 AND available_seats >= $2`,
		model.ErrInsufficientInventory, eventID, qty)
}

// DecrementTierQuantity takes qty units from a tier, guarded like DecrementSeats.
func (r *InventoryRepository) DecrementTierQuantity(ctx context.Context, tierID string, qty int) error {
	return r.conditionalUpdate(ctx,
		`UPDATE ticket_tiers
		 SET available_quantity = available_quantity - $2
		 WHERE id = $1 AND available_quantity >= $2`,
		model.ErrInsufficientInventory, tierID, qty)
}

// IncrementSeats returns qty seats to an event without exceeding capacity.
func (r *InventoryRepository) IncrementSeats(ctx context.Context, eventID string, qty int) error {
	return r.conditionalUpdate(ctx,
		`UPDATE events
		 SET available_seats = available_seats + $2, updated_at = NOW()
		 WHERE id = $1 AND available_seats + $2 <= capacity`,
		ErrCounterInvariant, eventID, qty)
}

// IncrementTierQuantity returns qty units to a tier without exceeding its quantity.
func (r *InventoryRepository) IncrementTierQuantity(ctx context.Context, tierID string, qty int) error {
	return r.conditionalUpdate(ctx,
		`UPDATE ticket_tiers
		 SET available_quantity = available_quantity + $2
		 WHERE id = $1 AND available_quantity + $2 <= quantity`,
		ErrCounterInvariant, tierID, qty)
}

// InsertBooking appends a booking to the ledger.
func (r *InventoryRepository) InsertBooking(ctx context.Context, b model.Booking) error {
	tx, err := database.MustTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO bookings (id, user_id, event_id, tier_id, quantity, total_price, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`,
		b.ID, b.UserID, b.EventID, b.TierID, b.Quantity, b.TotalPrice.String(), string(b.Status), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: event or tier no longer exists", model.ErrNotFound)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetBookingForUpdate locks a booking row. When ownerID is non-empty the read
// is scoped to that owner and a foreign booking is model.ErrNotFound.
func (r *InventoryRepository) GetBookingForUpdate(ctx context.Context, bookingID, ownerID string) (model.Booking, error) {
	tx, err := database.MustTx(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	if ownerID == "" {
		return scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, bookingID))
	}
	return scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		bookingID, ownerID))
}

// MarkBookingCancelled performs the confirmed -> cancelled transition. Zero
// affected rows means the booking was not confirmed any more.
func (r *InventoryRepository) MarkBookingCancelled(ctx context.Context, bookingID string) error {
	return r.conditionalUpdate(ctx,
		`UPDATE bookings
		 SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		model.ErrAlreadyCancelled, bookingID,
		string(model.BookingStatusCancelled), string(model.BookingStatusConfirmed))
}

// GetBooking reads a booking without locking, optionally scoped to ownerID.
func (r *InventoryRepository) GetBooking(ctx context.Context, bookingID, ownerID string) (model.Booking, error) {
	q := database.Conn(ctx, r.db)
	if ownerID == "" {
		return scanBooking(q.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID))
	}
	return scanBooking(q.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND user_id = $2`, bookingID, ownerID))
}

// ListBookings returns bookings matching filter, newest first.
func (r *InventoryRepository) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.EventID != "" {
		add("event_id = $%d", filter.EventID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	sql := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sql += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := database.Conn(ctx, r.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

func (r *InventoryRepository) conditionalUpdate(ctx context.Context, sql string, noRows error, args ...any) error {
	tx, err := database.MustTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		if database.IsCheckViolation(err) {
			return fmt.Errorf("%w: %v", ErrCounterInvariant, err)
		}
		return fmt.Errorf("update inventory: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return noRows
	}
	return nil
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var (
		b      model.Booking
		total  string
		status string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.EventID, &b.TierID, &b.Quantity, &total, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Booking{}, model.ErrNotFound
		}
		return model.Booking{}, fmt.Errorf("scan booking: %w", err)
	}
	b.Status = model.BookingStatus(status)
	b.TotalPrice, err = decimal.NewFromString(total)
	if err != nil {
		return model.Booking{}, fmt.Errorf("parse booking total: %w", err)
	}
	return b, nil
}
