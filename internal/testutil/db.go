// Package testutil provides PostgreSQL fixtures for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Shivanand-hulikatti/event-booking/internal/database/migrations"
)

const testDBLockID int64 = 724130552

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// NewTestPool connects to TEST_DATABASE_URL or, when unset, to a throwaway
// postgres container. Tests are skipped when neither is available. Callers
// hold an advisory lock for the test's lifetime so packages do not truncate
// each other's data.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		containerOnce.Do(func() {
			containerDSN, containerErr = startPostgres()
		})
		if containerErr != nil {
			t.Skipf("skipping Postgres integration tests: %v", containerErr)
		}
		dsn = containerDSN
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	cfg.MaxConns = 8

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	t.Cleanup(pool.Close)

	lockTestDB(t, pool)

	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	return pool
}

func startPostgres() (string, error) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "eventbooking_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return "", fmt.Errorf("container port: %w", err)
	}
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/eventbooking_test?sslmode=disable", host, port.Port()), nil
}

// TruncateAll empties every application table.
func TruncateAll(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(ctx, `TRUNCATE activity_logs, bookings, ticket_tiers, events RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

// InsertEvent creates an event with all seats available and returns its id.
func InsertEvent(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name string, capacity int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO events (id, name, capacity, available_seats) VALUES ($1, $2, $3, $3)`,
		id, name, capacity,
	)
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return id
}

// InsertTier creates a fully available tier for eventID and returns its id.
func InsertTier(t *testing.T, ctx context.Context, pool *pgxpool.Pool, eventID, name, price string, quantity int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO ticket_tiers (id, event_id, name, price, quantity, available_quantity)
		 VALUES ($1, $2, $3, $4::numeric, $5, $5)`,
		id, eventID, name, price, quantity,
	)
	if err != nil {
		t.Fatalf("insert tier: %v", err)
	}
	return id
}

// AvailableSeats reads the live seat counter of an event.
func AvailableSeats(t *testing.T, ctx context.Context, pool *pgxpool.Pool, eventID string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(ctx, `SELECT available_seats FROM events WHERE id = $1`, eventID).Scan(&n); err != nil {
		t.Fatalf("read available_seats: %v", err)
	}
	return n
}

// AvailableQuantity reads the live counter of a tier.
func AvailableQuantity(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tierID string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(ctx, `SELECT available_quantity FROM ticket_tiers WHERE id = $1`, tierID).Scan(&n); err != nil {
		t.Fatalf("read available_quantity: %v", err)
	}
	return n
}

// CountBookings returns the number of ledger rows for eventID.
func CountBookings(t *testing.T, ctx context.Context, pool *pgxpool.Pool, eventID string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	return n
}

func lockTestDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		conn.Release()
		t.Fatalf("acquire test lock: %v", err)
	}

	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		conn.Release()
	})
}
