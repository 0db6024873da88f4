package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists audit entries into activity_logs.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Insert writes e. Redelivered entries are ignored by id.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO activity_logs (id, actor_id, action, resource_type, resource_id, details, origin_address, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.ActorID, e.Action, e.ResourceType, e.ResourceID, string(details), e.OriginAddress, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByResource returns entries for one resource, oldest first.
func (s *Store) ListByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, actor_id, action, resource_type, resource_id, details::text, origin_address, occurred_at
		 FROM activity_logs
		 WHERE resource_type = $1 AND resource_id = $2
		 ORDER BY occurred_at ASC, recorded_at ASC`,
		resourceType, resourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			details string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.ResourceType, &e.ResourceID, &details, &e.OriginAddress, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshal audit details: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
