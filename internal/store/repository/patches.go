package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/headshot/internal/patch"
	"github.com/fortuna/headshot/internal/store"
)

// DefaultRecentLimit is used when Recent gets a non-positive limit
const DefaultRecentLimit = 50

// MaxRecentLimit caps Recent
const MaxRecentLimit = 500

// PatchRepository handles patch event data access
type PatchRepository struct {
	db *store.Database
}

// NewPatchRepository creates a new patch repository
func NewPatchRepository(db *store.Database) *PatchRepository {
	return &PatchRepository{db: db}
}

// Record inserts one slot event. It satisfies patch.Recorder.
func (r *PatchRepository) Record(ctx context.Context, ev patch.Event) error {
	query := `
		INSERT INTO patch_events (pass_id, outcome, player_name, team_name,
			full_name, photo_code, src, error, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := r.db.DB().ExecContext(ctx, query,
		ev.PassID, string(ev.Outcome), ev.Name, ev.Team,
		store.NullString(ev.FullName), store.NullString(ev.PhotoCode),
		store.NullString(ev.Src), store.NullString(ev.Error), at,
	)
	if err != nil {
		return fmt.Errorf("inserting patch event: %w", err)
	}
	return nil
}

// Recent returns the latest events, newest first
func (r *PatchRepository) Recent(ctx context.Context, limit int) ([]*store.PatchEvent, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	query := `
		SELECT event_id, pass_id, outcome, player_name, team_name,
			full_name, photo_code, src, error, occurred_at
		FROM patch_events
		ORDER BY occurred_at DESC, event_id DESC
		LIMIT $1
	`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying patch events: %w", err)
	}
	defer rows.Close()

	events := make([]*store.PatchEvent, 0, limit)
	for rows.Next() {
		ev := &store.PatchEvent{}
		err := rows.Scan(
			&ev.EventID, &ev.PassID, &ev.Outcome, &ev.PlayerName, &ev.TeamName,
			&ev.FullName, &ev.PhotoCode, &ev.Src, &ev.Error, &ev.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning patch event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountByOutcome returns event counts per outcome since a point in time
func (r *PatchRepository) CountByOutcome(ctx context.Context, since time.Time) (map[string]int, error) {
	query := `
		SELECT outcome, COUNT(*)
		FROM patch_events
		WHERE occurred_at >= $1
		GROUP BY outcome
	`

	rows, err := r.db.DB().QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("counting patch events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning outcome count: %w", err)
		}
		counts[outcome] = n
	}

	return counts, rows.Err()
}
