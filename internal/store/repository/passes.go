package repository

import (
	"context"
	"database/sql"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/fortuna/headshot/internal/patch"
	"github.com/fortuna/headshot/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PassRepository handles patch pass summaries
type PassRepository struct {
	db *store.Database
}

// NewPassRepository creates a new pass repository
func NewPassRepository(db *store.Database) *PassRepository {
	return &PassRepository{db: db}
}

// Save stores a pass summary; saving the same pass twice is a no-op
func (r *PassRepository) Save(ctx context.Context, res patch.PassResult) error {
	outcomes, err := json.Marshal(res.Outcomes)
	if err != nil {
		return fmt.Errorf("encoding outcomes: %w", err)
	}

	query := `
		INSERT INTO patch_passes (pass_id, started_at, duration_ms, slots, writes, outcomes, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pass_id) DO NOTHING
	`

	_, err = r.db.DB().ExecContext(ctx, query,
		res.PassID, res.Started, res.Duration.Milliseconds(), res.Slots, res.Writes,
		string(outcomes), store.NullString(res.Err),
	)
	if err != nil {
		return fmt.Errorf("inserting patch pass: %w", err)
	}
	return nil
}

// Latest returns the most recent pass, or nil when none was saved yet
func (r *PassRepository) Latest(ctx context.Context) (*store.PatchPass, error) {
	query := `
		SELECT pass_id, started_at, duration_ms, slots, writes, outcomes, error
		FROM patch_passes
		ORDER BY started_at DESC
		LIMIT 1
	`

	p := &store.PatchPass{}
	err := r.db.DB().QueryRowContext(ctx, query).Scan(
		&p.PassID, &p.StartedAt, &p.DurationMS, &p.Slots, &p.Writes, &p.Outcomes, &p.Error,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest pass: %w", err)
	}

	return p, nil
}
