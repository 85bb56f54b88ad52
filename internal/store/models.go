package store

import (
	"database/sql"
	"time"
)

// PatchEvent is one audited slot outcome
type PatchEvent struct {
	EventID    int64          `json:"event_id" db:"event_id"`
	PassID     string         `json:"pass_id" db:"pass_id"`
	Outcome    string         `json:"outcome" db:"outcome"`
	PlayerName string         `json:"player_name" db:"player_name"`
	TeamName   string         `json:"team_name" db:"team_name"`
	FullName   sql.NullString `json:"full_name,omitempty" db:"full_name"`
	PhotoCode  sql.NullString `json:"photo_code,omitempty" db:"photo_code"`
	Src        sql.NullString `json:"src,omitempty" db:"src"`
	Error      sql.NullString `json:"error,omitempty" db:"error"`
	OccurredAt time.Time      `json:"occurred_at" db:"occurred_at"`
}

// PatchPass is the summary of one patch pass
type PatchPass struct {
	PassID     string         `json:"pass_id" db:"pass_id"`
	StartedAt  time.Time      `json:"started_at" db:"started_at"`
	DurationMS int            `json:"duration_ms" db:"duration_ms"`
	Slots      int            `json:"slots" db:"slots"`
	Writes     int            `json:"writes" db:"writes"`
	Outcomes   []byte         `json:"outcomes" db:"outcomes"`
	Error      sql.NullString `json:"error,omitempty" db:"error"`
}

// NullString wraps s, treating "" as NULL
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
