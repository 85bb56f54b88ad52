package reconciliation

import (
	"strings"
	"time"

	"github.com/fortuna/headshot/internal/ingest/reference"
	"github.com/fortuna/headshot/internal/season"
)

// Matcher resolves the name and team shown on a pitch element to a reference
// player record.
type Matcher struct {
	now        func() time.Time
	exactNames bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithClock overrides the clock used to pick the current season.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// WithExactNames requires the displayed name to equal the record name instead
// of being contained in it.
func WithExactNames(exact bool) Option {
	return func(m *Matcher) { m.exactNames = exact }
}

// NewMatcher creates a new player matcher
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the first record, in collection order, whose name and team
// match. When several records qualify the earliest wins.
func (m *Matcher) Resolve(name, team string, records []reference.PlayerRecord) (*reference.PlayerRecord, bool) {
	name = strings.TrimSpace(name)
	team = strings.TrimSpace(team)
	if name == "" || team == "" {
		return nil, false
	}

	current := season.Key(m.now())
	for i := range records {
		rec := &records[i]
		if !m.matchName(rec.DisplayName, name) {
			continue
		}
		if matchTeam(rec.TeamBySeason, current, team) {
			return rec, true
		}
	}
	return nil, false
}

// matchName checks the record name against the displayed one
func (m *Matcher) matchName(recordName, displayed string) bool {
	if m.exactNames {
		return strings.EqualFold(recordName, displayed)
	}
	return strings.Contains(strings.ToLower(recordName), strings.ToLower(displayed))
}

// matchTeam prefers the current season's team. Only when the dataset has no
// entry for the current season is any other season accepted.
func matchTeam(teams map[string]string, current, displayed string) bool {
	if t, ok := teams[current]; ok {
		return strings.EqualFold(t, displayed)
	}
	for _, t := range teams {
		if strings.EqualFold(t, displayed) {
			return true
		}
	}
	return false
}
