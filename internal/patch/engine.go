// Package patch swaps shirt icons on pitch elements for player photos.
//
// A pass visits every pitch element independently. The engine writes only
// when an image does not already carry its target URLs; since every write is
// itself a DOM mutation, that check is what keeps the mutation watcher from
// re-triggering itself forever.
package patch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/headshot/internal/dom"
	"github.com/fortuna/headshot/internal/ingest/reference"
)

// Outcome is what happened to one slot during a pass.
type Outcome string

const (
	Patched         Outcome = "patched"
	SkipPartial     Outcome = "partial"
	SkipNoMatch     Outcome = "no_match"
	SkipUpToDate    Outcome = "up_to_date"
	SkipUnavailable Outcome = "unavailable"
	SkipDetached    Outcome = "detached"
	Failed          Outcome = "failed"
	LoadFailed      Outcome = "load_failed"
)

// Resolver maps a displayed name and team to a reference record.
type Resolver interface {
	Resolve(name, team string, records []reference.PlayerRecord) (*reference.PlayerRecord, bool)
}

// Checker answers whether a photo URL exists.
type Checker interface {
	Exists(ctx context.Context, url string) bool
}

// PassResult summarizes one ApplyAll call.
type PassResult struct {
	PassID   string          `json:"pass_id"`
	Started  time.Time       `json:"started"`
	Duration time.Duration   `json:"duration"`
	Slots    int             `json:"slots"`
	Writes   int             `json:"writes"`
	Outcomes map[Outcome]int `json:"outcomes"`
	Err      string          `json:"error,omitempty"`
}

// Engine runs patch passes.
type Engine struct {
	resolver  Resolver
	checker   Checker
	photoBase string
	recorder  Recorder
	logger    *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPhotoBaseURL overrides DefaultPhotoBaseURL.
func WithPhotoBaseURL(base string) Option {
	return func(e *Engine) {
		if base != "" {
			e.photoBase = base
		}
	}
}

// WithRecorder reports every slot outcome to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine.
func NewEngine(resolver Resolver, checker Checker, opts ...Option) *Engine {
	e := &Engine{
		resolver:  resolver,
		checker:   checker,
		photoBase: DefaultPhotoBaseURL,
		logger:    log.New(log.Writer(), "[patch] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyAll patches every pitch element in doc. Slots are independent: a slot
// that cannot be patched never stops the others. Cancelling ctx stops the
// pass between slots.
func (e *Engine) ApplyAll(ctx context.Context, doc dom.Document, records []reference.PlayerRecord) PassResult {
	res := PassResult{
		PassID:   uuid.NewString(),
		Started:  time.Now(),
		Outcomes: make(map[Outcome]int),
	}

	slots, err := doc.Slots(ctx)
	if err != nil {
		e.logger.Printf("❌ Listing pitch elements: %v", err)
		res.Err = err.Error()
		res.Duration = time.Since(res.Started)
		return res
	}
	res.Slots = len(slots)

	for _, slot := range slots {
		if ctx.Err() != nil {
			res.Err = ctx.Err().Error()
			break
		}
		outcome := e.applySlot(ctx, res.PassID, slot, records)
		res.Outcomes[outcome]++
		if outcome == Patched {
			res.Writes++
		}
	}

	res.Duration = time.Since(res.Started)
	if res.Writes > 0 {
		e.logger.Printf("✓ Pass %s: patched %d of %d slots", res.PassID[:8], res.Writes, res.Slots)
	}
	return res
}

func (e *Engine) applySlot(ctx context.Context, passID string, slot dom.Slot, records []reference.PlayerRecord) Outcome {
	name, hasName := slot.Name()
	team, hasTeam := slot.Team()
	img, hasImg := slot.Image()
	if !hasName || !hasTeam || !hasImg {
		return SkipPartial
	}

	ev := Event{PassID: passID, Name: name, Team: team}

	player, ok := e.resolver.Resolve(name, team, records)
	if !ok {
		return SkipNoMatch
	}
	ev.PhotoCode = player.PhotoCode
	ev.FullName = player.FullName

	target := Targets(e.photoBase, player.PhotoCode)
	ev.Src = target.Src
	previous := img.Srcset()
	if target.Matches(img.Src(), previous) {
		return SkipUpToDate
	}

	if !e.checker.Exists(ctx, target.Src) {
		e.logger.Printf("⚠️  No photo for %s (%s) at %s", name, team, target.Src)
		return e.record(ctx, ev, SkipUnavailable, nil)
	}

	// The probe may have suspended long enough for the page to re-render.
	if !slot.Connected(ctx) {
		return SkipDetached
	}

	target.RevertSrcset = previous
	written, err := img.Apply(ctx, target)
	if errors.Is(err, dom.ErrDetached) {
		return SkipDetached
	}
	if err != nil {
		e.logger.Printf("❌ Patching %s (%s): %v", name, team, err)
		return e.record(ctx, ev, Failed, err)
	}
	if !written {
		return SkipUpToDate
	}

	img.OnError(func() {
		e.logger.Printf("⚠️  Photo failed to load for %s, srcset restored", name)
		e.record(context.WithoutCancel(ctx), ev, LoadFailed, nil)
	})
	return e.record(ctx, ev, Patched, nil)
}
