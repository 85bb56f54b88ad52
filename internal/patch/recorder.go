package patch

import (
	"context"
	"errors"
	"time"
)

// Event describes the outcome for one slot. Only outcomes worth auditing are
// recorded: patches, unavailable photos, failed writes and late load failures.
// Skips are counted in PassResult only.
type Event struct {
	PassID    string    `json:"pass_id"`
	Outcome   Outcome   `json:"outcome"`
	Name      string    `json:"name"`
	Team      string    `json:"team"`
	FullName  string    `json:"full_name,omitempty"`
	PhotoCode string    `json:"photo_code,omitempty"`
	Src       string    `json:"src,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Recorder receives patch events. Implementations must not block for long;
// the engine calls them inline.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, ev Event) error

func (f RecorderFunc) Record(ctx context.Context, ev Event) error { return f(ctx, ev) }

// MultiRecorder fans an event out to every recorder and joins their errors.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) record(ctx context.Context, ev Event, outcome Outcome, cause error) Outcome {
	if e.recorder == nil {
		return outcome
	}
	ev.Outcome = outcome
	ev.At = time.Now()
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := e.recorder.Record(ctx, ev); err != nil {
		e.logger.Printf("⚠️  Recording %s event for %s: %v", outcome, ev.Name, err)
	}
	return outcome
}
