// Package watch re-runs patch passes when the host page re-renders its pitch.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/fortuna/headshot/internal/dom"
)

// ErrAlreadyRunning is returned by a second Run on the same Watcher.
var ErrAlreadyRunning = errors.New("watcher already running")

// PassFunc runs one full patch pass.
type PassFunc func(ctx context.Context)

// Stats are counters exposed on the status API.
type Stats struct {
	Observing bool  `json:"observing"`
	Batches   int64 `json:"batches"`
	Relevant  int64 `json:"relevant"`
	Passes    int64 `json:"passes"`
}

// Watcher observes the document and schedules debounced passes.
type Watcher struct {
	observer dom.Observer
	pass     PassFunc
	delay    time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stats   Stats
}

// New creates a watcher. A zero delay coalesces whatever batches are already
// queued and runs the pass right after; a positive delay additionally waits
// for the page to stay quiet that long.
func New(observer dom.Observer, pass PassFunc, delay time.Duration, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[watch] ", log.LstdFlags)
	}
	if delay < 0 {
		delay = 0
	}
	return &Watcher{
		observer: observer,
		pass:     pass,
		delay:    delay,
		logger:   logger,
	}
}

// Run installs the observer and processes batches until ctx ends or the
// observer stops. Passes run on this goroutine, so they never overlap; a
// batch arriving mid-pass only re-arms the timer for the next one.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.stats.Observing = false
		w.mu.Unlock()
	}()

	batches, err := w.observer.Observe(ctx)
	if err != nil {
		return fmt.Errorf("installing observer: %w", err)
	}
	w.mu.Lock()
	w.stats.Observing = true
	w.mu.Unlock()
	w.logger.Printf("✓ Observing pitch mutations (debounce %v)", w.delay)

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case batch, ok := <-batches:
			if !ok {
				// An armed pass still runs.
				batches = nil
				if fire == nil {
					return nil
				}
				continue
			}
			relevant := w.consider(batch)
			// Coalesce everything already queued behind this batch.
			for drained := false; !drained; {
				select {
				case more, ok := <-batches:
					if !ok {
						drained = true
						batches = nil
						break
					}
					relevant = w.consider(more) || relevant
				default:
					drained = true
				}
			}
			if relevant {
				stopTimer(timer)
				timer.Reset(w.delay)
				fire = timer.C
			}
			if batches == nil && fire == nil {
				return nil
			}

		case <-fire:
			fire = nil
			w.mu.Lock()
			w.stats.Passes++
			w.mu.Unlock()
			w.pass(ctx)
			if batches == nil {
				return nil
			}
		}
	}
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) consider(batch []dom.Mutation) bool {
	relevant := Relevant(batch)
	w.mu.Lock()
	w.stats.Batches++
	if relevant {
		w.stats.Relevant++
	}
	w.mu.Unlock()
	return relevant
}

// Relevant reports whether any record in batch concerns a pitch element.
// Attribute records outside dom.ObservedAttributes are ignored.
func Relevant(batch []dom.Mutation) bool {
	for _, m := range batch {
		if m.Kind == dom.Attributes && !slices.Contains(dom.ObservedAttributes, m.Attribute) {
			continue
		}
		if m.TouchesPitch() {
			return true
		}
	}
	return false
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
