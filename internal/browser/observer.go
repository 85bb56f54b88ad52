package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/fortuna/headshot/internal/dom"
)

// ErrAlreadyObserving is returned by a second Observe on the same session.
var ErrAlreadyObserving = errors.New("browser: observer already installed")

// nodeSnapshot is a node as described by observerJS.
type nodeSnapshot struct {
	Pitch  bool `json:"pitch"`
	Inside bool `json:"inside"`
}

func (n nodeSnapshot) IsOrContains(substr string) bool {
	return substr == dom.PitchElementClass && n.Pitch
}

func (n nodeSnapshot) Within(substr string) bool {
	return substr == dom.PitchElementClass && n.Inside
}

type recordSnapshot struct {
	Kind      string         `json:"kind"`
	Attribute string         `json:"attribute"`
	Target    nodeSnapshot   `json:"target"`
	Added     []nodeSnapshot `json:"added"`
	Removed   []nodeSnapshot `json:"removed"`
}

func toMutations(records []recordSnapshot) []dom.Mutation {
	out := make([]dom.Mutation, 0, len(records))
	for _, r := range records {
		m := dom.Mutation{
			Kind:      dom.MutationKind(r.Kind),
			Target:    r.Target,
			Attribute: strings.ToLower(r.Attribute),
		}
		for _, n := range r.Added {
			m.Added = append(m.Added, n)
		}
		for _, n := range r.Removed {
			m.Removed = append(m.Removed, n)
		}
		out = append(out, m)
	}
	return out
}

// batchQueue is an unbounded FIFO between the event goroutine, which must
// never block, and the observer channel.
type batchQueue struct {
	mu      sync.Mutex
	pending [][]dom.Mutation
	notify  chan struct{}
}

func newBatchQueue() *batchQueue {
	return &batchQueue{notify: make(chan struct{}, 1)}
}

func (q *batchQueue) push(batch []dom.Mutation) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, batch)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *batchQueue) take() [][]dom.Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Observe installs the body observer in the current document and in every
// document the tab loads afterwards.
func (s *Session) Observe(ctx context.Context) (<-chan []dom.Mutation, error) {
	s.mu.Lock()
	if s.observing {
		s.mu.Unlock()
		return nil, ErrAlreadyObserving
	}
	s.observing = true
	q := newBatchQueue()
	s.queue = q
	s.mu.Unlock()

	install := chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(observerJS).Do(ctx)
		return err
	})
	tctx, cancel := s.scoped(ctx, evalTimeout)
	var installed bool
	err := chromedp.Run(tctx, install, chromedp.Evaluate(observerJS, &installed))
	cancel()
	if err != nil {
		s.mu.Lock()
		s.observing = false
		s.queue = nil
		s.mu.Unlock()
		return nil, fmt.Errorf("installing mutation observer: %w", err)
	}
	if !installed {
		s.logger.Printf("⚠️  Page already had an observer installed; reusing it")
	}

	out := make(chan []dom.Mutation)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			s.queue = nil
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.tab.Done():
				return
			case <-q.notify:
			}
			for _, b := range q.take() {
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
