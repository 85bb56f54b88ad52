package watch

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortuna/headshot/internal/dom"
)

type stubNode struct {
	pitch  bool
	inside bool
}

func (n stubNode) IsOrContains(string) bool { return n.pitch }
func (n stubNode) Within(string) bool       { return n.inside }

type chanObserver struct {
	ch    chan []dom.Mutation
	calls int
}

func (o *chanObserver) Observe(ctx context.Context) (<-chan []dom.Mutation, error) {
	o.calls++
	return o.ch, nil
}

var (
	pitchBatch = []dom.Mutation{{Kind: dom.ChildList, Target: stubNode{}, Added: []dom.Node{stubNode{pitch: true}}}}
	noiseBatch = []dom.Mutation{{Kind: dom.ChildList, Target: stubNode{}, Added: []dom.Node{stubNode{}}}}
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestRelevant(t *testing.T) {
	cases := []struct {
		name  string
		batch []dom.Mutation
		want  bool
	}{
		{"added pitch", pitchBatch, true},
		{"unrelated node", noiseBatch, false},
		{"removed pitch", []dom.Mutation{{Kind: dom.ChildList, Target: stubNode{}, Removed: []dom.Node{stubNode{pitch: true}}}}, true},
		{"text inside pitch", []dom.Mutation{{Kind: dom.CharacterData, Target: stubNode{inside: true}}}, true},
		{"class on pitch", []dom.Mutation{{Kind: dom.Attributes, Attribute: "class", Target: stubNode{pitch: true}}}, true},
		{"srcset on pitch", []dom.Mutation{{Kind: dom.Attributes, Attribute: "srcset", Target: stubNode{inside: true}}}, false},
		{"empty", nil, false},
	}
	for _, c := range cases {
		if got := Relevant(c.batch); got != c.want {
			t.Errorf("%s: Relevant = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestRunCoalescesQueuedBatches(t *testing.T) {
	obs := &chanObserver{ch: make(chan []dom.Mutation, 16)}
	for i := 0; i < 10; i++ {
		obs.ch <- pitchBatch
	}
	close(obs.ch)

	var passes atomic.Int32
	w := New(obs, func(ctx context.Context) { passes.Add(1) }, 0, quiet())

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := passes.Load(); got != 1 {
		t.Errorf("passes = %d, want 1", got)
	}
	if obs.calls != 1 {
		t.Errorf("Observe called %d times, want 1", obs.calls)
	}
	s := w.Stats()
	if s.Batches != 10 || s.Relevant != 10 || s.Passes != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRunDebouncesBurstWithinWindow(t *testing.T) {
	obs := &chanObserver{ch: make(chan []dom.Mutation)}
	ran := make(chan struct{}, 10)
	w := New(obs, func(ctx context.Context) { ran <- struct{}{} }, 100*time.Millisecond, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		obs.ch <- pitchBatch
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("pass never ran")
	}
	select {
	case <-ran:
		t.Fatal("burst triggered more than one pass")
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestRunFinishesArmedPassWhenObserverCloses(t *testing.T) {
	obs := &chanObserver{ch: make(chan []dom.Mutation)}
	var passes atomic.Int32
	w := New(obs, func(ctx context.Context) { passes.Add(1) }, 50*time.Millisecond, quiet())

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	obs.ch <- pitchBatch
	close(obs.ch)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if got := passes.Load(); got != 1 {
		t.Errorf("passes = %d, want the armed pass to run", got)
	}
}

func TestRunIgnoresIrrelevantBatches(t *testing.T) {
	obs := &chanObserver{ch: make(chan []dom.Mutation, 4)}
	obs.ch <- noiseBatch
	obs.ch <- noiseBatch
	close(obs.ch)

	var passes atomic.Int32
	w := New(obs, func(ctx context.Context) { passes.Add(1) }, 0, quiet())
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if passes.Load() != 0 {
		t.Errorf("irrelevant mutations triggered %d passes", passes.Load())
	}
}

func TestRunRejectsSecondInstall(t *testing.T) {
	obs := &chanObserver{ch: make(chan []dom.Mutation)}
	w := New(obs, func(context.Context) {}, 0, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Wait for the first Run to install its observer.
	deadline := time.Now().Add(time.Second)
	for {
		w.mu.Lock()
		running := w.running
		w.mu.Unlock()
		if running || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := w.Run(ctx); err != ErrAlreadyRunning {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	<-done
}
