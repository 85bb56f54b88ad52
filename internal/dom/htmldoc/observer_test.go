package htmldoc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortuna/headshot/internal/dom"
)

func next(t *testing.T, ch <-chan []dom.Mutation) []dom.Mutation {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatal("observer channel closed")
		}
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a mutation batch")
	}
	return nil
}

func TestObserveOnlyOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doc := mustParse(t, card)

	if _, err := doc.Observe(ctx); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if _, err := doc.Observe(ctx); !errors.Is(err, ErrAlreadyObserving) {
		t.Errorf("second Observe: err = %v, want ErrAlreadyObserving", err)
	}
}

func TestMutationBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doc := mustParse(t, `<div id="pitch">`+card+`</div><div id="bench"></div>`)
	ch, err := doc.Observe(ctx)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}

	doc.AppendHTML("#pitch", card)
	b := next(t, ch)
	if len(b) != 1 || b[0].Kind != dom.ChildList || !b[0].TouchesPitch() {
		t.Errorf("append batch = %+v", b)
	}

	doc.AppendHTML("#bench", `<span>sub</span>`)
	b = next(t, ch)
	if b[0].TouchesPitch() {
		t.Error("bench append should not touch the pitch")
	}

	// data-* attributes are filtered out; class is kept.
	doc.SetAttr(dom.PitchElementSelector, "data-x", "1")
	doc.SetAttr(dom.PitchElementSelector, "class", "PitchElement selected")
	b = next(t, ch)
	if len(b) != 2 || b[0].Kind != dom.Attributes || b[0].Attribute != "class" {
		t.Errorf("attribute batch = %+v", b)
	}

	doc.SetText(dom.ElementNameSelector, "Saka")
	b = next(t, ch)
	if b[0].Kind != dom.ChildList || !b[0].TouchesPitch() || len(b[0].Added) != 1 || len(b[0].Removed) != 1 {
		t.Errorf("text batch = %+v", b)
	}

	doc.Remove(dom.PitchElementSelector)
	b = next(t, ch)
	if len(b) != 2 || !b[0].TouchesPitch() || len(b[0].Removed) != 1 {
		t.Errorf("remove batch = %+v", b)
	}
}

func TestObserveClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	doc := mustParse(t, card)
	ch, _ := doc.Observe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close without batches")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
