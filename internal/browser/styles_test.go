package browser

import (
	"strings"
	"testing"

	"github.com/fortuna/headshot/internal/dom"
)

func TestPitchCardCSS(t *testing.T) {
	tests := []struct {
		path    string
		padding string
		ok      bool
	}{
		{"/my-team", "12px", true},
		{"/entry/123/event/7", "12px", true},
		{"/transfers", "0px", true},
		{"/", "", false},
		{"/my-team/extra", "", false},
		{"/leagues", "", false},
	}
	for _, tt := range tests {
		css, ok := PitchCardCSS(tt.path)
		if ok != tt.ok {
			t.Errorf("PitchCardCSS(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if !strings.HasPrefix(css, pitchCardSelector) {
			t.Errorf("PitchCardCSS(%q) = %q, missing selector", tt.path, css)
		}
		if !strings.Contains(css, "padding-right: "+tt.padding+";") {
			t.Errorf("PitchCardCSS(%q) = %q, want padding %s", tt.path, css, tt.padding)
		}
	}
}

func TestCallEncodesArguments(t *testing.T) {
	expr, err := call("((a, b) => a)", 7, map[string]string{"src": `x"y`})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	want := `(((a, b) => a))(7,{"src":"x\"y"})`
	if expr != want {
		t.Errorf("call = %s, want %s", expr, want)
	}
}

func TestToMutations(t *testing.T) {
	ms := toMutations([]recordSnapshot{
		{Kind: "attributes", Attribute: "STYLE", Target: nodeSnapshot{Inside: true}},
		{Kind: "childList", Target: nodeSnapshot{}, Added: []nodeSnapshot{{Pitch: true}}},
		{Kind: "childList", Target: nodeSnapshot{}, Removed: []nodeSnapshot{{}}},
	})
	if len(ms) != 3 {
		t.Fatalf("got %d mutations", len(ms))
	}
	if ms[0].Kind != dom.Attributes || ms[0].Attribute != "style" || !ms[0].TouchesPitch() {
		t.Errorf("attribute record = %+v", ms[0])
	}
	if !ms[1].TouchesPitch() {
		t.Error("added pitch element should touch the pitch")
	}
	if ms[2].TouchesPitch() {
		t.Error("removed unrelated node should not touch the pitch")
	}
}

func TestBatchQueue(t *testing.T) {
	q := newBatchQueue()
	q.push(nil)
	q.push([]dom.Mutation{{Kind: dom.ChildList}})
	q.push([]dom.Mutation{{Kind: dom.Attributes}})

	select {
	case <-q.notify:
	default:
		t.Fatal("push did not signal")
	}
	got := q.take()
	if len(got) != 2 {
		t.Fatalf("took %d batches, want 2", len(got))
	}
	if len(q.take()) != 0 {
		t.Error("queue not drained")
	}
}
