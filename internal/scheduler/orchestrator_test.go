package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/headshot/internal/cache"
	"github.com/fortuna/headshot/internal/dom"
	"github.com/fortuna/headshot/internal/dom/htmldoc"
	"github.com/fortuna/headshot/internal/ingest/reference"
	"github.com/fortuna/headshot/internal/patch"
	"github.com/fortuna/headshot/internal/reconciliation"
)

const cdn = "https://cdn.test/players"

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

type staticLoader []reference.PlayerRecord

func (l staticLoader) Load(ctx context.Context) []reference.PlayerRecord { return l }

type allExist struct{}

func (allExist) Probe(ctx context.Context, url string) (bool, error) { return true, nil }

func card(name, team string) string {
	return `<div class="PitchElement"><img class="StyledShirt" src="/shirt.png" alt="` + team + `"/><div class="ElementName">` + name + `</div></div>`
}

var testRecords = staticLoader{
	{DisplayName: "Salah", PhotoCode: "118748", TeamBySeason: map[string]string{"2024-2025": "Liverpool"}},
	{DisplayName: "Saka", PhotoCode: "223340", TeamBySeason: map[string]string{"2024-2025": "Arsenal"}},
}

func newTestOrchestrator(t *testing.T, loader Loader, doc *htmldoc.Document) *Orchestrator {
	t.Helper()
	avail, err := cache.NewAvailability(context.Background(), cache.NewMemoryStore(nil), allExist{}, 0, quiet())
	if err != nil {
		t.Fatalf("NewAvailability: %v", err)
	}
	clock := func() time.Time { return time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC) }
	engine := patch.NewEngine(reconciliation.NewMatcher(reconciliation.WithClock(clock)), avail,
		patch.WithPhotoBaseURL(cdn), patch.WithLogger(quiet()))
	return NewOrchestrator(loader, engine, doc, avail, &Config{Debounce: 10 * time.Millisecond}, quiet())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func srcOf(doc *htmldoc.Document, name string) string {
	var src string
	doc.Find(dom.PitchElementSelector, func(s *goquery.Selection) {
		s.Each(func(i int, el *goquery.Selection) {
			if strings.TrimSpace(el.Find(dom.ElementNameSelector).Text()) == name {
				src, _ = el.Find("img").Attr("src")
			}
		})
	})
	return src
}

func TestStartWithoutReferenceData(t *testing.T) {
	doc, _ := htmldoc.ParseString(card("Salah", "Liverpool"))
	o := newTestOrchestrator(t, staticLoader(nil), doc)

	err := o.Start(context.Background())
	if !errors.Is(err, ErrNoReferenceData) {
		t.Fatalf("Start: err = %v, want ErrNoReferenceData", err)
	}
	if doc.Writes() != 0 {
		t.Errorf("engine ran without data: %d writes", doc.Writes())
	}
	if st := o.GetStatus(); st.State != StateNoData || st.Passes != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestStartPatchesAndFollowsRerenders(t *testing.T) {
	doc, _ := htmldoc.ParseString(`<div id="pitch">` + card("Salah", "Liverpool") + `</div>`)
	o := newTestOrchestrator(t, testRecords, doc)

	passes := make(chan patch.PassResult, 16)
	o.OnPass(func(ctx context.Context, res patch.PassResult) error {
		select {
		case passes <- res:
		default:
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- o.Start(context.Background()) }()

	first := <-passes
	if first.Writes != 1 {
		t.Fatalf("first pass writes = %d, want 1", first.Writes)
	}
	if want := cdn + "/110x140/p118748.png"; srcOf(doc, "Salah") != want {
		t.Errorf("Salah src = %q, want %q", srcOf(doc, "Salah"), want)
	}

	// Mutations made before the observer is installed are not delivered.
	waitFor(t, "watcher", func() bool {
		w := o.GetStatus().Watcher
		return w != nil && w.Observing
	})

	doc.AppendHTML("#pitch", card("Saka", "Arsenal"))
	waitFor(t, "Saka patched", func() bool {
		return srcOf(doc, "Saka") == cdn+"/110x140/p223340.png"
	})

	// Salah is never rewritten: his slot already carries the target.
	if doc.Writes() != 2 {
		t.Errorf("writes = %d, want 2", doc.Writes())
	}

	st := o.GetStatus()
	if st.State != StateRunning || st.Records != 2 || st.Passes < 2 {
		t.Errorf("status = %+v", st)
	}
	if st.Availability == nil || st.Availability.Entries != 2 {
		t.Errorf("availability stats = %+v", st.Availability)
	}

	o.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after Stop", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	if o.GetStatus().State != StateStopped {
		t.Errorf("state = %s, want stopped", o.GetStatus().State)
	}
}
