package browser

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/fortuna/headshot/internal/dom"
)

var withChromeDP = flag.String("with-chromedp", "", "The url of the remote debugging port")

const teamPage = `<!DOCTYPE html>
<html><head><title>Pick Team</title></head><body>
<div id="pitch">
<div class="styles__PitchCard-sc-hv19ot-2 styles__StyledPitchElement-sc-hv19ot-5"><img class="Shirt__StyledShirt-sc-1" src="/shirt.png" srcset="/shirt.png 66w" alt="Liverpool"><div class="styles__ElementName-sc-1">Salah</div></div>
</div>
</body></html>`

func startSession(t *testing.T) (*Session, string) {
	t.Helper()
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, teamPage)
	}))
	t.Cleanup(srv.Close)

	s, err := NewSession(testContext(t), Config{RemoteURL: *withChromeDP}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s, srv.URL
}

func TestDocumentApply(t *testing.T) {
	s, base := startSession(t)
	ctx, cancel := context.WithTimeout(testContext(t), 60*time.Second)
	defer cancel()

	if err := s.Navigate(ctx, base+"/my-team"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	slots, err := s.Document().Slots(ctx)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if name, _ := slots[0].Name(); name != "Salah" {
		t.Errorf("name = %q", name)
	}
	if team, _ := slots[0].Team(); team != "Liverpool" {
		t.Errorf("team = %q", team)
	}

	img, _ := slots[0].Image()
	p := dom.Patch{Src: base + "/p1.png", Srcset: base + "/p1.png 110w", Sizes: "46px", Style: "width: 70%", RevertSrcset: img.Srcset()}
	written, err := img.Apply(ctx, p)
	if err != nil || !written {
		t.Fatalf("Apply = %v, %v", written, err)
	}
	written, err = img.Apply(ctx, p)
	if err != nil || written {
		t.Errorf("second Apply = %v, %v; want current", written, err)
	}

	if err := chromedp.Run(s.tab, chromedp.Evaluate(`document.getElementById("pitch").innerHTML = ""`, nil)); err != nil {
		t.Fatalf("clearing pitch: %v", err)
	}
	if slots[0].Connected(ctx) {
		t.Error("slot still connected after re-render")
	}
	if _, err := img.Apply(ctx, dom.Patch{Src: "x"}); !errors.Is(err, dom.ErrDetached) {
		t.Errorf("Apply after re-render: err = %v, want ErrDetached", err)
	}
}

func TestObserveAndStyles(t *testing.T) {
	s, base := startSession(t)
	ctx, cancel := context.WithTimeout(testContext(t), 60*time.Second)
	defer cancel()

	if err := s.Navigate(ctx, base+"/my-team"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	batches, err := s.Observe(ctx)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if _, err := s.Observe(ctx); !errors.Is(err, ErrAlreadyObserving) {
		t.Errorf("second Observe: err = %v", err)
	}

	if err := chromedp.Run(s.tab, chromedp.Evaluate(`document.querySelector("[class*=ElementName]").textContent = "Saka"`, nil)); err != nil {
		t.Fatalf("editing name: %v", err)
	}
	select {
	case b := <-batches:
		if len(b) == 0 || !b[0].TouchesPitch() {
			t.Errorf("batch = %+v", b)
		}
	case <-ctx.Done():
		t.Fatal("no mutation batch delivered")
	}

	if err := s.InjectPitchCardCSS(ctx, "/my-team"); err != nil {
		t.Fatalf("InjectPitchCardCSS: %v", err)
	}
	var css string
	if err := chromedp.Run(s.tab, chromedp.Evaluate(`document.getElementById("headshot-pitch-card").textContent`, &css)); err != nil {
		t.Fatalf("reading style: %v", err)
	}
	if want, _ := PitchCardCSS("/my-team"); css != want {
		t.Errorf("style = %q, want %q", css, want)
	}
}

// testContext returns a context canceled when the test finishes
// (stand-in for testing.T.Context, which requires Go 1.24).
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
