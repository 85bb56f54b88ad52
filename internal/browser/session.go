// Package browser drives a Chrome tab showing the host page over the DevTools
// protocol and exposes it as a dom.Document and dom.Observer.
package browser

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/fortuna/headshot/internal/dom"
)

const (
	// UserAgent for the tab
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// evalTimeout bounds a single script evaluation.
	evalTimeout = 10 * time.Second
)

// Config selects how Chrome is reached.
type Config struct {
	// RemoteURL is a DevTools websocket URL. Empty starts a local Chrome.
	RemoteURL string
	Headless  bool
}

// Session is one tab on the host page.
type Session struct {
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
	logger      *log.Logger

	mu         sync.Mutex
	mainFrame  cdp.FrameID
	path       string
	observing  bool
	queue      *batchQueue
	gen        uint64
	errorHooks map[int]loadHook
	// failures seen before their hook was set, by slot
	early map[int]uint64
}

// loadHook is the load failure handler of one write.
type loadHook struct {
	gen uint64
	fn  func()
}

// NewSession starts (or attaches to) Chrome and opens a tab.
func NewSession(ctx context.Context, cfg Config, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[browser] ", log.LstdFlags)
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(UserAgent),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	tab, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(logger.Printf),
	)

	s := &Session{
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		tab:         tab,
		logger:      logger,
		errorHooks:  make(map[int]loadHook),
		early:       make(map[int]uint64),
	}

	chromedp.ListenTarget(tab, s.onEvent)

	// Starts the browser and registers the binding for every future document.
	if err := chromedp.Run(tab,
		runtime.Enable(),
		page.Enable(),
		runtime.AddBinding(bindingName),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	return s, nil
}

// Close releases the tab and the browser.
func (s *Session) Close() {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// Navigate loads url and waits for the body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	ctx, cancel := s.scoped(ctx, 60*time.Second)
	defer cancel()

	if err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("chromedp error: %w", err)
	}
	return nil
}

// Document returns the live document of the tab.
func (s *Session) Document() *Document {
	return &Document{session: s}
}

// Slots lists the pitch elements of the live document, so a Session can be
// handed around as both document and observer.
func (s *Session) Slots(ctx context.Context) ([]dom.Slot, error) {
	return s.Document().Slots(ctx)
}

// evaluate runs a script on the tab and decodes its result into res.
func (s *Session) evaluate(ctx context.Context, expr string, res any) error {
	ctx, cancel := s.scoped(ctx, evalTimeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.Evaluate(expr, res))
}

// scoped derives a tab context that also ends when ctx ends.
func (s *Session) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(s.tab, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

// onEvent runs on chromedp's event goroutine and must not call chromedp.Run.
func (s *Session) onEvent(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name == bindingName {
			s.dispatch(ev.Payload)
		}
	case *page.EventFrameNavigated:
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		s.mu.Lock()
		s.mainFrame = ev.Frame.ID
		s.path = pathOf(ev.Frame.URL)
		// Slot ids restart with the new document.
		s.errorHooks = make(map[int]loadHook)
		s.early = make(map[int]uint64)
		s.mu.Unlock()
	case *page.EventNavigatedWithinDocument:
		s.mu.Lock()
		main := ev.FrameID == s.mainFrame
		if main {
			s.path = pathOf(ev.URL)
		}
		path := s.path
		s.mu.Unlock()
		if main {
			go s.injectFor(path)
		}
	case *page.EventLoadEventFired:
		s.mu.Lock()
		path := s.path
		s.mu.Unlock()
		go s.injectFor(path)
	}
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

func (s *Session) injectFor(path string) {
	if err := s.InjectPitchCardCSS(context.Background(), path); err != nil {
		s.logger.Printf("⚠️  Injecting pitch card CSS for %s: %v", path, err)
	}
}

type notification struct {
	Type    string           `json:"type"`
	Slot    int              `json:"slot"`
	Gen     uint64           `json:"gen"`
	Records []recordSnapshot `json:"records"`
}

func (s *Session) nextGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// setLoadHook installs h for slot and reports whether its write already failed.
func (s *Session) setLoadHook(slot int, h loadHook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.early[slot] == h.gen {
		delete(s.early, slot)
		delete(s.errorHooks, slot)
		return true
	}
	s.errorHooks[slot] = h
	return false
}

// loadSettled handles the outcome of one write's image load. Reports for a
// write that was since superseded are ignored.
func (s *Session) loadSettled(slot int, gen uint64, failed bool) {
	var fire func()
	s.mu.Lock()
	h, ok := s.errorHooks[slot]
	switch {
	case ok && h.gen == gen:
		delete(s.errorHooks, slot)
		if failed {
			fire = h.fn
		}
	case !ok || h.gen < gen:
		// The hook of this write is not set yet.
		if failed {
			s.early[slot] = gen
		} else {
			delete(s.early, slot)
		}
	}
	s.mu.Unlock()

	if fire != nil {
		fire()
	}
}

func (s *Session) dispatch(payload string) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		s.logger.Printf("⚠️  Bad binding payload: %v", err)
		return
	}

	switch n.Type {
	case "mutations":
		s.mu.Lock()
		q := s.queue
		s.mu.Unlock()
		if q != nil {
			q.push(toMutations(n.Records))
		}
	case "imgerror":
		s.loadSettled(n.Slot, n.Gen, true)
	case "imgload":
		s.loadSettled(n.Slot, n.Gen, false)
	}
}
