package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fortuna/headshot/internal/cache"
	"github.com/fortuna/headshot/internal/dom"
	"github.com/fortuna/headshot/internal/ingest/reference"
	"github.com/fortuna/headshot/internal/patch"
	"github.com/fortuna/headshot/internal/watch"
)

// ErrNoReferenceData is returned by Start when the reference dataset is
// empty. The engine never runs in that case.
var ErrNoReferenceData = errors.New("no reference data loaded")

// Loader fetches the player reference dataset.
type Loader interface {
	Load(ctx context.Context) []reference.PlayerRecord
}

// Target is a page the orchestrator can both patch and observe.
type Target interface {
	dom.Document
	dom.Observer
}

// PassHook is called after every pass with its summary.
type PassHook func(ctx context.Context, res patch.PassResult) error

// Orchestrator state values
const (
	StateIdle    = "idle"
	StateLoading = "loading"
	StateRunning = "running"
	StateNoData  = "no_data"
	StateStopped = "stopped"
)

// Config holds orchestrator configuration
type Config struct {
	Debounce    time.Duration // Default: 0 (coalesce queued batches only)
	PassTimeout time.Duration // Default: 60s
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() *Config {
	return &Config{
		Debounce:    0,
		PassTimeout: 60 * time.Second,
	}
}

// Status is the orchestrator snapshot served by the status API.
type Status struct {
	State        string            `json:"state"`
	Started      time.Time         `json:"started,omitempty"`
	Records      int               `json:"records"`
	Passes       int64             `json:"passes"`
	LastPass     *patch.PassResult `json:"last_pass,omitempty"`
	Watcher      *watch.Stats      `json:"watcher,omitempty"`
	Availability *cache.Stats      `json:"availability,omitempty"`
}

// Orchestrator loads the reference data once, runs the first pass and then
// re-runs passes whenever the watcher reports a relevant change.
type Orchestrator struct {
	loader       Loader
	engine       *patch.Engine
	target       Target
	availability *cache.Availability
	config       *Config
	hooks        []PassHook
	logger       *log.Logger

	mu       sync.RWMutex
	state    string
	started  time.Time
	records  []reference.PlayerRecord
	lastPass *patch.PassResult
	passes   int64
	watcher  *watch.Watcher
	cancel   context.CancelFunc
}

// NewOrchestrator creates a new orchestrator. availability may be nil; it is
// only read for status.
func NewOrchestrator(loader Loader, engine *patch.Engine, target Target, availability *cache.Availability, config *Config, logger *log.Logger) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PassTimeout <= 0 {
		config.PassTimeout = DefaultConfig().PassTimeout
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[scheduler] ", log.LstdFlags)
	}
	return &Orchestrator{
		loader:       loader,
		engine:       engine,
		target:       target,
		availability: availability,
		config:       config,
		logger:       logger,
		state:        StateIdle,
	}
}

// OnPass registers a hook run after every pass. Hook errors are logged.
// Register hooks before Start.
func (o *Orchestrator) OnPass(hook PassHook) {
	o.hooks = append(o.hooks, hook)
}

// Start loads the reference data, patches the current page and then blocks
// watching for re-renders until ctx ends or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.state = StateLoading
	o.started = time.Now()
	o.mu.Unlock()
	defer cancel()

	o.logger.Println("Loading player reference data...")
	records := o.loader.Load(ctx)
	if len(records) == 0 {
		o.setState(StateNoData)
		o.logger.Println("❌ No player reference data; headshots disabled")
		return ErrNoReferenceData
	}

	w := watch.New(o.target, o.runPass, o.config.Debounce, o.logger)
	o.mu.Lock()
	o.records = records
	o.watcher = w
	o.state = StateRunning
	o.mu.Unlock()
	o.logger.Printf("✓ Loaded %d player records", len(records))

	o.runPass(ctx)

	err := w.Run(ctx)
	o.setState(StateStopped)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	o.logger.Println("✓ Orchestrator stopped")
	return nil
}

// runPass runs one pass over the target with the loaded records.
func (o *Orchestrator) runPass(ctx context.Context) {
	o.mu.RLock()
	records := o.records
	o.mu.RUnlock()

	passCtx, cancel := context.WithTimeout(ctx, o.config.PassTimeout)
	res := o.engine.ApplyAll(passCtx, o.target, records)
	cancel()

	o.mu.Lock()
	o.passes++
	o.lastPass = &res
	o.mu.Unlock()

	for _, hook := range o.hooks {
		if err := hook(context.WithoutCancel(ctx), res); err != nil {
			o.logger.Printf("⚠️  Pass hook failed for %s: %v", res.PassID, err)
		}
	}
}

// Stop cancels a running Start.
func (o *Orchestrator) Stop() {
	o.mu.RLock()
	cancel := o.cancel
	o.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Records returns the loaded reference data.
func (o *Orchestrator) Records() []reference.PlayerRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.records
}

// GetStatus returns current orchestrator status
func (o *Orchestrator) GetStatus() Status {
	o.mu.RLock()
	st := Status{
		State:   o.state,
		Started: o.started,
		Records: len(o.records),
		Passes:  o.passes,
	}
	if o.lastPass != nil {
		last := *o.lastPass
		st.LastPass = &last
	}
	w := o.watcher
	o.mu.RUnlock()

	if w != nil {
		ws := w.Stats()
		st.Watcher = &ws
	}
	if o.availability != nil {
		as := o.availability.Stats()
		st.Availability = &as
	}
	return st
}

func (o *Orchestrator) setState(state string) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}
