// Package cache remembers which photo URLs exist on the CDN and persists that
// knowledge across restarts.
package cache

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultCapacity bounds the number of remembered URLs.
const DefaultCapacity = 4096

// Store is the durable slot behind the availability map.
type Store interface {
	// Load returns the last saved payload, or nil if nothing was saved.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Prober checks whether a URL exists without transferring its body.
type Prober interface {
	Probe(ctx context.Context, url string) (bool, error)
}

// Stats are counters exposed on the status API.
type Stats struct {
	Entries       int   `json:"entries"`
	Capacity      int   `json:"capacity"`
	Hits          int64 `json:"hits"`
	Probes        int64 `json:"probes"`
	ProbeErrors   int64 `json:"probe_errors"`
	PersistErrors int64 `json:"persist_errors"`
}

// Availability memoizes probe results. Entries never expire; when capacity
// is reached the least recently used URL is forgotten.
type Availability struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, bool]
	capacity int
	stats    Stats

	store  Store
	prober Prober
	logger *log.Logger
}

// NewAvailability builds the cache and seeds it from store. A missing or
// corrupt payload starts an empty cache.
func NewAvailability(ctx context.Context, store Store, prober Prober, capacity int, logger *log.Logger) (*Availability, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[availability] ", log.LstdFlags)
	}

	entries, err := lru.New[string, bool](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}

	a := &Availability{
		entries:  entries,
		capacity: capacity,
		store:    store,
		prober:   prober,
		logger:   logger,
	}
	a.restore(ctx)
	return a, nil
}

func (a *Availability) restore(ctx context.Context) {
	if a.store == nil {
		return
	}
	data, err := a.store.Load(ctx)
	if err != nil {
		a.logger.Printf("⚠️  Could not load persisted availability: %v", err)
		return
	}
	if len(data) == 0 {
		return
	}

	pairs, err := decodePairs(data)
	if err != nil {
		a.logger.Printf("⚠️  Ignoring corrupt availability payload: %v", err)
		return
	}
	for _, p := range pairs {
		a.entries.Add(p.url, p.exists)
	}
	a.logger.Printf("✓ Restored %d availability entries", a.entries.Len())
}

// Exists reports whether url is known to exist, probing it the first time.
// Probe errors count as "does not exist" and are cached like any answer,
// except when ctx itself ended: that answer is neither cached nor persisted.
func (a *Availability) Exists(ctx context.Context, url string) bool {
	if strings.TrimSpace(url) == "" {
		a.logger.Printf("⚠️  Exists called with empty url")
		return false
	}

	a.mu.Lock()
	if exists, ok := a.entries.Get(url); ok {
		a.stats.Hits++
		a.mu.Unlock()
		return exists
	}
	a.stats.Probes++
	a.mu.Unlock()

	exists, err := a.prober.Probe(ctx, url)
	if err != nil && ctx.Err() != nil {
		a.logger.Printf("⚠️  Probe for %s abandoned: %v", url, ctx.Err())
		return false
	}
	if err != nil {
		a.logger.Printf("⚠️  Probe failed for %s: %v", url, err)
		exists = false
	}

	a.mu.Lock()
	if err != nil {
		a.stats.ProbeErrors++
	}
	a.entries.Add(url, exists)
	payload, encErr := a.encodeLocked()
	a.mu.Unlock()

	if encErr != nil {
		a.logger.Printf("❌ Encoding availability: %v", encErr)
		return exists
	}
	a.persist(ctx, payload)
	return exists
}

// Peek returns a remembered answer without probing or touching recency.
func (a *Availability) Peek(url string) (exists, known bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries.Peek(url)
}

// Stats returns a snapshot of the counters.
func (a *Availability) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Entries = a.entries.Len()
	s.Capacity = a.capacity
	return s
}

func (a *Availability) persist(ctx context.Context, payload []byte) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(ctx, payload); err != nil {
		a.mu.Lock()
		a.stats.PersistErrors++
		a.mu.Unlock()
		a.logger.Printf("❌ Persisting availability: %v", err)
	}
}

// encodeLocked serializes entries oldest first as [[url, exists], ...].
func (a *Availability) encodeLocked() ([]byte, error) {
	keys := a.entries.Keys()
	pairs := make([][2]any, 0, len(keys))
	for _, k := range keys {
		v, ok := a.entries.Peek(k)
		if !ok {
			continue
		}
		pairs = append(pairs, [2]any{k, v})
	}
	return json.Marshal(pairs)
}

type pair struct {
	url    string
	exists bool
}

func decodePairs(data []byte) ([]pair, error) {
	var raw [][]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]pair, 0, len(raw))
	for _, r := range raw {
		if len(r) != 2 {
			continue
		}
		url, ok := r[0].(string)
		if !ok || url == "" {
			continue
		}
		exists, ok := r[1].(bool)
		if !ok {
			continue
		}
		out = append(out, pair{url: url, exists: exists})
	}
	return out, nil
}
