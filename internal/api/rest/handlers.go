package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/fortuna/headshot/internal/cache"
	"github.com/fortuna/headshot/internal/ingest/reference"
	"github.com/fortuna/headshot/internal/patch"
	"github.com/fortuna/headshot/internal/scheduler"
	"github.com/fortuna/headshot/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusSource is the running orchestrator
type StatusSource interface {
	GetStatus() scheduler.Status
	Records() []reference.PlayerRecord
}

// PatchLog reads the patch audit log
type PatchLog interface {
	Recent(ctx context.Context, limit int) ([]*store.PatchEvent, error)
	CountByOutcome(ctx context.Context, since time.Time) (map[string]int, error)
}

// HealthChecker is a backing service probed by /health
type HealthChecker func(ctx context.Context) error

// Handler contains dependencies for HTTP handlers
type Handler struct {
	status       StatusSource
	resolver     patch.Resolver
	availability *cache.Availability
	patches      PatchLog
	photoBase    string
	checks       map[string]HealthChecker
}

// NewHandler creates a new handler. availability and patches may be nil.
func NewHandler(status StatusSource, resolver patch.Resolver, availability *cache.Availability, patches PatchLog, photoBase string) *Handler {
	if photoBase == "" {
		photoBase = patch.DefaultPhotoBaseURL
	}
	return &Handler{
		status:       status,
		resolver:     resolver,
		availability: availability,
		patches:      patches,
		photoBase:    photoBase,
		checks:       make(map[string]HealthChecker),
	}
}

// AddHealthCheck registers a dependency reported by /health
func (h *Handler) AddHealthCheck(name string, check HealthChecker) {
	h.checks[name] = check
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       state,
		"service":      "headshot",
		"version":      "1.0.0",
		"dependencies": deps,
	})
}

// GetStatus returns the orchestrator status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.status.GetStatus())
}

type resolveResponse struct {
	Player *reference.PlayerRecord `json:"player"`
	Src    string                  `json:"src"`
	Srcset string                  `json:"srcset"`
	Exists *bool                   `json:"exists,omitempty"`
}

// ResolvePlayer runs the matcher for ?name=&team= against the loaded records
func (h *Handler) ResolvePlayer(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	team := strings.TrimSpace(r.URL.Query().Get("team"))
	if name == "" || team == "" {
		respondError(w, http.StatusBadRequest, "Both name and team are required", nil)
		return
	}

	player, ok := h.resolver.Resolve(name, team, h.status.Records())
	if !ok {
		respondError(w, http.StatusNotFound, "No matching player", nil)
		return
	}

	target := patch.Targets(h.photoBase, player.PhotoCode)
	resp := resolveResponse{Player: player, Src: target.Src, Srcset: target.Srcset}
	if h.availability != nil {
		if exists, known := h.availability.Peek(target.Src); known {
			resp.Exists = &exists
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetAvailability returns cache stats, or the cached answer for ?url=
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	if h.availability == nil {
		respondError(w, http.StatusServiceUnavailable, "Availability cache not configured", nil)
		return
	}

	if url := r.URL.Query().Get("url"); url != "" {
		exists, known := h.availability.Peek(url)
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"url":    url,
			"known":  known,
			"exists": exists,
		})
		return
	}

	respondJSON(w, http.StatusOK, h.availability.Stats())
}

// GetRecentPatches returns the latest audited patch events
func (h *Handler) GetRecentPatches(w http.ResponseWriter, r *http.Request) {
	if h.patches == nil {
		respondError(w, http.StatusServiceUnavailable, "Patch log not configured", nil)
		return
	}

	limit := 50 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	events, err := h.patches.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch patch events", err)
		return
	}

	respondJSON(w, http.StatusOK, events)
}

// maxSummaryHours bounds the ?hours= window of GetPatchSummary.
const maxSummaryHours = 24 * 365

// GetPatchSummary counts audited outcomes over the last ?hours= (default 24)
func (h *Handler) GetPatchSummary(w http.ResponseWriter, r *http.Request) {
	if h.patches == nil {
		respondError(w, http.StatusServiceUnavailable, "Patch log not configured", nil)
		return
	}

	hours := 24
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		l, err := strconv.Atoi(hoursStr)
		if err != nil || l <= 0 || l > maxSummaryHours {
			respondError(w, http.StatusBadRequest, "Invalid hours", err)
			return
		}
		hours = l
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	counts, err := h.patches.CountByOutcome(r.Context(), since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count patch events", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"since":    since,
		"outcomes": counts,
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
