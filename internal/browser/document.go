package browser

import (
	"context"
	"fmt"

	"github.com/fortuna/headshot/internal/dom"
)

// slotSnapshot is one entry returned by snapshotJS.
type slotSnapshot struct {
	ID       int    `json:"id"`
	HasName  bool   `json:"has_name"`
	Name     string `json:"name"`
	HasImage bool   `json:"has_image"`
	HasTeam  bool   `json:"has_team"`
	Team     string `json:"team"`
	Src      string `json:"src"`
	Srcset   string `json:"srcset"`
}

// applyArgs is the patch as applyJS reads it.
type applyArgs struct {
	Src          string `json:"src"`
	Srcset       string `json:"srcset"`
	Sizes        string `json:"sizes"`
	Style        string `json:"style"`
	RevertSrcset string `json:"revert_srcset"`
	Gen          uint64 `json:"gen"`
}

// Document is the live page. Slots are read in one evaluation; every write
// goes back to the page and is checked against the live node there.
type Document struct {
	session *Session
}

// Slots lists the pitch elements currently in the page.
func (d *Document) Slots(ctx context.Context) ([]dom.Slot, error) {
	var snaps []slotSnapshot
	if err := d.session.evaluate(ctx, snapshotJS, &snaps); err != nil {
		return nil, fmt.Errorf("snapshotting pitch: %w", err)
	}
	slots := make([]dom.Slot, 0, len(snaps))
	for _, s := range snaps {
		slots = append(slots, &slot{session: d.session, snap: s})
	}
	return slots, nil
}

type slot struct {
	session *Session
	snap    slotSnapshot
}

func (s *slot) Name() (string, bool) {
	return s.snap.Name, s.snap.HasName
}

func (s *slot) Team() (string, bool) {
	return s.snap.Team, s.snap.HasTeam
}

func (s *slot) Image() (dom.Image, bool) {
	if !s.snap.HasImage {
		return nil, false
	}
	return &image{slot: s}, true
}

func (s *slot) Connected(ctx context.Context) bool {
	expr, err := call(connectedJS, s.snap.ID)
	if err != nil {
		return false
	}
	var connected bool
	if err := s.session.evaluate(ctx, expr, &connected); err != nil {
		return false
	}
	return connected
}

type image struct {
	slot *slot
	gen  uint64
}

func (i *image) Src() string    { return i.slot.snap.Src }
func (i *image) Srcset() string { return i.slot.snap.Srcset }

func (i *image) Apply(ctx context.Context, p dom.Patch) (bool, error) {
	gen := i.slot.session.nextGen()
	expr, err := call(applyJS, i.slot.snap.ID, applyArgs{
		Src:          p.Src,
		Srcset:       p.Srcset,
		Sizes:        p.Sizes,
		Style:        p.Style,
		RevertSrcset: p.RevertSrcset,
		Gen:          gen,
	})
	if err != nil {
		return false, err
	}

	var result string
	if err := i.slot.session.evaluate(ctx, expr, &result); err != nil {
		return false, fmt.Errorf("applying patch: %w", err)
	}
	switch result {
	case "written":
		i.slot.snap.Src, i.slot.snap.Srcset = p.Src, p.Srcset
		i.gen = gen
		return true, nil
	case "current":
		return false, nil
	case "detached":
		return false, dom.ErrDetached
	default:
		return false, fmt.Errorf("unexpected apply result %q", result)
	}
}

// OnError sets the load failure handler for the last write through this
// image, replacing any handler left by earlier writes to the slot. It fires at
// most once and is dropped when the photo loads.
func (i *image) OnError(fn func()) {
	if i.gen == 0 {
		return
	}
	if i.slot.session.setLoadHook(i.slot.snap.ID, loadHook{gen: i.gen, fn: fn}) {
		fn()
	}
}
