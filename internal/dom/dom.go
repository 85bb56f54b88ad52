// Package dom describes the slice of the host page the patch engine reads and
// writes. Two documents implement it: htmldoc (a parsed snapshot) and the
// chromedp-backed document in package browser.
package dom

import (
	"context"
	"errors"
)

// Class-name substrings the host page uses for its pitch view. The page ships
// hashed styled-components class names, so only the stable fragment is matched.
const (
	PitchElementClass = "PitchElement"
	ElementNameClass  = "ElementName"
	ShirtClass        = "StyledShirt"
)

// Selectors built from the class conventions above.
const (
	PitchElementSelector = `[class*="` + PitchElementClass + `"]`
	ElementNameSelector  = `[class*="` + ElementNameClass + `"]`
	ShirtSelector        = `img[class*="` + ShirtClass + `"]`
)

// ErrDetached is returned by Image.Apply when the element left the document
// before the write could happen.
var ErrDetached = errors.New("element detached from document")

// Document yields the pitch elements currently rendered.
type Document interface {
	Slots(ctx context.Context) ([]Slot, error)
}

// Slot is a view over one pitch element. It is only valid while the element
// stays attached to the document; callers re-check Connected after any wait.
type Slot interface {
	// Name is the trimmed player name shown under the shirt.
	Name() (string, bool)
	// Team is the team the page attributes the shirt to (the shirt image alt).
	Team() (string, bool)
	Image() (Image, bool)
	Connected(ctx context.Context) bool
}

// Image is the img node inside a slot.
type Image interface {
	Src() string
	Srcset() string
	// Apply writes the patch. Implementations compare against the live node
	// first and report written=false when it already matches.
	Apply(ctx context.Context, p Patch) (written bool, err error)
	// OnError registers fn to run if the node later fails to load its source.
	OnError(fn func())
}

// Patch is the full set of attributes written to a shirt image.
type Patch struct {
	Src    string
	Srcset string
	Sizes  string
	Style  string

	// RevertSrcset is restored to srcset when the new source fails to load.
	RevertSrcset string
}

// Matches reports whether src/srcset already carry the patch targets.
func (p Patch) Matches(src, srcset string) bool {
	return src == p.Src && srcset == p.Srcset
}
