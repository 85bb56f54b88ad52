package patch

import (
	"fmt"
	"strings"

	"github.com/fortuna/headshot/internal/dom"
)

// DefaultPhotoBaseURL is the player photo CDN root.
const DefaultPhotoBaseURL = "https://resources.premierleague.com/premierleague/photos/players"

// Photo sizes served by the CDN.
const (
	baseSize   = "110x140"
	baseWidth  = "110w"
	hiDPISize  = "250x250"
	hiDPIWidth = "250w"
)

// Sizes matches the rendered width of the shirt slot at the page's breakpoints.
const Sizes = "(min-width: 1024px) 84px, (min-width: 610px) 64px, 46px"

// HeadshotStyle crops the square headshot into the portrait shirt slot.
const HeadshotStyle = "position: absolute; top: 0; left: 0; right: 30%; width: 70%; height: 110%; object-fit: cover; object-position: top center;"

// PhotoURL returns the CDN URL of code at size ("110x140" or "250x250").
func PhotoURL(base, size, code string) string {
	return fmt.Sprintf("%s/%s/p%s.png", strings.TrimRight(base, "/"), size, code)
}

// Targets builds the patch for a photo code.
func Targets(base, code string) dom.Patch {
	src := PhotoURL(base, baseSize, code)
	hi := PhotoURL(base, hiDPISize, code)
	return dom.Patch{
		Src:    src,
		Srcset: src + " " + baseWidth + ", " + hi + " " + hiDPIWidth,
		Sizes:  Sizes,
		Style:  HeadshotStyle,
	}
}
