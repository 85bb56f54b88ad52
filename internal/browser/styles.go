package browser

import (
	"context"
	"fmt"
	"strings"
)

// pitchCardSelector targets the pitch cards on the team pages.
const pitchCardSelector = ".styles__PitchCard-sc-hv19ot-2.styles__StyledPitchElement-sc-hv19ot-5"

// PitchCardCSS returns the pitch card padding rule for a page path. Paths
// other than the team and transfer pages get no rule.
func PitchCardCSS(path string) (string, bool) {
	var padding string
	switch {
	case path == "/my-team" || strings.HasPrefix(path, "/entry/"):
		padding = "12px"
	case path == "/transfers":
		padding = "0px"
	default:
		return "", false
	}
	return fmt.Sprintf("%s {\n  padding-right: %s;\n}\n", pitchCardSelector, padding), true
}

// InjectPitchCardCSS applies the rule for path to the current document.
// A path without a rule leaves the page untouched.
func (s *Session) InjectPitchCardCSS(ctx context.Context, path string) error {
	css, ok := PitchCardCSS(path)
	if !ok {
		return nil
	}
	expr, err := call(styleJS, css)
	if err != nil {
		return err
	}
	return s.evaluate(ctx, expr, nil)
}
