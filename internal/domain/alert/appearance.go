package alert

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Display selects which monitors an overlay covers.
type Display string

const (
	// DisplayMain covers the primary monitor only.
	DisplayMain Display = "main"
	// DisplayAll covers every monitor.
	DisplayAll Display = "all"
)

// Defaults used by DefaultAppearance.
const (
	DefaultExpansionSeconds = 60 * 60
	DefaultHoldSeconds      = 60 * 60
	DefaultStartSize        = 200
	DefaultOpacity          = 0.39
	DefaultTextOpacity      = 0.39

	// MaxPhaseSeconds bounds the expansion and hold phases to one week each.
	MaxPhaseSeconds = 7 * 24 * 60 * 60
)

// ErrBadColor is returned when a color literal cannot be parsed.
var ErrBadColor = errors.New("color must look like #RRGGBB")

// Color is an opaque RGB color.
type Color struct {
	R, G, B uint8
}

// ParseColor parses "#RRGGBB" (the leading '#' is optional).
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("%q: %w", s, ErrBadColor)
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return Color{}, fmt.Errorf("%q: %w", s, ErrBadColor)
	}

	return Color{R: raw[0], G: raw[1], B: raw[2]}, nil
}

// String renders "#rrggbb".
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}

// Appearance is the rendering configuration copied into every session of a rule.
type Appearance struct {
	// ExpansionSeconds is how long the overlay takes to grow to full coverage.
	ExpansionSeconds float64 `json:"expansion_seconds" yaml:"expansion_seconds"`
	// HoldSeconds is how long full coverage is held before auto-dismissal.
	HoldSeconds float64 `json:"hold_seconds" yaml:"hold_seconds"`
	// Opacity of the overlay in [0, 1].
	Opacity float64 `json:"opacity" yaml:"opacity"`
	// Color of the overlay.
	Color Color `json:"color" yaml:"color"`
	// StartSize is the initial overlay edge in pixels.
	StartSize int `json:"start_size" yaml:"start_size"`
	// Text is drawn in the middle of the overlay.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	// TextColor of the overlay text.
	TextColor Color `json:"text_color" yaml:"text_color"`
	// TextOpacity of the overlay text in [0, 1].
	TextOpacity float64 `json:"text_opacity" yaml:"text_opacity"`
	// Display selects the monitors covered.
	Display Display `json:"display" yaml:"display"`
}

// DefaultAppearance returns the built-in appearance: black overlay, white text,
// one hour of growth followed by one hour of full coverage.
func DefaultAppearance() Appearance {
	return Appearance{
		ExpansionSeconds: DefaultExpansionSeconds,
		HoldSeconds:      DefaultHoldSeconds,
		Opacity:          DefaultOpacity,
		Color:            Color{},
		StartSize:        DefaultStartSize,
		TextColor:        Color{R: 0xff, G: 0xff, B: 0xff},
		TextOpacity:      DefaultTextOpacity,
		Display:          DisplayMain,
	}
}

// Expansion returns the expansion phase length.
func (a Appearance) Expansion() time.Duration {
	return seconds(a.ExpansionSeconds)
}

// Hold returns the hold phase length.
func (a Appearance) Hold() time.Duration {
	return seconds(a.HoldSeconds)
}

// Lifetime returns the time from the start of expansion to auto-dismissal.
func (a Appearance) Lifetime() time.Duration {
	return a.Expansion() + a.Hold()
}

// seconds converts validated fractional seconds, rounded to the nanosecond.
func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
