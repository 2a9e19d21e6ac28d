package model

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultColor is used for events whose source does not set a color.
var DefaultColor = color.NRGBA{R: 0xcd, G: 0x37, B: 0x37, A: 0xff}

// ParseColor parses "#rrggbb" (or "#rgb") into an opaque color.
func ParseColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("model: invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// ColorOrDefault parses hex and falls back to DefaultColor when it is empty
// or malformed.
func ColorOrDefault(hex string) color.NRGBA {
	if hex == "" {
		return DefaultColor
	}
	c, err := ParseColor(hex)
	if err != nil {
		return DefaultColor
	}
	return c
}

// HexColor formats c as "#rrggbb".
func HexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
