// Package draw defines the drawing surface the dial renders onto and the
// paint types it passes along. Hosts implement Canvas; Recorder keeps the
// calls as data.
package draw

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	White       = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Black       = color.NRGBA{A: 0xff}
	Transparent = color.NRGBA{}
)

// Point is a position in canvas pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// FromImage converts an integer pixel.
func FromImage(p image.Point) Point { return Point{X: float64(p.X), Y: float64(p.Y)} }

// Segment is a straight text path running From -> To.
type Segment struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Len is the path length in pixels.
func (s Segment) Len() float64 {
	return math.Hypot(s.To.X-s.From.X, s.To.Y-s.From.Y)
}

// Align anchors text at the start (Left) or end (Right) of its path.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

func (a Align) String() string {
	if a == AlignRight {
		return "right"
	}
	return "left"
}

// Flip returns the opposite alignment.
func (a Align) Flip() Align {
	if a == AlignRight {
		return AlignLeft
	}
	return AlignRight
}

func (a Align) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Align) UnmarshalText(b []byte) error {
	switch string(b) {
	case "left":
		*a = AlignLeft
	case "right":
		*a = AlignRight
	default:
		return errors.New("draw: unknown alignment " + string(b))
	}
	return nil
}

// Stop is one color stop of a gradient, Offset in [0, 1].
type Stop struct {
	Offset float64     `json:"offset"`
	Color  color.NRGBA `json:"color"`
}

// LinearGradient shades along From -> To and mirrors outside [0, 1].
type LinearGradient struct {
	From  Point  `json:"from"`
	To    Point  `json:"to"`
	Stops []Stop `json:"stops"`
}

// At returns the gradient color at canvas position (x, y).
func (g LinearGradient) At(x, y float64) color.NRGBA {
	dx, dy := g.To.X-g.From.X, g.To.Y-g.From.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return g.colorAt(0)
	}
	t := ((x-g.From.X)*dx + (y-g.From.Y)*dy) / l2
	return g.colorAt(mirror(t))
}

func mirror(t float64) float64 {
	t = math.Mod(math.Abs(t), 2)
	if t > 1 {
		t = 2 - t
	}
	return t
}

func (g LinearGradient) colorAt(t float64) color.NRGBA {
	if len(g.Stops) == 0 {
		return Transparent
	}
	if t <= g.Stops[0].Offset {
		return g.Stops[0].Color
	}
	for i := 1; i < len(g.Stops); i++ {
		a, b := g.Stops[i-1], g.Stops[i]
		if t > b.Offset {
			continue
		}
		span := b.Offset - a.Offset
		if span <= 0 {
			return b.Color
		}
		return Blend(a.Color, b.Color, (t-a.Offset)/span)
	}
	return g.Stops[len(g.Stops)-1].Color
}

// SweepGradient shades angularly around Center, going From -> To over
// Sweep degrees clockwise from StartAngle.
type SweepGradient struct {
	Center     Point       `json:"center"`
	StartAngle float64     `json:"start_angle"`
	Sweep      float64     `json:"sweep"`
	From       color.NRGBA `json:"from"`
	To         color.NRGBA `json:"to"`
}

// At returns the gradient color at canvas position (x, y).
func (g SweepGradient) At(x, y float64) color.NRGBA {
	if g.Sweep <= 0 {
		return g.To
	}
	a := math.Atan2(y-g.Center.Y, x-g.Center.X) * 180 / math.Pi
	d := math.Mod(a-g.StartAngle+720, 360)
	if d > g.Sweep {
		return g.To
	}
	return Blend(g.From, g.To, d/g.Sweep)
}

// Blend mixes two colors in RGB with linear alpha.
func Blend(a, b color.NRGBA, t float64) color.NRGBA {
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	ca := colorful.Color{R: float64(a.R) / 255, G: float64(a.G) / 255, B: float64(a.B) / 255}
	cb := colorful.Color{R: float64(b.R) / 255, G: float64(b.G) / 255, B: float64(b.B) / 255}
	r, g, bl := ca.BlendRgb(cb, t).RGB255()
	alpha := float64(a.A) + (float64(b.A)-float64(a.A))*t
	return color.NRGBA{R: r, G: g, B: bl, A: uint8(math.Round(alpha))}
}

// Paint fills an arc with a solid color or, when Sweep is set, a sweep
// gradient.
type Paint struct {
	Color color.NRGBA    `json:"color"`
	Sweep *SweepGradient `json:"sweep,omitempty"`
}

// Stroke describes a line.
type Stroke struct {
	Color color.NRGBA `json:"color"`
	Width float64     `json:"width"`
}

// TextStyle describes a label. Gradient, when set, replaces Color.
type TextStyle struct {
	Size     float64         `json:"size"`
	Align    Align           `json:"align"`
	Italic   bool            `json:"italic,omitempty"`
	Color    color.NRGBA     `json:"color"`
	Gradient *LinearGradient `json:"gradient,omitempty"`
}

// Canvas is the write-only surface a frame is drawn onto. Angles are in
// draw space (0 at 3 o'clock, clockwise) and sweeps are in degrees.
type Canvas interface {
	FillRect(r image.Rectangle, c color.NRGBA)
	FillArc(bounds image.Rectangle, startAngle, sweep float64, p Paint)
	Line(from, to Point, s Stroke)
	Circle(center Point, radius float64, c color.NRGBA)
	TextOnPath(text string, path Segment, hOffset, vOffset float64, style TextStyle)
}

// Measurer reports the advance width of text at a font size.
type Measurer interface {
	MeasureText(text string, size float64) float64
}

// FixedWidth measures every rune as a fixed fraction of the font size. It
// stands in for a real font where only relative widths matter.
type FixedWidth float64

func (f FixedWidth) MeasureText(text string, size float64) float64 {
	n := 0
	for range text {
		n++
	}
	return float64(n) * size * float64(f)
}
