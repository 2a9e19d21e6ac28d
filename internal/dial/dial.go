// Package dial draws one frame of the pie watch face: background, event
// wedges with their labels, the horizon, the clock hand and furniture, and
// the ambient peek card.
package dial

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"piedial/internal/draw"
	"piedial/internal/geom"
	"piedial/internal/layout"
	appLog "piedial/internal/log"
	"piedial/internal/model"
	"piedial/internal/order"
)

// ErrInvalidFrame is returned when the host hands over a frame the renderer
// cannot draw at all.
var ErrInvalidFrame = errors.New("dial: invalid frame")

var (
	dialColor = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 180}
	dotColor  = color.NRGBA{R: 0xc9, G: 0xc9, B: 0xc9, A: 0xff}
)

// Options configure the renderer. Lengths are in dp.
type Options struct {
	Layout layout.Options

	Background     color.NRGBA
	HorizonDegrees float64
	MarkerLength   float64
	DotRadius      float64
	StrokeWidth    float64
}

func DefaultOptions() Options {
	return Options{
		Layout:         layout.DefaultOptions(),
		Background:     draw.Black,
		HorizonDegrees: 40,
		MarkerLength:   10,
		DotRadius:      5,
		StrokeWidth:    6,
	}
}

// Frame is everything the host supplies for one draw call.
type Frame struct {
	Now      time.Time
	Bounds   image.Rectangle
	PeekCard image.Rectangle
	Ambient  bool
	Events   []model.Event
}

// Diagnostic describes a problem with a single event. The event's wedge is
// still drawn; only the affected parts are skipped.
type Diagnostic struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

const (
	KindUnclassifiedGeometry = "unclassified_geometry"
	KindNegativeDuration     = "negative_duration"
	KindOther                = "other"
)

func kindOf(err error) string {
	switch {
	case errors.Is(err, layout.ErrUnclassifiedGeometry):
		return KindUnclassifiedGeometry
	case errors.Is(err, layout.ErrNegativeDuration):
		return KindNegativeDuration
	default:
		return KindOther
	}
}

// Report summarizes what a frame drew.
type Report struct {
	Wedges      int          `json:"wedges"`
	Titles      int          `json:"titles"`
	Countdowns  int          `json:"countdowns"`
	NextEventID string       `json:"next_event_id,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Renderer draws frames. It keeps no state between frames and is safe for
// concurrent use as long as each call gets its own canvas.
type Renderer struct {
	opts   Options
	engine *layout.Engine
	report func(Diagnostic)
}

// New creates a renderer that measures titles with m.
func New(opts Options, m draw.Measurer) *Renderer {
	return &Renderer{
		opts:   opts,
		engine: layout.New(opts.Layout, m),
		report: logDiagnostic,
	}
}

// SetReporter replaces the default diagnostic sink, which logs at WARN.
func (r *Renderer) SetReporter(fn func(Diagnostic)) {
	if fn == nil {
		fn = func(Diagnostic) {}
	}
	r.report = fn
}

func (r *Renderer) Options() Options { return r.opts }

func logDiagnostic(d Diagnostic) {
	appLog.Warn("dial: event skipped in part", "event_id", d.EventID, "title", d.Title, "kind", d.Kind, "err", d.Message)
}

func (r *Renderer) validate(c draw.Canvas, f Frame) error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil canvas", ErrInvalidFrame)
	case f.Events == nil:
		return fmt.Errorf("%w: nil event list", ErrInvalidFrame)
	case f.Now.IsZero():
		return fmt.Errorf("%w: zero time", ErrInvalidFrame)
	case f.Bounds.Empty():
		return fmt.Errorf("%w: empty bounds %v", ErrInvalidFrame, f.Bounds)
	}
	if d := r.opts.Layout.Density; d != 0 && !d.Valid() {
		return fmt.Errorf("%w: density %v", ErrInvalidFrame, float64(d))
	}
	return nil
}

// Render draws frame f onto c. Problems with single events are reported as
// diagnostics and never abort the frame; an error is returned only for a
// frame that cannot be drawn.
func (r *Renderer) Render(c draw.Canvas, f Frame) (Report, error) {
	if err := r.validate(c, f); err != nil {
		return Report{}, err
	}

	g := layout.Geometry{
		Center: draw.Pt(
			float64(f.Bounds.Min.X)+float64(f.Bounds.Dx())/2,
			float64(f.Bounds.Min.Y)+float64(f.Bounds.Dy())/2,
		),
		Radius: float64(f.Bounds.Dx()) / 2,
	}
	current := geom.DrawAngleAt(f.Now)

	var rep Report
	c.FillRect(f.Bounds, r.opts.Background)

	for _, slot := range order.Plan(f.Events, f.Now) {
		if slot.Next {
			rep.NextEventID = slot.Event.ID()
		}
		w := r.engine.Layout(slot, f.Now, g, f.Ambient)
		r.drawWedge(c, f, w, &rep)
	}

	if !f.Ambient {
		r.drawHorizon(c, f.Bounds, g, current)
	}
	r.drawClock(c, f.Bounds, g, current)
	if f.Ambient {
		r.drawPeekCard(c, f.PeekCard)
	}
	return rep, nil
}

func (r *Renderer) drawWedge(c draw.Canvas, f Frame, w layout.Wedge, rep *Report) {
	for _, err := range w.Issues {
		d := Diagnostic{
			EventID: w.Event.ID(),
			Title:   w.Event.Title(),
			Kind:    kindOf(err),
			Message: err.Error(),
			Err:     err,
		}
		rep.Diagnostics = append(rep.Diagnostics, d)
		r.report(d)
	}

	if f.Ambient {
		return
	}
	c.FillArc(f.Bounds, w.StartAngle, w.Sweep, draw.Paint{Color: w.Event.Color()})
	rep.Wedges++

	if w.Title.Visible {
		c.TextOnPath(w.Title.Text, w.Title.Path, w.Title.HOffset, w.Title.VOffset, draw.TextStyle{
			Size:     r.opts.Layout.TitleSize,
			Align:    w.Title.Align,
			Color:    draw.White,
			Gradient: w.Title.Gradient,
		})
		rep.Titles++
	}
	if w.Timer.Visible {
		c.TextOnPath(w.Timer.Text, w.Timer.Path, w.Timer.HOffset, w.Timer.VOffset, draw.TextStyle{
			Size:   r.opts.Layout.CountdownSize,
			Align:  w.Timer.Align,
			Italic: true,
			Color:  draw.White,
		})
		rep.Countdowns++
	}
}

// drawHorizon shades the arc trailing the hand, fading from transparent into
// black at the current time.
func (r *Renderer) drawHorizon(c draw.Canvas, bounds image.Rectangle, g layout.Geometry, current float64) {
	length := r.opts.HorizonDegrees
	if length <= 0 {
		return
	}
	start := geom.NormalizeAngle(current - length)
	c.FillArc(bounds, start, length, draw.Paint{
		Color: draw.Black,
		Sweep: &draw.SweepGradient{
			Center:     g.Center,
			StartAngle: start,
			Sweep:      length,
			From:       draw.Transparent,
			To:         draw.Black,
		},
	})
}

func (r *Renderer) drawClock(c draw.Canvas, bounds image.Rectangle, g layout.Geometry, current float64) {
	px := r.opts.Layout.Density.Px
	stroke := draw.Stroke{Color: dialColor, Width: r.opts.StrokeWidth}

	hand := geom.PointOnCircle(g.Radius, current, g.Center.X, g.Center.Y)
	c.Line(g.Center, draw.FromImage(hand), stroke)
	c.Circle(g.Center, px(r.opts.DotRadius), dotColor)

	marker := px(r.opts.MarkerLength)
	minX, minY := float64(bounds.Min.X), float64(bounds.Min.Y)
	maxX, maxY := float64(bounds.Max.X), float64(bounds.Max.Y)
	c.Line(draw.Pt(g.Center.X, maxY), draw.Pt(g.Center.X, maxY-marker), stroke)
	c.Line(draw.Pt(g.Center.X, minY), draw.Pt(g.Center.X, minY+marker), stroke)
	c.Line(draw.Pt(maxX, g.Center.Y), draw.Pt(maxX-marker, g.Center.Y), stroke)
	c.Line(draw.Pt(minX, g.Center.Y), draw.Pt(minX+marker, g.Center.Y), stroke)
}

func (r *Renderer) drawPeekCard(c draw.Canvas, card image.Rectangle) {
	if card.Empty() {
		return
	}
	c.FillRect(card, draw.Black)
	top := float64(card.Min.Y)
	c.Line(draw.Pt(float64(card.Min.X), top), draw.Pt(float64(card.Max.X), top), draw.Stroke{Color: draw.White, Width: 1})
}

// PeekCardBounds returns the strip of height h at the bottom of bounds.
func PeekCardBounds(bounds image.Rectangle, h int) image.Rectangle {
	if h <= 0 {
		return image.Rectangle{}
	}
	if h > bounds.Dy() {
		h = bounds.Dy()
	}
	return image.Rect(bounds.Min.X, bounds.Max.Y-h, bounds.Max.X, bounds.Max.Y)
}
