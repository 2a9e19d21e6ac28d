// Package layout turns an ordered event into a wedge: its clipped angular
// span, the edge and orientation of its title, the countdown label and the
// fade profile of the label shader.
package layout

import (
	"fmt"
	"image"
	"math"
	"time"

	"piedial/internal/draw"
	"piedial/internal/geom"
	"piedial/internal/model"
	"piedial/internal/order"
)

// Options tune label placement. Offsets are in dp and scaled by Density;
// font sizes and LongTitleWidth are in pixels of the measuring font.
type Options struct {
	Density geom.Density

	// MinDegreesForTitle is the smallest sweep that still gets a title.
	// The countdown label needs twice as much.
	MinDegreesForTitle float64

	// LongTitleWidth and LongTitleMaxSweep trigger the alignment flip for
	// titles too long to fit a narrow wedge.
	LongTitleWidth    float64
	LongTitleMaxSweep float64

	TitleSize     float64
	CountdownSize float64
}

func DefaultOptions() Options {
	return Options{
		Density:            1,
		MinDegreesForTitle: 15,
		LongTitleWidth:     170,
		LongTitleMaxSweep:  60,
		TitleSize:          24,
		CountdownSize:      19,
	}
}

// Fade holds the two gradient stop positions of a label shader.
type Fade struct {
	Color float64 `json:"color"`
	Fade  float64 `json:"fade"`
}

const (
	colorThresholdCap = 0.6
	fadeThresholdCap  = 0.8
	fadeFullSweep     = 30.0
)

// FadeProfile compresses the label fade for thin wedges. Ambient frames use
// fixed stops.
func FadeProfile(sweep float64, ambient bool) Fade {
	if ambient {
		return Fade{Color: 0.7, Fade: 0.9}
	}
	return Fade{
		Color: scaledThreshold(colorThresholdCap, sweep),
		Fade:  scaledThreshold(fadeThresholdCap, sweep),
	}
}

func scaledThreshold(limit, sweep float64) float64 {
	return math.Max(0, math.Min(limit, limit/fadeFullSweep*sweep))
}

// Geometry is the dial circle of the current frame.
type Geometry struct {
	Center draw.Point
	Radius float64
}

// Label is a text run along a straight path from the dial center to a wedge
// edge (or back).
type Label struct {
	Text     string               `json:"text"`
	Path     draw.Segment         `json:"path"`
	Align    draw.Align           `json:"align"`
	HOffset  float64              `json:"h_offset"`
	VOffset  float64              `json:"v_offset"`
	Gradient *draw.LinearGradient `json:"gradient,omitempty"`
	Visible  bool                 `json:"visible"`
}

// Wedge is the draw instruction for one event.
type Wedge struct {
	Event model.Event

	StartAngle float64
	Sweep      float64
	InProgress bool

	StartPoint image.Point
	EndPoint   image.Point
	Ambient    bool

	Case   Case
	Fade   Fade
	Flip   bool
	Title  Label
	Timer  Label
	Issues []error
}

// Engine lays out wedges. It keeps no state between calls.
type Engine struct {
	opts    Options
	measure draw.Measurer
}

func New(opts Options, m draw.Measurer) *Engine {
	if m == nil {
		m = draw.FixedWidth(0.5)
	}
	return &Engine{opts: opts, measure: m}
}

func (e *Engine) Options() Options { return e.opts }

// Layout computes the wedge for slot at time now. Problems with the event
// are collected in Wedge.Issues; the returned wedge is always drawable.
func (e *Engine) Layout(slot order.Slot, now time.Time, g Geometry, ambient bool) Wedge {
	ev := slot.Event
	w := Wedge{
		Event:      ev,
		StartAngle: geom.DrawAngle(slot.StartMinutes),
		Sweep:      ev.DurationDegrees(),
	}

	if ev.InProgress(now) {
		current := geom.DrawAngleAt(now)
		elapsed := geom.NormalizeAngle(current - ev.StartAngle())
		w.StartAngle = current
		w.Sweep = ev.DurationDegrees() - elapsed
		w.InProgress = true
	}

	if w.Sweep < 0 {
		w.Issues = append(w.Issues, fmt.Errorf("%w: %g degrees for %s-%s", ErrNegativeDuration,
			w.Sweep, ev.Start().Format("15:04"), ev.End().Format("15:04")))
		w.Sweep = 0
	}

	w.StartPoint = geom.PointOnCircle(g.Radius, w.StartAngle, g.Center.X, g.Center.Y)
	w.EndPoint = geom.PointOnCircle(g.Radius, ev.EndAngle(), g.Center.X, g.Center.Y)
	w.Ambient = ambient
	w.Fade = FadeProfile(w.Sweep, ambient)

	e.labels(&w, slot, now, g.Center, ev.TitleOnStartingEdge(), ev.StartAngle(), ev.EndAngle())
	return w
}

// labels classifies the anchoring edge and, when a case matches, lays out
// the title and countdown. On failure the labels stay hidden.
func (e *Engine) labels(w *Wedge, slot order.Slot, now time.Time, center draw.Point, startingEdge bool, startAngle, endAngle float64) {
	c, err := Classify(startingEdge, startAngle, endAngle)
	if err != nil {
		w.Issues = append(w.Issues, err)
		return
	}
	w.Case = c
	e.place(w, center)

	w.Title.Text = w.Event.Title()
	w.Title.Visible = !w.Ambient && w.Sweep > e.opts.MinDegreesForTitle
	w.Timer.Text = w.Event.InTimeString(now)
	w.Timer.Visible = !w.Ambient && slot.Next && w.Sweep > 2*e.opts.MinDegreesForTitle
}

// place fills in paths, alignment, offsets and the title shader for w.Case.
func (e *Engine) place(w *Wedge, center draw.Point) {
	px := e.opts.Density.Px
	start := draw.FromImage(w.StartPoint)
	end := draw.FromImage(w.EndPoint)

	edge := end
	if w.Case == CaseStartRight || w.Case == CaseStartLeft {
		edge = start
	}
	stops := w.stops()
	w.Title.Gradient = &draw.LinearGradient{From: edge, To: center, Stops: stops}

	switch w.Case {
	case CaseStartRight:
		w.Title.Align = draw.AlignRight
		w.Title.Path = draw.Segment{From: center, To: edge}
		w.Title.VOffset, w.Title.HOffset = px(15), px(-5)
		e.flipLongTitle(w, center, edge)

		w.Timer.Align = draw.AlignRight
		w.Timer.Path = draw.Segment{From: center, To: end}
		w.Timer.VOffset, w.Timer.HOffset = px(-5), px(-5)

	case CaseStartLeft:
		w.Title.Align = draw.AlignLeft
		w.Title.Path = draw.Segment{From: edge, To: center}
		w.Title.VOffset, w.Title.HOffset = px(-5), px(5)

		w.Timer.Align = draw.AlignLeft
		w.Timer.Path = draw.Segment{From: end, To: center}
		w.Timer.VOffset, w.Timer.HOffset = px(15), px(7)

	case CaseEndLeft:
		w.Title.Align = draw.AlignLeft
		w.Title.Path = draw.Segment{From: edge, To: center}
		w.Title.VOffset, w.Title.HOffset = px(15), px(5)

		w.Timer.Align = draw.AlignRight
		w.Timer.Path = draw.Segment{From: center, To: start}
		w.Timer.VOffset, w.Timer.HOffset = px(15), px(5)

	case CaseEndRight:
		w.Title.Align = draw.AlignRight
		w.Title.Path = draw.Segment{From: center, To: edge}
		w.Title.VOffset, w.Title.HOffset = px(-5), px(-5)
		e.flipLongTitle(w, center, edge)

		w.Timer.Align = draw.AlignRight
		w.Timer.Path = draw.Segment{From: center, To: start}
		w.Timer.VOffset, w.Timer.HOffset = px(15), px(-7)
	}
}

// flipLongTitle re-anchors a title that would run past a narrow wedge: the
// text moves to the rim side and the shader is inverted to fade outwards.
func (e *Engine) flipLongTitle(w *Wedge, center, edge draw.Point) {
	if w.Sweep >= e.opts.LongTitleMaxSweep {
		return
	}
	if e.measure.MeasureText(w.Event.Title(), e.opts.TitleSize) <= e.opts.LongTitleWidth {
		return
	}
	w.Flip = true
	w.Title.Align = w.Title.Align.Flip()
	w.Title.HOffset = e.opts.Density.Px(28)

	stops := w.stops()
	stops[0].Offset, stops[1].Offset, stops[2].Offset = 0.8, 1, 1
	w.Title.Gradient = &draw.LinearGradient{From: center, To: edge, Stops: stops}
}

// stops builds white -> event color -> transparent at the fade positions.
// In ambient mode the middle stop is transparent as well.
func (w *Wedge) stops() []draw.Stop {
	mid := w.Event.Color()
	if w.Ambient {
		mid = draw.Transparent
	}
	return []draw.Stop{
		{Offset: w.Fade.Color, Color: draw.White},
		{Offset: w.Fade.Fade, Color: mid},
		{Offset: w.Fade.Fade, Color: draw.Transparent},
	}
}
