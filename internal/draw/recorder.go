package draw

import (
	"image"
	"image/color"
)

// OpKind names a recorded canvas call.
type OpKind string

const (
	OpRect   OpKind = "rect"
	OpArc    OpKind = "arc"
	OpLine   OpKind = "line"
	OpCircle OpKind = "circle"
	OpText   OpKind = "text"
)

// Op is one recorded draw call. Only the fields relevant to Kind are set.
type Op struct {
	Kind OpKind `json:"kind"`

	Bounds     *image.Rectangle `json:"bounds,omitempty"`
	StartAngle float64          `json:"start_angle,omitempty"`
	Sweep      float64          `json:"sweep,omitempty"`
	Paint      *Paint           `json:"paint,omitempty"`

	Path   *Segment `json:"path,omitempty"`
	Stroke *Stroke  `json:"stroke,omitempty"`

	Center *Point       `json:"center,omitempty"`
	Radius float64      `json:"radius,omitempty"`
	Color  *color.NRGBA `json:"color,omitempty"`

	Text    string     `json:"text,omitempty"`
	HOffset float64    `json:"h_offset,omitempty"`
	VOffset float64    `json:"v_offset,omitempty"`
	Style   *TextStyle `json:"style,omitempty"`
}

// Recorder is a Canvas that stores every call in order.
type Recorder struct {
	Ops []Op
}

func (r *Recorder) FillRect(rect image.Rectangle, c color.NRGBA) {
	r.Ops = append(r.Ops, Op{Kind: OpRect, Bounds: &rect, Color: &c})
}

func (r *Recorder) FillArc(bounds image.Rectangle, startAngle, sweep float64, p Paint) {
	r.Ops = append(r.Ops, Op{Kind: OpArc, Bounds: &bounds, StartAngle: startAngle, Sweep: sweep, Paint: &p})
}

func (r *Recorder) Line(from, to Point, s Stroke) {
	r.Ops = append(r.Ops, Op{Kind: OpLine, Path: &Segment{From: from, To: to}, Stroke: &s})
}

func (r *Recorder) Circle(center Point, radius float64, c color.NRGBA) {
	r.Ops = append(r.Ops, Op{Kind: OpCircle, Center: &center, Radius: radius, Color: &c})
}

func (r *Recorder) TextOnPath(text string, path Segment, hOffset, vOffset float64, style TextStyle) {
	r.Ops = append(r.Ops, Op{Kind: OpText, Text: text, Path: &path, HOffset: hOffset, VOffset: vOffset, Style: &style})
}

// Filter returns the recorded ops of one kind, in draw order.
func (r *Recorder) Filter(kind OpKind) []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// Replay issues the recorded calls against another canvas.
func (r *Recorder) Replay(c Canvas) {
	for _, op := range r.Ops {
		switch op.Kind {
		case OpRect:
			c.FillRect(*op.Bounds, *op.Color)
		case OpArc:
			c.FillArc(*op.Bounds, op.StartAngle, op.Sweep, *op.Paint)
		case OpLine:
			c.Line(op.Path.From, op.Path.To, *op.Stroke)
		case OpCircle:
			c.Circle(*op.Center, op.Radius, *op.Color)
		case OpText:
			c.TextOnPath(op.Text, *op.Path, op.HOffset, op.VOffset, *op.Style)
		}
	}
}
