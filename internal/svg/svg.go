// Package svg implements the dial canvas as an SVG document. Labels become
// <textPath> runs over straight paths and label shaders become
// userSpaceOnUse linear gradients, so the browser does the glyph work.
package svg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strconv"

	"piedial/internal/draw"
)

// sweepStep is the angular width of one slice when approximating a sweep
// gradient, which SVG cannot express directly.
const sweepStep = 2.0

// Canvas collects drawing calls into an SVG document.
type Canvas struct {
	bounds     image.Rectangle
	fontFamily string

	defs bytes.Buffer
	body bytes.Buffer
	ids  int
}

// New creates a canvas whose viewBox covers bounds.
func New(bounds image.Rectangle) *Canvas {
	return &Canvas{bounds: bounds, fontFamily: "sans-serif"}
}

// SetFontFamily changes the CSS font-family used for labels.
func (c *Canvas) SetFontFamily(f string) {
	if f != "" {
		c.fontFamily = f
	}
}

// WriteTo writes the complete document.
func (c *Canvas) WriteTo(w io.Writer) (int64, error) {
	var doc bytes.Buffer
	fmt.Fprintf(&doc, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="%d %d %d %d" data-ready="true">`,
		c.bounds.Dx(), c.bounds.Dy(), c.bounds.Min.X, c.bounds.Min.Y, c.bounds.Dx(), c.bounds.Dy())
	doc.WriteByte('\n')
	if c.defs.Len() > 0 {
		doc.WriteString("<defs>\n")
		doc.Write(c.defs.Bytes())
		doc.WriteString("</defs>\n")
	}
	doc.Write(c.body.Bytes())
	doc.WriteString("</svg>\n")
	return doc.WriteTo(w)
}

// Bytes returns the document.
func (c *Canvas) Bytes() []byte {
	var b bytes.Buffer
	_, _ = c.WriteTo(&b)
	return b.Bytes()
}

func (c *Canvas) FillRect(r image.Rectangle, col color.NRGBA) {
	fmt.Fprintf(&c.body, `<rect x="%d" y="%d" width="%d" height="%d"%s/>`+"\n",
		r.Min.X, r.Min.Y, r.Dx(), r.Dy(), fill(col))
}

func (c *Canvas) FillArc(bounds image.Rectangle, startAngle, sweep float64, p draw.Paint) {
	if sweep <= 0 || bounds.Empty() {
		return
	}
	sweep = math.Min(sweep, 360)
	if p.Sweep == nil {
		fmt.Fprintf(&c.body, `<path d="%s"%s/>`+"\n", slicePath(bounds, startAngle, sweep), fill(p.Color))
		return
	}

	// one solid slice per step, colored at the slice's middle
	g := *p.Sweep
	cx := float64(bounds.Min.X) + float64(bounds.Dx())/2
	cy := float64(bounds.Min.Y) + float64(bounds.Dy())/2
	c.body.WriteString("<g>\n")
	for a := 0.0; a < sweep; a += sweepStep {
		step := math.Min(sweepStep, sweep-a)
		mid := (startAngle + a + step/2) * math.Pi / 180
		col := g.At(cx+10*math.Cos(mid), cy+10*math.Sin(mid))
		// slices overlap by a hair to hide anti-aliasing seams
		fmt.Fprintf(&c.body, `<path d="%s"%s/>`+"\n", slicePath(bounds, startAngle+a, math.Min(step+0.3, sweep-a)), fill(col))
	}
	c.body.WriteString("</g>\n")
}

func (c *Canvas) Line(from, to draw.Point, s draw.Stroke) {
	fmt.Fprintf(&c.body, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"%s stroke-width="%s" stroke-linecap="round"/>`+"\n",
		num(from.X), num(from.Y), num(to.X), num(to.Y), hex(s.Color), opacity("stroke-opacity", s.Color), num(s.Width))
}

func (c *Canvas) Circle(center draw.Point, radius float64, col color.NRGBA) {
	fmt.Fprintf(&c.body, `<circle cx="%s" cy="%s" r="%s"%s/>`+"\n", num(center.X), num(center.Y), num(radius), fill(col))
}

func (c *Canvas) TextOnPath(text string, path draw.Segment, hOffset, vOffset float64, style draw.TextStyle) {
	if text == "" || path.Len() == 0 {
		return
	}
	pathID := c.id("p")
	fmt.Fprintf(&c.defs, `<path id="%s" d="M%s %s L%s %s"/>`+"\n",
		pathID, num(path.From.X), num(path.From.Y), num(path.To.X), num(path.To.Y))

	paint := fill(style.Color)
	if style.Gradient != nil {
		gradID := c.id("g")
		c.linearGradient(gradID, *style.Gradient)
		paint = fmt.Sprintf(` fill="url(#%s)"`, gradID)
	}

	anchor, offset := "start", hOffset
	if style.Align == draw.AlignRight {
		anchor, offset = "end", path.Len()+hOffset
	}
	italic := ""
	if style.Italic {
		italic = ` font-style="italic"`
	}

	fmt.Fprintf(&c.body, `<text font-family="%s" font-size="%s"%s%s dy="%s">`,
		attr(c.fontFamily), num(style.Size), italic, paint, num(vOffset))
	fmt.Fprintf(&c.body, `<textPath href="#%s" startOffset="%s" text-anchor="%s">`, pathID, num(offset), anchor)
	_ = xml.EscapeText(&c.body, []byte(text))
	c.body.WriteString("</textPath></text>\n")
}

func (c *Canvas) linearGradient(id string, g draw.LinearGradient) {
	fmt.Fprintf(&c.defs, `<linearGradient id="%s" gradientUnits="userSpaceOnUse" spreadMethod="reflect" x1="%s" y1="%s" x2="%s" y2="%s">`+"\n",
		id, num(g.From.X), num(g.From.Y), num(g.To.X), num(g.To.Y))
	for _, s := range g.Stops {
		fmt.Fprintf(&c.defs, `<stop offset="%s" stop-color="%s" stop-opacity="%s"/>`+"\n",
			num(s.Offset), hex(s.Color), num(float64(s.Color.A)/255))
	}
	c.defs.WriteString("</linearGradient>\n")
}

func (c *Canvas) id(prefix string) string {
	c.ids++
	return prefix + strconv.Itoa(c.ids)
}

// slicePath is a pie slice of the ellipse inscribed in bounds.
func slicePath(bounds image.Rectangle, startAngle, sweep float64) string {
	cx := float64(bounds.Min.X) + float64(bounds.Dx())/2
	cy := float64(bounds.Min.Y) + float64(bounds.Dy())/2
	rx, ry := float64(bounds.Dx())/2, float64(bounds.Dy())/2

	if sweep >= 360 {
		// a single arc cannot close on itself; draw two halves
		return fmt.Sprintf("M%s %s A%s %s 0 1 1 %s %s A%s %s 0 1 1 %s %s Z",
			num(cx+rx), num(cy), num(rx), num(ry), num(cx-rx), num(cy), num(rx), num(ry), num(cx+rx), num(cy))
	}

	a0 := startAngle * math.Pi / 180
	a1 := (startAngle + sweep) * math.Pi / 180
	large := 0
	if sweep > 180 {
		large = 1
	}
	return fmt.Sprintf("M%s %s L%s %s A%s %s 0 %d 1 %s %s Z",
		num(cx), num(cy),
		num(cx+rx*math.Cos(a0)), num(cy+ry*math.Sin(a0)),
		num(rx), num(ry), large,
		num(cx+rx*math.Cos(a1)), num(cy+ry*math.Sin(a1)))
}

func fill(c color.NRGBA) string {
	return fmt.Sprintf(` fill="%s"%s`, hex(c), opacity("fill-opacity", c))
}

func opacity(name string, c color.NRGBA) string {
	if c.A == 0xff {
		return ""
	}
	return fmt.Sprintf(` %s="%s"`, name, num(float64(c.A)/255))
}

func hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// num formats a coordinate with at most two decimals.
func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}

func attr(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
