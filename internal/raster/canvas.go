// Package raster implements the dial canvas on an in-memory RGBA image,
// using golang.org/x/image for path filling, glyph rendering and the affine
// placement of labels along their paths.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"piedial/internal/draw"
)

// maxArcStep is the largest angle, in degrees, covered by one polygon edge
// when flattening arcs.
const maxArcStep = 2.0

// Canvas draws onto an RGBA image.
type Canvas struct {
	img   *image.RGBA
	fonts *Fonts
}

// New creates a transparent canvas covering bounds.
func New(bounds image.Rectangle, fonts *Fonts) *Canvas {
	return &Canvas{img: image.NewRGBA(bounds), fonts: fonts}
}

func (c *Canvas) Image() *image.RGBA { return c.img }

// EncodePNG writes the canvas as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return png.Encode(w, c.img)
}

// WritePNG writes img to path through a temporary file in the same
// directory, so readers never see a partial image.
func WritePNG(path string, img image.Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("raster: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".piedial-*.png")
	if err != nil {
		return fmt.Errorf("raster: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("raster: encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("raster: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("raster: rename to %s: %w", path, err)
	}
	return nil
}

func (c *Canvas) FillRect(r image.Rectangle, col color.NRGBA) {
	r = r.Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	xdraw.Draw(c.img, r, image.NewUniform(col), image.Point{}, xdraw.Over)
}

// FillArc fills the pie slice of the ellipse inscribed in bounds, closed
// through its center.
func (c *Canvas) FillArc(bounds image.Rectangle, startAngle, sweep float64, p draw.Paint) {
	if sweep <= 0 || bounds.Empty() {
		return
	}
	sweep = math.Min(sweep, 360)

	cx := float64(bounds.Min.X) + float64(bounds.Dx())/2
	cy := float64(bounds.Min.Y) + float64(bounds.Dy())/2
	rx, ry := float64(bounds.Dx())/2, float64(bounds.Dy())/2

	var src image.Image = image.NewUniform(p.Color)
	if p.Sweep != nil {
		src = shader(p.Sweep.At)
	}

	c.fill(src, func(z *vector.Rasterizer) {
		steps := int(math.Ceil(sweep / maxArcStep))
		c.moveTo(z, cx, cy)
		for i := 0; i <= steps; i++ {
			a := (startAngle + sweep*float64(i)/float64(steps)) * math.Pi / 180
			c.lineTo(z, cx+rx*math.Cos(a), cy+ry*math.Sin(a))
		}
		z.ClosePath()
	})
}

// Line strokes a segment with round caps.
func (c *Canvas) Line(from, to draw.Point, s draw.Stroke) {
	half := math.Max(s.Width, 1) / 2
	dx, dy := to.X-from.X, to.Y-from.Y
	l := math.Hypot(dx, dy)

	c.fill(image.NewUniform(s.Color), func(z *vector.Rasterizer) {
		if l > 0 {
			nx, ny := -dy/l*half, dx/l*half
			c.moveTo(z, from.X-nx, from.Y-ny)
			c.lineTo(z, to.X-nx, to.Y-ny)
			c.lineTo(z, to.X+nx, to.Y+ny)
			c.lineTo(z, from.X+nx, from.Y+ny)
			z.ClosePath()
		}
		c.circlePath(z, from, half)
		c.circlePath(z, to, half)
	})
}

func (c *Canvas) Circle(center draw.Point, radius float64, col color.NRGBA) {
	if radius <= 0 {
		return
	}
	c.fill(image.NewUniform(col), func(z *vector.Rasterizer) {
		c.circlePath(z, center, radius)
	})
}

// TextOnPath renders text into an alpha mask, shades it with the style's
// color or gradient at its final position, and maps it onto the path.
// Positive vOffset moves the text below the path, as seen when walking from
// path.From to path.To.
func (c *Canvas) TextOnPath(text string, path draw.Segment, hOffset, vOffset float64, style draw.TextStyle) {
	l := path.Len()
	if l == 0 || text == "" || c.fonts == nil {
		return
	}
	ux, uy := (path.To.X-path.From.X)/l, (path.To.Y-path.From.Y)/l
	nx, ny := -uy, ux

	shade := func(float64, float64) color.NRGBA { return style.Color }
	if style.Gradient != nil {
		shade = style.Gradient.At
	}

	_ = c.fonts.use(style.Size, style.Italic, func(face font.Face) {
		const pad = 2
		width := float64(font.MeasureString(face, text)) / 64
		metrics := face.Metrics()
		ascent, descent := metrics.Ascent.Ceil(), metrics.Descent.Ceil()

		mask := image.NewAlpha(image.Rect(0, 0, int(math.Ceil(width))+2*pad, ascent+descent+2*pad))
		d := font.Drawer{Dst: mask, Src: image.Opaque, Face: face, Dot: fixed.P(pad, pad+ascent)}
		d.DrawString(text)

		along := hOffset
		if style.Align == draw.AlignRight {
			along = l - width + hOffset
		}
		// the pen origin (pad, pad+ascent) lands on the path, shifted by the
		// offsets
		across := vOffset - float64(pad+ascent)
		s2d := f64.Aff3{
			ux, nx, path.From.X + (along-pad)*ux + across*nx,
			uy, ny, path.From.Y + (along-pad)*uy + across*ny,
		}

		src := image.NewNRGBA(mask.Bounds())
		for y := 0; y < mask.Rect.Dy(); y++ {
			for x := 0; x < mask.Rect.Dx(); x++ {
				a := mask.AlphaAt(x, y).A
				if a == 0 {
					continue
				}
				fx, fy := float64(x)+0.5, float64(y)+0.5
				col := shade(s2d[0]*fx+s2d[1]*fy+s2d[2], s2d[3]*fx+s2d[4]*fy+s2d[5])
				col.A = uint8(uint32(col.A) * uint32(a) / 0xff)
				src.SetNRGBA(x, y, col)
			}
		}
		xdraw.BiLinear.Transform(c.img, s2d, src, src.Bounds(), xdraw.Over, nil)
	})
}

func (c *Canvas) fill(src image.Image, build func(z *vector.Rasterizer)) {
	b := c.img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = xdraw.Over
	build(z)
	z.Draw(c.img, b, src, b.Min)
}

func (c *Canvas) moveTo(z *vector.Rasterizer, x, y float64) {
	o := c.img.Bounds().Min
	z.MoveTo(float32(x-float64(o.X)), float32(y-float64(o.Y)))
}

func (c *Canvas) lineTo(z *vector.Rasterizer, x, y float64) {
	o := c.img.Bounds().Min
	z.LineTo(float32(x-float64(o.X)), float32(y-float64(o.Y)))
}

// circlePath adds a closed circle with the same winding as arcs and line
// bodies, so overlapping shapes in one fill never cancel out.
func (c *Canvas) circlePath(z *vector.Rasterizer, center draw.Point, r float64) {
	steps := int(math.Max(16, math.Ceil(360/maxArcStep*math.Min(1, r/50))))
	c.moveTo(z, center.X+r, center.Y)
	for i := 1; i <= steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		c.lineTo(z, center.X+r*math.Cos(a), center.Y+r*math.Sin(a))
	}
	z.ClosePath()
}

// shader adapts a per-pixel color function to image.Image, sampling at
// pixel centers.
type shader func(x, y float64) color.NRGBA

func (s shader) ColorModel() color.Model { return color.NRGBAModel }

func (s shader) Bounds() image.Rectangle {
	return image.Rect(-1<<20, -1<<20, 1<<20, 1<<20)
}

func (s shader) At(x, y int) color.Color {
	return s(float64(x)+0.5, float64(y)+0.5)
}
