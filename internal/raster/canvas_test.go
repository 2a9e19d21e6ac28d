package raster

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"piedial/internal/dial"
	"piedial/internal/draw"
	"piedial/internal/model"
)

var red = color.NRGBA{R: 0xff, A: 0xff}

func newFonts(t *testing.T) *Fonts {
	t.Helper()
	f, err := NewFonts()
	if err != nil {
		t.Fatalf("NewFonts: %v", err)
	}
	return f
}

func TestFillRect(t *testing.T) {
	c := New(image.Rect(0, 0, 100, 100), nil)
	c.FillRect(image.Rect(10, 10, 20, 20), red)
	if got := c.Image().RGBAAt(15, 15); got != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Errorf("inside = %v", got)
	}
	if got := c.Image().RGBAAt(25, 25); got.A != 0 {
		t.Errorf("outside = %v", got)
	}
	// clipped to the canvas
	c.FillRect(image.Rect(-50, -50, 500, 5), red)
	if got := c.Image().RGBAAt(0, 0); got.R != 0xff {
		t.Errorf("clipped fill = %v", got)
	}
}

func TestFillArcQuadrant(t *testing.T) {
	c := New(image.Rect(0, 0, 100, 100), nil)
	c.FillArc(image.Rect(0, 0, 100, 100), 0, 90, draw.Paint{Color: draw.White})

	img := c.Image()
	if got := img.RGBAAt(75, 75); got.A != 0xff {
		t.Errorf("3-6 o'clock quadrant not filled: %v", got)
	}
	for _, p := range []image.Point{{25, 25}, {75, 25}, {25, 75}} {
		if got := img.RGBAAt(p.X, p.Y); got.A != 0 {
			t.Errorf("pixel %v filled: %v", p, got)
		}
	}
}

func TestFillArcZeroSweep(t *testing.T) {
	c := New(image.Rect(0, 0, 50, 50), nil)
	c.FillArc(image.Rect(0, 0, 50, 50), 10, 0, draw.Paint{Color: draw.White})
	for _, v := range c.Image().Pix {
		if v != 0 {
			t.Fatal("zero sweep drew pixels")
		}
	}
}

func TestFillArcSweepGradient(t *testing.T) {
	c := New(image.Rect(0, 0, 200, 200), nil)
	c.FillArc(image.Rect(0, 0, 200, 200), 0, 90, draw.Paint{
		Color: draw.Black,
		Sweep: &draw.SweepGradient{
			Center: draw.Pt(100, 100), StartAngle: 0, Sweep: 90,
			From: draw.Transparent, To: draw.Black,
		},
	})
	img := c.Image()
	nearStart := img.RGBAAt(180, 110).A // about 7 degrees
	nearEnd := img.RGBAAt(110, 180).A   // about 83 degrees
	if nearStart >= nearEnd {
		t.Errorf("alpha should grow along the sweep: start %d, end %d", nearStart, nearEnd)
	}
}

func TestLineAndCircle(t *testing.T) {
	c := New(image.Rect(0, 0, 100, 100), nil)
	c.Line(draw.Pt(10, 50), draw.Pt(90, 50), draw.Stroke{Color: draw.White, Width: 6})
	img := c.Image()
	if got := img.RGBAAt(50, 50); got.A != 0xff {
		t.Errorf("line body = %v", got)
	}
	if got := img.RGBAAt(8, 50); got.A == 0 {
		t.Error("round cap missing")
	}
	if got := img.RGBAAt(50, 60); got.A != 0 {
		t.Errorf("line too wide: %v", got)
	}

	c.Circle(draw.Pt(50, 20), 8, red)
	if got := img.RGBAAt(50, 20); got.R != 0xff || got.A != 0xff {
		t.Errorf("circle center = %v", got)
	}
	if got := img.RGBAAt(50, 32); got.A != 0 {
		t.Errorf("circle too large: %v", got)
	}
}

func inkBounds(img *image.RGBA) image.Rectangle {
	var r image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A > 0 {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

func TestTextOnPathAlignment(t *testing.T) {
	fonts := newFonts(t)
	path := draw.Segment{From: draw.Pt(10, 60), To: draw.Pt(290, 60)}
	style := draw.TextStyle{Size: 24, Color: draw.White}

	left := New(image.Rect(0, 0, 300, 100), fonts)
	left.TextOnPath("Lunch", path, 0, 0, style)
	lb := inkBounds(left.Image())
	if lb.Empty() {
		t.Fatal("no text drawn")
	}
	if lb.Min.X < 5 || lb.Min.X > 20 || lb.Max.X > 150 {
		t.Errorf("left-aligned ink = %v", lb)
	}
	if lb.Max.Y > 63 || lb.Min.Y < 30 {
		t.Errorf("text should sit on the path: %v", lb)
	}

	style.Align = draw.AlignRight
	right := New(image.Rect(0, 0, 300, 100), fonts)
	right.TextOnPath("Lunch", path, 0, 0, style)
	rb := inkBounds(right.Image())
	if rb.Max.X < 280 || rb.Min.X < 150 {
		t.Errorf("right-aligned ink = %v", rb)
	}

	below := New(image.Rect(0, 0, 300, 100), fonts)
	style.Align = draw.AlignLeft
	below.TextOnPath("Lunch", path, 0, 30, style)
	if bb := inkBounds(below.Image()); bb.Min.Y <= lb.Min.Y {
		t.Errorf("positive vOffset should move text down: %v vs %v", bb, lb)
	}
}

func TestTextOnPathVertical(t *testing.T) {
	c := New(image.Rect(0, 0, 100, 300), newFonts(t))
	c.TextOnPath("Standup", draw.Segment{From: draw.Pt(50, 10), To: draw.Pt(50, 290)}, 0, 0, draw.TextStyle{Size: 24, Color: draw.White})
	b := inkBounds(c.Image())
	if b.Dy() <= b.Dx() {
		t.Errorf("text along a vertical path should be taller than wide: %v", b)
	}
}

func TestTextOnPathGradient(t *testing.T) {
	c := New(image.Rect(0, 0, 300, 100), newFonts(t))
	path := draw.Segment{From: draw.Pt(10, 60), To: draw.Pt(290, 60)}
	c.TextOnPath("WWWWWWWWWW", path, 0, 0, draw.TextStyle{
		Size: 24,
		Gradient: &draw.LinearGradient{
			From:  path.From,
			To:    path.To,
			Stops: []draw.Stop{{Offset: 0, Color: draw.White}, {Offset: 0.5, Color: draw.Transparent}},
		},
	})
	b := inkBounds(c.Image())
	if b.Max.X > 160 {
		t.Errorf("text past the transparent stop should vanish: %v", b)
	}
}

func TestMeasureText(t *testing.T) {
	f := newFonts(t)
	short := f.MeasureText("Lunch", 24)
	long := f.MeasureText("Lunch with the whole team", 24)
	if short <= 0 || long <= short {
		t.Errorf("widths short=%v long=%v", short, long)
	}
	if f.MeasureText("Lunch", 48) <= short {
		t.Error("width should grow with size")
	}
}

func TestWritePNG(t *testing.T) {
	c := New(image.Rect(0, 0, 20, 10), nil)
	c.FillRect(image.Rect(0, 0, 20, 10), red)
	path := filepath.Join(t.TempDir(), "out", "dial.png")
	if err := WritePNG(path, c.Image()); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestRenderDialFrame(t *testing.T) {
	fonts := newFonts(t)
	bounds := image.Rect(0, 0, 400, 400)
	c := New(bounds, fonts)
	r := dial.New(dial.DefaultOptions(), fonts)

	at := func(h, m int) time.Time { return time.Date(2025, 11, 24, h, m, 0, 0, time.UTC) }
	events := []model.Event{
		model.NewEvent("1", "Lunch", at(12, 0), at(13, 30), "", false, model.DefaultColor),
		model.NewEvent("2", "Review", at(15, 30), at(16, 30), "", false, model.DefaultColor),
	}
	if _, err := r.Render(c, dial.Frame{Now: at(14, 30), Bounds: bounds, Events: events}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	img := c.Image()
	if got := img.RGBAAt(200, 200); got != (color.RGBA{R: 0xc9, G: 0xc9, B: 0xc9, A: 0xff}) {
		t.Errorf("center dot = %v", got)
	}
	// inside the 12:00-13:30 wedge, away from labels
	if got := img.RGBAAt(290, 30); got.R != model.DefaultColor.R || got.G != model.DefaultColor.G {
		t.Errorf("wedge pixel = %v", got)
	}
	// the 9 o'clock half stays background
	if got := img.RGBAAt(60, 260); got != (color.RGBA{A: 0xff}) {
		t.Errorf("background pixel = %v", got)
	}
}
