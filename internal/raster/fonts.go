package raster

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Fonts holds the label typefaces and caches one face per size. It
// implements draw.Measurer so layout measures titles with the same font the
// canvas draws them in.
type Fonts struct {
	regular *opentype.Font
	italic  *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	size   float64
	italic bool
}

// NewFonts parses the bundled Go fonts.
func NewFonts() (*Fonts, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("raster: parse regular font: %w", err)
	}
	italic, err := opentype.Parse(goitalic.TTF)
	if err != nil {
		return nil, fmt.Errorf("raster: parse italic font: %w", err)
	}
	return &Fonts{regular: regular, italic: italic, faces: map[faceKey]font.Face{}}, nil
}

// use runs fn with the face for a pixel size. Faces are not safe for
// concurrent use, so fn runs under the cache lock.
func (f *Fonts) use(size float64, italic bool, fn func(font.Face)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := faceKey{size: size, italic: italic}
	face, ok := f.faces[key]
	if !ok {
		src := f.regular
		if italic {
			src = f.italic
		}
		var err error
		face, err = opentype.NewFace(src, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return fmt.Errorf("raster: face %gpx: %w", size, err)
		}
		f.faces[key] = face
	}
	fn(face)
	return nil
}

// MeasureText returns the advance width of text in pixels, 0 if no face can
// be built for size.
func (f *Fonts) MeasureText(text string, size float64) float64 {
	var w float64
	_ = f.use(size, false, func(face font.Face) {
		w = float64(font.MeasureString(face, text)) / 64
	})
	return w
}
