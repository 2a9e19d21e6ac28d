// Package convert reduces rendered dial frames for low-bit ambient screens.
package convert

import (
	"image"
	"image/color"
	"image/draw"
)

// LowBitPalette is the two-color palette of low-bit ambient frames.
var LowBitPalette = color.Palette{color.Black, color.White}

// LowBit converts img into a 1-bit black/white image.
//
// Pixel classification:
//
//   - mostly transparent (alpha < 128) → black, the ambient background
//   - luma Y = 0.299R + 0.587G + 0.114B >= threshold → white
//   - everything else → black
//
// Anti-aliased edges therefore snap to one side, which is what low-bit
// ambient panels expect.
func LowBit(img image.Image, threshold uint8) *image.Paletted {
	b := img.Bounds()
	src, ok := img.(*image.NRGBA)
	if !ok {
		src = image.NewNRGBA(b)
		draw.Draw(src, b, img, b.Min, draw.Src)
	}

	dst := image.NewPaletted(b, LowBitPalette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[(y-b.Min.Y)*src.Stride:]
		out := dst.Pix[(y-b.Min.Y)*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			i := x * 4
			if classifyPixel(row[i], row[i+1], row[i+2], row[i+3], threshold) == inkWhite {
				out[x] = 1
			}
		}
	}
	return dst
}

// inkColor indicates which palette entry a pixel maps to.
type inkColor int

const (
	inkBlack inkColor = iota
	inkWhite
)

func classifyPixel(r, g, b, a, threshold uint8) inkColor {
	if a < 128 {
		return inkBlack
	}
	// Luma (perceptual brightness).
	y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	if y >= float64(threshold) {
		return inkWhite
	}
	return inkBlack
}
