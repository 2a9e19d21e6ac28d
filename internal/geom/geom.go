// Package geom converts wall-clock time into positions on a 12-hour dial.
//
// Two angle spaces exist. Raw degrees start at 12 o'clock and grow 0.5 degree
// per minute. Draw-space angles follow the arc-drawing convention used by the
// canvas: 0 degrees at 3 o'clock, 90 at 6, 180 at 9 and 270 at 12, growing
// clockwise because screen Y points down.
package geom

import (
	"image"
	"math"
	"time"
)

// Primary dial positions in draw space.
const (
	Dial12OClock     = 270.0
	Dial3OClock      = 0.0
	Dial3OClockAlt   = 360.0
	Dial6OClock      = 90.0
	Dial9OClock      = 180.0
	DegreesPerMinute = 0.5

	// MinutesPerDial is one full revolution of a 12-hour dial.
	MinutesPerDial = 12 * 60

	// offsetMinutes is where draw space puts 0 degrees (3 o'clock).
	offsetMinutes = 180
)

// MinutesOfDay folds t onto the 12-hour dial: (hour mod 12)*60 + minute.
func MinutesOfDay(t time.Time) int {
	return (t.Hour()%12)*60 + t.Minute()
}

// DegreesForMinutes converts a minute count into raw dial degrees.
func DegreesForMinutes(minutes int) float64 {
	return float64(minutes) * DegreesPerMinute
}

// FoldMinutes maps any minute count onto [0, 720).
func FoldMinutes(minutes int) int {
	m := minutes % MinutesPerDial
	if m < 0 {
		m += MinutesPerDial
	}
	return m
}

// DrawAngle converts a minute count into a draw-space angle in [0, 360).
// Exactly 180 minutes (3:00) maps to 0.
func DrawAngle(minutes int) float64 {
	m := FoldMinutes(minutes)
	raw := DegreesForMinutes(m)
	if m >= offsetMinutes {
		return raw - 90
	}
	return raw + 270
}

// DrawAngleAt is DrawAngle(MinutesOfDay(t)).
func DrawAngleAt(t time.Time) float64 {
	return DrawAngle(MinutesOfDay(t))
}

// NormalizeAngle wraps any finite angle into [0, 360).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

// PointOnCircle returns the pixel on a circle of the given radius at a
// draw-space angle, rounded to the nearest integer like the canvas does.
func PointOnCircle(radius, angle, centerX, centerY float64) image.Point {
	rad := angle * math.Pi / 180
	return image.Point{
		X: int(math.Round(centerX + radius*math.Cos(rad))),
		Y: int(math.Round(centerY + radius*math.Sin(rad))),
	}
}

// Density scales device-independent units into pixels.
type Density float64

// Px converts dp into pixels. A zero density is treated as 1.
func (d Density) Px(dp float64) float64 {
	if d == 0 {
		return dp
	}
	return dp * float64(d)
}

// Valid reports whether d is usable as a scale factor.
func (d Density) Valid() bool {
	f := float64(d)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
}
