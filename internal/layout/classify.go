package layout

import (
	"errors"
	"fmt"
	"math"

	"piedial/internal/geom"
)

var (
	// ErrUnclassifiedGeometry means no label case matches the wedge's
	// anchoring angle. The wedge is still drawn, without labels.
	ErrUnclassifiedGeometry = errors.New("layout: cannot place wedge title")

	// ErrNegativeDuration flags an event whose folded end precedes its
	// folded start (it crosses the 12 o'clock fold). Its sweep is clamped
	// to zero.
	ErrNegativeDuration = errors.New("layout: negative wedge duration")
)

// Case is one of the four label placements.
type Case int

const (
	CaseUnknown Case = iota
	// Title on the starting edge, which lies in the right half (12 -> 3 -> 6).
	CaseStartRight
	// Title on the starting edge, which lies in the left half (6 -> 9 -> 12).
	CaseStartLeft
	// Title on the ending edge, which lies in the left half.
	CaseEndLeft
	// Title on the ending edge, which lies in the right half.
	CaseEndRight
)

func (c Case) String() string {
	switch c {
	case CaseStartRight:
		return "start-right"
	case CaseStartLeft:
		return "start-left"
	case CaseEndLeft:
		return "end-left"
	case CaseEndRight:
		return "end-right"
	default:
		return "unknown"
	}
}

// rightHalf covers draw angles from 12 o'clock through 3 to just before 6.
func rightHalf(a float64) bool {
	return (a >= geom.Dial12OClock && a <= geom.Dial3OClockAlt) ||
		(a >= geom.Dial3OClock && a < geom.Dial6OClock)
}

// leftHalf covers draw angles from 6 o'clock through 9 to just before 12.
func leftHalf(a float64) bool {
	return a >= geom.Dial6OClock && a < geom.Dial12OClock
}

// Classify picks the label case for a wedge. The anchoring edge's angle is
// startAngle when startingEdge is set, endAngle otherwise. Every angle in
// [0, 360] matches exactly one case; anything else (NaN, out of range) is
// reported as ErrUnclassifiedGeometry.
func Classify(startingEdge bool, startAngle, endAngle float64) (Case, error) {
	edge, name := endAngle, "end"
	if startingEdge {
		edge, name = startAngle, "start"
	}

	switch {
	case math.IsNaN(edge):
	case startingEdge && rightHalf(edge):
		return CaseStartRight, nil
	case startingEdge && leftHalf(edge):
		return CaseStartLeft, nil
	case !startingEdge && leftHalf(edge):
		return CaseEndLeft, nil
	case !startingEdge && rightHalf(edge):
		return CaseEndRight, nil
	}
	return CaseUnknown, fmt.Errorf("%w: %s edge at %g (start %g, end %g)",
		ErrUnclassifiedGeometry, name, edge, startAngle, endAngle)
}
