package model

import (
	"fmt"
	"image/color"
	"time"

	"piedial/internal/geom"
)

// Event is a calendar event projected onto the dial. The angular fields are
// derived once in NewEvent and never change; Event has no setters so a
// snapshot handed to the renderer stays consistent for the whole frame.
type Event struct {
	id       string
	title    string
	start    time.Time
	end      time.Time
	location string
	allDay   bool
	color    color.NRGBA

	startAngle          float64
	endAngle            float64
	durationDegrees     float64
	titleOnStartingEdge bool
}

// NewEvent builds an Event and computes its draw-space angles.
//
// The duration uses 12-hour folded minutes, so an event that crosses the
// 12 o'clock fold (e.g. 11:00-13:00) gets a negative duration. That is left
// as is; the layout clamps and reports it.
func NewEvent(id, title string, start, end time.Time, location string, allDay bool, c color.NRGBA) Event {
	startMinutes := geom.MinutesOfDay(start)
	endMinutes := geom.MinutesOfDay(end)

	ev := Event{
		id:       id,
		title:    title,
		start:    start,
		end:      end,
		location: location,
		allDay:   allDay,
		color:    c,

		startAngle:      geom.DrawAngle(startMinutes),
		endAngle:        geom.DrawAngle(endMinutes),
		durationDegrees: geom.DegreesForMinutes(endMinutes - startMinutes),
	}
	ev.titleOnStartingEdge = TitleOnStartingEdge(ev.startAngle, ev.endAngle)
	return ev
}

// TitleOnStartingEdge decides whether a wedge's title anchors to its start
// edge rather than its end edge.
func TitleOnStartingEdge(startAngle, endAngle float64) bool {
	return endAngle > geom.Dial6OClock &&
		(endAngle > geom.Dial3OClockAlt || endAngle <= geom.Dial12OClock) &&
		startAngle >= geom.Dial6OClock
}

func (e Event) ID() string { return e.id }
func (e Event) Title() string { return e.title }
func (e Event) Start() time.Time { return e.start }
func (e Event) End() time.Time { return e.end }
func (e Event) Location() string { return e.location }
func (e Event) AllDay() bool { return e.allDay }
func (e Event) Color() color.NRGBA { return e.color }

// StartAngle is the draw-space angle of the stored start.
func (e Event) StartAngle() float64 { return e.startAngle }

// EndAngle is the draw-space angle of the stored end.
func (e Event) EndAngle() float64 { return e.endAngle }

// DurationDegrees is (end minutes - start minutes) * 0.5 on the folded dial.
func (e Event) DurationDegrees() float64 { return e.durationDegrees }

func (e Event) TitleOnStartingEdge() bool { return e.titleOnStartingEdge }

// StartMinutes is the folded start used for layout.
func (e Event) StartMinutes() int { return geom.MinutesOfDay(e.start) }

// EndMinutes is the folded end used for layout.
func (e Event) EndMinutes() int { return geom.MinutesOfDay(e.end) }

// CrossesFold reports the degenerate case where the folded end lies before
// the folded start.
func (e Event) CrossesFold() bool { return e.durationDegrees < 0 }

// InProgress reports whether now lies strictly inside [start, end].
func (e Event) InProgress(now time.Time) bool {
	return now.After(e.start) && now.Before(e.end)
}

// InTimeString renders the countdown label shown next to the upcoming event.
//
// The value is the folded start minutes minus the folded current minutes, so
// across the 12-hour fold it can read oddly (e.g. "in -600m"). It is
// cosmetic only.
func (e Event) InTimeString(now time.Time) string {
	mins := abs(geom.MinutesOfDay(e.start)) - geom.MinutesOfDay(now)
	if mins > 60 {
		return fmt.Sprintf("in %dh", mins/60)
	}
	return fmt.Sprintf("in %dm", mins)
}

func (e Event) String() string {
	return fmt.Sprintf("title: %s start: %s end: %s all day: %t startAngle: %g endAngle: %g degrees duration: %g",
		e.title, e.start.Format(time.RFC3339), e.end.Format(time.RFC3339), e.allDay,
		e.startAngle, e.endAngle, e.durationDegrees)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
