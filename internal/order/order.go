// Package order arranges a frame's events chronologically and picks the one
// that gets a countdown label.
package order

import (
	"sort"
	"time"

	"piedial/internal/model"
)

// CollisionOffsetMinutes shifts the layout start of an event that begins at
// exactly the same instant as the event before it.
const CollisionOffsetMinutes = 20

// Slot is one event in layout order.
type Slot struct {
	Event model.Event

	// StartMinutes is the folded start used for layout. It differs from
	// Event.StartMinutes() only for colliding starts.
	StartMinutes int

	// Shifted reports that the collision offset was applied.
	Shifted bool

	// Next marks the single event selected for the countdown label.
	Next bool
}

// SortByStart returns a copy of events ordered by start instant. Equal starts
// keep their input order.
func SortByStart(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start().Before(out[j].Start())
	})
	return out
}

// LayoutStartMinutes returns the effective start minutes for an already
// sorted list. Every event whose start equals the previous event's start is
// pushed CollisionOffsetMinutes later; stored angles are untouched.
func LayoutStartMinutes(sorted []model.Event) []int {
	out := make([]int, len(sorted))
	for i, ev := range sorted {
		out[i] = ev.StartMinutes()
		if i > 0 && ev.Start().Equal(sorted[i-1].Start()) {
			out[i] += CollisionOffsetMinutes
		}
	}
	return out
}

// NextUpcoming picks the index of the event that gets the countdown label.
// Events that already ended are skipped; of the remaining ones, when now
// lies strictly inside the first, the next one is chosen, otherwise the
// first itself. ok is false when no such event exists.
func NextUpcoming(sorted []model.Event, now time.Time) (int, bool) {
	first := -1
	for i, ev := range sorted {
		if ev.End().After(now) {
			first = i
			break
		}
	}
	if first < 0 {
		return 0, false
	}
	if sorted[first].InProgress(now) {
		if first+1 >= len(sorted) {
			return 0, false
		}
		return first + 1, true
	}
	return first, true
}

// Plan drops all-day events, sorts the rest, applies collision offsets and
// marks the next upcoming event. The input slice is not modified.
func Plan(events []model.Event, now time.Time) []Slot {
	timed := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.AllDay() {
			continue
		}
		timed = append(timed, ev)
	}

	sorted := SortByStart(timed)
	starts := LayoutStartMinutes(sorted)
	next, hasNext := NextUpcoming(sorted, now)

	slots := make([]Slot, len(sorted))
	for i, ev := range sorted {
		slots[i] = Slot{
			Event:        ev,
			StartMinutes: starts[i],
			Shifted:      starts[i] != ev.StartMinutes(),
			Next:         hasNext && i == next,
		}
	}
	return slots
}
