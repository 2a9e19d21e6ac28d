package order

import (
	"image/color"
	"testing"
	"time"

	"piedial/internal/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 11, 24, hour, minute, 0, 0, time.UTC)
}

func event(id string, start, end time.Time) model.Event {
	return model.NewEvent(id, id, start, end, "", false, color.NRGBA{A: 0xff})
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID()
	}
	return out
}

func TestSortByStart(t *testing.T) {
	in := []model.Event{
		event("c", at(15, 30), at(16, 30)),
		event("a", at(12, 0), at(13, 30)),
		event("b1", at(14, 0), at(15, 0)),
		event("b2", at(14, 0), at(14, 30)),
	}
	got := ids(SortByStart(in))
	want := []string{"a", "b1", "b2", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortByStart = %v, want %v", got, want)
		}
	}
	if in[0].ID() != "c" {
		t.Error("SortByStart modified its input")
	}
}

func TestSortByStartUsesInstantNotAngle(t *testing.T) {
	// 23:00 has a smaller draw angle than 14:00 (after the 3 o'clock
	// discontinuity) but must still sort later.
	in := []model.Event{
		event("late", at(23, 0), at(23, 30)),
		event("early", at(14, 0), at(14, 30)),
	}
	got := ids(SortByStart(in))
	if got[0] != "early" || got[1] != "late" {
		t.Errorf("SortByStart = %v", got)
	}
}

func TestCollisionOffset(t *testing.T) {
	sorted := SortByStart([]model.Event{
		event("first", at(14, 0), at(15, 0)),
		event("second", at(14, 0), at(14, 45)),
	})
	starts := LayoutStartMinutes(sorted)
	if starts[1]-starts[0] != CollisionOffsetMinutes {
		t.Fatalf("layout starts %v should differ by %d", starts, CollisionOffsetMinutes)
	}
	if sorted[0].StartAngle() != sorted[1].StartAngle() {
		t.Errorf("stored start angles changed: %v vs %v", sorted[0].StartAngle(), sorted[1].StartAngle())
	}
	if sorted[1].StartMinutes() != 120 {
		t.Errorf("stored start minutes = %d, want 120", sorted[1].StartMinutes())
	}
}

func TestNextUpcoming(t *testing.T) {
	events := SortByStart([]model.Event{
		event("one", at(12, 0), at(13, 30)),
		event("two", at(14, 0), at(15, 0)),
	})

	tests := []struct {
		name   string
		events []model.Event
		now    time.Time
		want   int
		ok     bool
	}{
		{"empty", nil, at(12, 0), 0, false},
		{"before first", events, at(11, 0), 0, true},
		{"inside first", events, at(12, 30), 1, true},
		{"on first start", events, at(12, 0), 0, true},
		{"inside only event", events[:1], at(12, 30), 0, false},
		{"first already ended", events, at(13, 45), 1, true},
		{"inside second", events, at(14, 30), 0, false},
		{"all ended", events, at(16, 0), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextUpcoming(tt.events, tt.now)
			if got != tt.want || ok != tt.ok {
				t.Errorf("NextUpcoming = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	allDay := model.NewEvent("holiday", "holiday", at(0, 0), at(23, 59), "", true, color.NRGBA{})
	events := []model.Event{
		event("e3", at(15, 30), at(16, 30)),
		allDay,
		event("e1", at(12, 0), at(13, 30)),
		event("e2", at(14, 0), at(15, 0)),
	}

	slots := Plan(events, at(14, 30))
	if len(slots) != 3 {
		t.Fatalf("Plan returned %d slots, want 3 (all-day dropped)", len(slots))
	}
	wantIDs := []string{"e1", "e2", "e3"}
	for i, s := range slots {
		if s.Event.ID() != wantIDs[i] {
			t.Errorf("slot %d = %s, want %s", i, s.Event.ID(), wantIDs[i])
		}
	}
	// e1 has ended and e2 is in progress at 14:30, so e3 is next.
	if slots[0].Next || slots[1].Next || !slots[2].Next {
		t.Errorf("Next flags = %v %v %v", slots[0].Next, slots[1].Next, slots[2].Next)
	}
}

func TestPlanMarksShiftedSlots(t *testing.T) {
	slots := Plan([]model.Event{
		event("a", at(14, 0), at(15, 0)),
		event("b", at(14, 0), at(15, 0)),
		event("c", at(14, 0), at(15, 0)),
	}, at(10, 0))
	if slots[0].Shifted || !slots[1].Shifted || !slots[2].Shifted {
		t.Fatalf("Shifted flags = %v %v %v", slots[0].Shifted, slots[1].Shifted, slots[2].Shifted)
	}
	if slots[1].StartMinutes != 140 || slots[2].StartMinutes != 140 {
		t.Errorf("offset is fixed, not cumulative: %d %d", slots[1].StartMinutes, slots[2].StartMinutes)
	}
}
