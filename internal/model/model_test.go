package model

import (
	"image/color"
	"math/rand"
	"testing"
	"time"
)

var teal = color.NRGBA{R: 0x00, G: 0x96, B: 0x88, A: 0xff}

func at(hour, minute int) time.Time {
	return time.Date(2025, 11, 24, hour, minute, 0, 0, time.UTC)
}

func TestNewEventDerivedAngles(t *testing.T) {
	tests := []struct {
		name          string
		start, end    time.Time
		startAngle    float64
		endAngle      float64
		duration      float64
		startingEdge  bool
		crossesFold   bool
	}{
		{"lunch", at(12, 0), at(13, 30), 270, 315, 45, false, false},
		{"meeting", at(14, 0), at(15, 0), 330, 0, 30, false, false},
		{"review", at(15, 30), at(16, 30), 15, 45, 30, false, false},
		{"dinner", at(18, 0), at(19, 30), 90, 135, 45, true, false},
		{"evening", at(20, 15), at(21, 30), 157.5, 195, 37.5, true, false},
		{"late", at(22, 0), at(23, 0), 210, 240, 30, true, false},
		{"overnight fold", at(11, 0), at(13, 0), 240, 300, -300, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvent("id", tt.name, tt.start, tt.end, "", false, teal)
			if ev.StartAngle() != tt.startAngle {
				t.Errorf("StartAngle = %v, want %v", ev.StartAngle(), tt.startAngle)
			}
			if ev.EndAngle() != tt.endAngle {
				t.Errorf("EndAngle = %v, want %v", ev.EndAngle(), tt.endAngle)
			}
			if ev.DurationDegrees() != tt.duration {
				t.Errorf("DurationDegrees = %v, want %v", ev.DurationDegrees(), tt.duration)
			}
			if ev.TitleOnStartingEdge() != tt.startingEdge {
				t.Errorf("TitleOnStartingEdge = %v, want %v", ev.TitleOnStartingEdge(), tt.startingEdge)
			}
			if ev.CrossesFold() != tt.crossesFold {
				t.Errorf("CrossesFold = %v, want %v", ev.CrossesFold(), tt.crossesFold)
			}
		})
	}
}

func TestDurationMatchesFoldedMinutes(t *testing.T) {
	// every start/end pair on the same 12-hour half
	for start := 0; start < 720; start += 7 {
		for end := start; end < 720; end += 11 {
			s := at(start/60, start%60)
			e := at(end/60, end%60)
			ev := NewEvent("x", "x", s, e, "", false, teal)
			want := float64(end-start) * 0.5
			if ev.DurationDegrees() != want || ev.DurationDegrees() < 0 {
				t.Fatalf("%s-%s: duration %v, want %v", s.Format("15:04"), e.Format("15:04"), ev.DurationDegrees(), want)
			}
		}
	}
}

func TestTitleOnStartingEdgeDeterministic(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		s := rnd.Float64() * 360
		e := rnd.Float64() * 360
		first := TitleOnStartingEdge(s, e)
		for j := 0; j < 3; j++ {
			if TitleOnStartingEdge(s, e) != first {
				t.Fatalf("TitleOnStartingEdge(%v, %v) not deterministic", s, e)
			}
		}
	}
}

func TestTitleOnStartingEdgeBoundaries(t *testing.T) {
	tests := []struct {
		start, end float64
		want       bool
	}{
		{90, 90.5, true},   // start exactly at 6 o'clock
		{89.5, 120, false}, // start before 6 o'clock
		{100, 270, true},   // end exactly at 12 o'clock
		{100, 270.5, false},
		{100, 90, false}, // end not past 6 o'clock
	}
	for _, tt := range tests {
		if got := TitleOnStartingEdge(tt.start, tt.end); got != tt.want {
			t.Errorf("TitleOnStartingEdge(%v, %v) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestInTimeString(t *testing.T) {
	tests := []struct {
		start, now time.Time
		want       string
	}{
		{at(15, 30), at(14, 30), "in 60m"},
		{at(17, 0), at(14, 30), "in 2h"},
		{at(14, 45), at(14, 30), "in 15m"},
		{at(21, 10), at(18, 0), "in 3h"},
	}
	for _, tt := range tests {
		ev := NewEvent("x", "x", tt.start, tt.start.Add(time.Hour), "", false, teal)
		if got := ev.InTimeString(tt.now); got != tt.want {
			t.Errorf("start %s now %s: got %q, want %q", tt.start.Format("15:04"), tt.now.Format("15:04"), got, tt.want)
		}
	}
}

func TestInProgress(t *testing.T) {
	ev := NewEvent("x", "x", at(14, 0), at(15, 0), "", false, teal)
	if !ev.InProgress(at(14, 30)) {
		t.Error("14:30 should be in progress")
	}
	if ev.InProgress(at(14, 0)) || ev.InProgress(at(15, 0)) {
		t.Error("interval bounds are exclusive")
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#009688")
	if err != nil {
		t.Fatalf("ParseColor: %v", err)
	}
	if c != teal {
		t.Errorf("ParseColor = %v, want %v", c, teal)
	}
	if _, err := ParseColor("teal"); err == nil {
		t.Error("expected error for non-hex color")
	}
	if got := ColorOrDefault(""); got != DefaultColor {
		t.Errorf("ColorOrDefault(\"\") = %v", got)
	}
	if got := HexColor(teal); got != "#009688" {
		t.Errorf("HexColor = %q", got)
	}
}
