package source

import (
	"fmt"
	"time"

	"piedial/internal/model"
)

type demoEvent struct {
	title    string
	location string
	color    string
	from, to [2]int // hour, minute within the half day
}

var demoEvents = []demoEvent{
	{"Running", "Outside", "#ee6161", [2]int{6, 0}, [2]int{7, 30}},
	{"Lunch at this restaurant", "Chipotle", "#009688", [2]int{0, 15}, [2]int{1, 30}},
	{"Conference call about something", "Room A1", "#2196f3", [2]int{2, 0}, [2]int{3, 15}},
	{"Exams Evaluation tonight", "Room B1", "#2196f3", [2]int{3, 55}, [2]int{5, 30}},
	{"Dinner with Amy and John", "La Place", "#009688", [2]int{8, 15}, [2]int{9, 30}},
	{"Skype call with people on MARS", "La Place", "#ee6161", [2]int{10, 0}, [2]int{11, 30}},
}

// DemoEvents returns a fixed set of six events laid out over the half of
// the day that contains at (midnight to noon, or noon to midnight), in
// at's location. The list is not sorted.
func DemoEvents(at time.Time) []model.Event {
	base := 0
	if at.Hour() >= 12 {
		base = 12
	}
	y, m, d := at.Date()
	clock := func(hm [2]int) time.Time {
		return time.Date(y, m, d, base+hm[0], hm[1], 0, 0, at.Location())
	}

	events := make([]model.Event, 0, len(demoEvents))
	for i, de := range demoEvents {
		events = append(events, model.NewEvent(
			fmt.Sprintf("demo-%d", i+1),
			de.title,
			clock(de.from),
			clock(de.to),
			de.location,
			false,
			model.ColorOrDefault(de.color),
		))
	}
	return events
}
