package ics

import (
	"errors"
	"image/color"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "piedial/internal/log"
	"piedial/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the half-open window [RangeStart, RangeEnd).
	// An occurrence is kept when it overlaps the window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int

	// ExcludeTitles drops occurrences whose summary contains any of these
	// substrings. Matching is case-sensitive.
	ExcludeTitles []string

	// Colors maps source IDs to wedge colors. Sources without an entry
	// use DefaultColor.
	Colors       map[string]color.NRGBA
	DefaultColor color.NRGBA
}

// ExpandResult wraps the expanded events and information about truncation.
type ExpandResult struct {
	// Events are sorted by start, deduplicated by UID and start instant.
	Events []model.Event
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
	// Excluded counts occurrences dropped by ExcludeTitles.
	Excluded int
}

// Expand takes a list of ParsedEvent (typically for one or more ICS
// sources) and expands them into dial events within the given time range.
// It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//   - All-day semantics
//
// All resulting events are converted into ExpandConfig.DisplayLocation.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	if cfg.DefaultColor == (color.NRGBA{}) {
		cfg.DefaultColor = model.DefaultColor
	}

	// Group base events and overrides by source and UID; the same UID in two
	// feeds is two different events.
	type key struct{ source, uid string }
	baseByUID := make(map[key][]ParsedEvent)
	overridesByUID := make(map[key][]ParsedEvent)
	var keys []key

	for _, ev := range events {
		k := key{ev.Source.ID, ev.UID}
		if ev.IsOverride() {
			overridesByUID[k] = append(overridesByUID[k], ev)
			continue
		}
		if _, ok := baseByUID[k]; !ok {
			keys = append(keys, k)
		}
		baseByUID[k] = append(baseByUID[k], ev)
	}

	// Overrides without a base (the series lives in another feed or was
	// truncated) still show up as single events.
	for k, ov := range overridesByUID {
		if _, ok := baseByUID[k]; ok {
			continue
		}
		for _, o := range ov {
			if overlaps(o.Start, o.End, cfg.RangeStart, cfg.RangeEnd) {
				result.Events = append(result.Events, makeEvent(o, o.Start, o.End, cfg))
			}
		}
	}

	for _, k := range keys {
		ov := overridesByUID[k]
		truncated := false

		for _, ev := range baseByUID[k] {
			evs, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				truncated = true
			}
			result.Events = append(result.Events, evs...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, k.uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", k.uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	kept := result.Events[:0]
	for _, ev := range result.Events {
		if excluded(ev.Title(), cfg.ExcludeTitles) {
			result.Excluded++
			continue
		}
		kept = append(kept, ev)
	}
	result.Events = Dedup(kept)

	return result, nil
}

// Dedup drops events that share UID and start instant with an earlier one,
// then sorts the rest by start. The input slice is not modified.
func Dedup(events []model.Event) []model.Event {
	seen := make(map[string]bool, len(events))
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		k := ev.ID()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start().Before(out[j].Start())
	})
	return out
}

func excluded(title string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(title, p) {
			return true
		}
	}
	return false
}

// expandEvent expands a single ParsedEvent (base event) with its possible
// overrides, returning events and whether the cap was hit.
func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	start, end := ev.Start, ev.End

	// Apply any override whose RECURRENCE-ID matches this start.
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end, ev = o.Start, o.End, o
	}

	if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Event{makeEvent(ev, start, end, cfg)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	var out []model.Event
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	loc := ev.Start.Location()
	// Widen the lower bound by one duration so an instance already in
	// progress at RangeStart is found.
	occTimes := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = date
			occEnd = date.AddDate(0, 0, 1)
		} else {
			occEnd = occStart.Add(dur)
		}

		instance := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			occStart, occEnd, instance = o.Start, o.End, o
		}

		if !overlaps(occStart, occEnd, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeEvent(instance, occStart, occEnd, cfg))
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID matches
// baseStart as an instant.
func findOverrideForStart(overrides []ParsedEvent, baseStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(baseStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeEvent converts a (possibly overridden) ParsedEvent plus a concrete
// start/end into a model.Event normalized into the display location.
func makeEvent(ev ParsedEvent, start, end time.Time, cfg ExpandConfig) model.Event {
	startLocal := start.In(cfg.DisplayLocation)
	endLocal := end.In(cfg.DisplayLocation)

	c, ok := cfg.Colors[ev.Source.ID]
	if !ok {
		c = cfg.DefaultColor
	}

	return model.NewEvent(InstanceID(ev.Source.ID, ev.UID, start), ev.Summary,
		startLocal, endLocal, ev.Location, ev.AllDay, c)
}

// InstanceID is the stable identifier of one occurrence: source, UID and
// the UTC start instant.
func InstanceID(sourceID, uid string, start time.Time) string {
	return sourceID + "/" + uid + "/" + start.UTC().Format("20060102T150405Z")
}

// overlaps reports whether [aStart, aEnd) intersects [bStart, bEnd). A
// zero-length event counts when its instant lies inside the window.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
