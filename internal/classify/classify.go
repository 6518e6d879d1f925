// Package classify turns a transition sequence into the display classes of
// a year calendar: one label per distinct offset, the steady date ranges of
// each label and the single transition days between them.
package classify

import (
	"fmt"

	"cloud.google.com/go/civil"

	"tzcal/internal/dateutil"
	"tzcal/internal/model"
)

// DefaultPalette is the ordered list of labels handed out to offsets.
var DefaultPalette = []string{"first", "second", "third"}

// ClassEntry pairs an offset with its label.
type ClassEntry struct {
	Offset float64 `json:"offset"`
	Label  string  `json:"label"`
}

// ClassMap assigns labels to offsets in order of first appearance.
type ClassMap struct {
	entries []ClassEntry
	byOff   map[float64]string
	byLabel map[string]float64
}

// ComputeClassOffsetMap labels each distinct offset of events. Labels come
// from palette in order; once it runs out, labels are synthesized as
// "class<N>" with N the 1-based position of the offset.
func ComputeClassOffsetMap(events []model.TransitionEvent, palette []string) ClassMap {
	if palette == nil {
		palette = DefaultPalette
	}
	m := ClassMap{
		byOff:   make(map[float64]string),
		byLabel: make(map[string]float64),
	}
	next := 0
	for _, ev := range events {
		if _, ok := m.byOff[ev.OffsetHours]; ok {
			continue
		}
		label := fmt.Sprintf("class%d", next+1)
		if next < len(palette) {
			label = palette[next]
		}
		next++
		m.entries = append(m.entries, ClassEntry{Offset: ev.OffsetHours, Label: label})
		m.byOff[ev.OffsetHours] = label
		m.byLabel[label] = ev.OffsetHours
	}
	return m
}

// Entries returns the labels in order of first appearance.
func (m ClassMap) Entries() []ClassEntry {
	out := make([]ClassEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Label returns the label of an offset.
func (m ClassMap) Label(offset float64) (string, bool) {
	l, ok := m.byOff[offset]
	return l, ok
}

// Offset returns the offset behind a steady label.
func (m ClassMap) Offset(label string) (float64, bool) {
	o, ok := m.byLabel[label]
	return o, ok
}

// Len returns the number of distinct offsets.
func (m ClassMap) Len() int {
	return len(m.entries)
}

// ClassRanges maps a label to its closed date intervals in chronological order.
type ClassRanges struct {
	order  []string
	ranges map[string][]model.DateRange
}

func (cr *ClassRanges) add(label string, r model.DateRange) {
	if r.End.Before(r.Start) {
		return
	}
	if _, ok := cr.ranges[label]; !ok {
		cr.order = append(cr.order, label)
	}
	cr.ranges[label] = append(cr.ranges[label], r)
}

// ComputeClassRanges lays the events of one year out as date intervals.
//
// Each event owns the steady interval from the day after its date (Jan 1 for
// the baseline) to the day before the next event (Dec 31 for the last one).
// The date of every non-baseline event is a one-day interval labelled
// "<prev>_<curr>", or <curr> when both labels match. Together the intervals
// cover each day of the year exactly once.
func ComputeClassRanges(m ClassMap, events []model.TransitionEvent, year int) ClassRanges {
	cr := ClassRanges{ranges: make(map[string][]model.DateRange)}
	yearStart := dateutil.YearStart(year)
	yearEnd := dateutil.YearEnd(year)

	for i, ev := range events {
		label, ok := m.Label(ev.OffsetHours)
		if !ok {
			continue
		}

		start := yearStart
		if !ev.IsBaseline() {
			start = ev.Start.AddDays(1)
		}
		end := yearEnd
		if i+1 < len(events) {
			end = events[i+1].Start.AddDays(-1)
		}

		if !ev.IsBaseline() && i > 0 {
			prev, _ := m.Label(events[i-1].OffsetHours)
			transition := label
			if prev != label {
				transition = prev + "_" + label
			}
			cr.add(transition, model.DateRange{Start: ev.Start, End: ev.Start})
		}
		cr.add(label, model.DateRange{Start: start, End: end})
	}
	return cr
}

// Labels returns every label that owns at least one interval, in order of
// first appearance.
func (cr ClassRanges) Labels() []string {
	out := make([]string, len(cr.order))
	copy(out, cr.order)
	return out
}

// Ranges returns the intervals of a label.
func (cr ClassRanges) Ranges(label string) []model.DateRange {
	rs := cr.ranges[label]
	out := make([]model.DateRange, len(rs))
	copy(out, rs)
	return out
}

// All returns a copy of the whole label to intervals mapping.
func (cr ClassRanges) All() map[string][]model.DateRange {
	out := make(map[string][]model.DateRange, len(cr.ranges))
	for label := range cr.ranges {
		out[label] = cr.Ranges(label)
	}
	return out
}

// LabelFor returns the label of the interval containing d.
func (cr ClassRanges) LabelFor(d civil.Date) (string, bool) {
	for _, label := range cr.order {
		for _, r := range cr.ranges[label] {
			if r.Contains(d) {
				return label, true
			}
		}
	}
	return "", false
}

// IsTransition reports whether label names a change between two classes.
func IsTransition(m ClassMap, label string) bool {
	_, steady := m.Offset(label)
	return !steady
}
