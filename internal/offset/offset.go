// Package offset computes, for a pair of timezones, the days of a calendar
// year on which the difference between their local clocks changes.
package offset

import (
	"fmt"
	"math"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"tzcal/internal/dateutil"
	appLog "tzcal/internal/log"
	"tzcal/internal/model"
)

// hemisphere classifies a pair of zones by the pattern of their DST windows.
// A zone without DST is never in DST, which on January 1 is the same as a
// northern window.
type hemisphere int

const (
	bothNorthern hemisphere = iota
	aNorthern
	bNorthern
	neitherNorthern
)

func (h hemisphere) String() string {
	switch h {
	case bothNorthern:
		return "both-northern"
	case aNorthern:
		return "a-northern"
	case bNorthern:
		return "b-northern"
	case neitherNorthern:
		return "neither-northern"
	}
	return fmt.Sprintf("hemisphere(%d)", int(h))
}

func patternOf(aNorth, bNorth bool) hemisphere {
	switch {
	case aNorth && bNorth:
		return bothNorthern
	case aNorth:
		return aNorthern
	case bNorth:
		return bNorthern
	default:
		return neitherNorthern
	}
}

// januaryDST reports which zones are in DST on January 1.
func (h hemisphere) januaryDST() (aActive, bActive bool) {
	switch h {
	case bothNorthern:
		return false, false
	case aNorthern:
		return false, true
	case bNorthern:
		return true, false
	case neitherNorthern:
		return true, true
	}
	panic(fmt.Sprintf("offset: unknown hemisphere %d", int(h)))
}

// candidates holds the four possible A-minus-B offsets of a pair.
type candidates struct {
	standard float64
	duringA  float64
	duringB  float64
	both     float64
}

func newCandidates(a, b model.TimezoneDescriptor) candidates {
	standard := a.StandardOffsetHours - b.StandardOffsetHours
	var deltaA, deltaB float64
	if a.DST != nil {
		deltaA = a.DST.OffsetDeltaHours
	}
	if b.DST != nil {
		deltaB = b.DST.OffsetDeltaHours
	}
	return candidates{
		standard: roundHours(standard),
		duringA:  roundHours(standard + deltaA),
		duringB:  roundHours(standard - deltaB),
		both:     roundHours(standard + deltaA - deltaB),
	}
}

func (c candidates) offset(aActive, bActive bool) float64 {
	switch {
	case aActive && bActive:
		return c.both
	case aActive:
		return c.duringA
	case bActive:
		return c.duringB
	default:
		return c.standard
	}
}

// roundHours snaps an offset to whole minutes so that sums of fractional
// offsets compare equal.
func roundHours(h float64) float64 {
	return math.Round(h*60) / 60
}

type zoneID int

const (
	zoneA zoneID = iota
	zoneB
)

// boundary is a day on which one zone enters or leaves DST.
type boundary struct {
	date civil.Date
	zone zoneID
}

// window is a DST window re-dated onto the target year in the reference frame.
type window struct {
	start, end civil.Date
}

func (w window) northern() bool {
	return w.start.Before(w.end)
}

func normalizeWindow(d model.TimezoneDescriptor, ref *time.Location, year int) (window, bool) {
	if d.DST == nil {
		return window{}, false
	}
	w := window{
		start: dateutil.InYear(d.DST.Start, ref, year),
		end:   dateutil.InYear(d.DST.End, ref, year),
	}
	if w.start == w.end {
		appLog.Debug("dst window collapses to a single day; treating zone as without dst",
			"zone", d.Name, "date", w.start.String())
		return window{}, false
	}
	return w, true
}

// ComputeTransitions returns the offset partition of the current year for
// tzA's clock minus tzB's clock. tzB is the reference frame: every
// transition date is the local date in tzB.
func ComputeTransitions(tzA, tzB model.TimezoneDescriptor) ([]model.TransitionEvent, error) {
	year := dateutil.CurrentYear(time.Now(), tzB.Location())
	return ComputeTransitionsForYear(tzA, tzB, year)
}

// ComputeTransitionsForYear is ComputeTransitions for an explicit year.
//
// The result always starts with a baseline event (zero Start), has strictly
// ascending dates after it and never repeats an offset in adjacent events.
func ComputeTransitionsForYear(tzA, tzB model.TimezoneDescriptor, year int) ([]model.TransitionEvent, error) {
	if err := tzA.Validate(); err != nil {
		return nil, err
	}
	if err := tzB.Validate(); err != nil {
		return nil, err
	}

	c := newCandidates(tzA, tzB)
	ref := tzB.Location()

	wa, hasA := normalizeWindow(tzA, ref, year)
	wb, hasB := normalizeWindow(tzB, ref, year)
	if !hasA && !hasB {
		return []model.TransitionEvent{{OffsetHours: c.standard}}, nil
	}

	pattern := patternOf(!hasA || wa.northern(), !hasB || wb.northern())
	aActive, bActive := pattern.januaryDST()

	bounds := make([]boundary, 0, 4)
	if hasA {
		bounds = append(bounds, boundary{wa.start, zoneA}, boundary{wa.end, zoneA})
	}
	if hasB {
		bounds = append(bounds, boundary{wb.start, zoneB}, boundary{wb.end, zoneB})
	}
	sort.SliceStable(bounds, func(i, j int) bool {
		return bounds[i].date.Before(bounds[j].date)
	})

	yearStart := dateutil.YearStart(year)
	events := []model.TransitionEvent{{OffsetHours: c.offset(aActive, bActive)}}

	for i := 0; i < len(bounds); {
		day := bounds[i].date
		// All boundaries on the same day are crossed together.
		for ; i < len(bounds) && bounds[i].date == day; i++ {
			if bounds[i].zone == zoneA {
				aActive = !aActive
			} else {
				bActive = !bActive
			}
		}
		off := c.offset(aActive, bActive)
		if !day.After(yearStart) {
			events[0].OffsetHours = off
			continue
		}
		events = append(events, model.TransitionEvent{OffsetHours: off, Start: day})
	}

	return compact(events), nil
}

// compact drops every event whose offset equals the one before it.
func compact(events []model.TransitionEvent) []model.TransitionEvent {
	out := events[:1]
	for _, ev := range events[1:] {
		if ev.OffsetHours == out[len(out)-1].OffsetHours {
			continue
		}
		out = append(out, ev)
	}
	return out
}
