package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/gosimple/slug"

	"tzcal/internal/dateutil"
	"tzcal/internal/model"
)

// ExportOptions describes the calendar being exported.
type ExportOptions struct {
	Home string // reference zone; event dates are home dates
	Work string
	Year int
	// Stamp is written as DTSTAMP; zero means time.Now.
	Stamp time.Time
}

// ExportTransitions renders every non-baseline transition as an all-day
// VEVENT on its home date. UIDs are stable for a given pair and date.
func ExportTransitions(events []model.TransitionEvent, opts ExportOptions) string {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//tzcal//time difference calendar//EN")
	cal.SetXWRCalName(fmt.Sprintf("%s vs %s %d", opts.Work, opts.Home, opts.Year))

	pair := slug.Make(opts.Work + " " + opts.Home)
	for i, ev := range events {
		if ev.IsBaseline() {
			continue
		}
		prev := events[i-1].OffsetHours
		day := ev.Start.In(time.UTC)

		vev := cal.AddEvent(fmt.Sprintf("%s-%s@tzcal", pair, ev.Start.String()))
		vev.SetDtStampTime(stamp)
		vev.SetAllDayStartAt(day)
		vev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		vev.SetSummary(fmt.Sprintf("Time difference changes to %s", dateutil.Pluralize(ev.OffsetHours, "hour")))
		vev.SetDescription(fmt.Sprintf("%s is now %s from %s (was %s).",
			opts.Work, dateutil.Pluralize(ev.OffsetHours, "hour"), opts.Home, dateutil.Pluralize(prev, "hour")))
	}
	return cal.Serialize()
}
