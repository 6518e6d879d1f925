package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "tzcal/internal/log"
	"tzcal/internal/model"
)

// ErrNoTimezone is returned when a payload has no VTIMEZONE component.
var ErrNoTimezone = errors.New("ics: no VTIMEZONE component")

// observance is one STANDARD or DAYLIGHT block of a VTIMEZONE.
type observance struct {
	daylight   bool
	dtstart    time.Time // wall clock, labelled UTC
	offsetFrom int       // seconds east of UTC
	offsetTo   int
	rrule      string
	rdates     []time.Time
}

// onsetIn returns the instant the observance takes effect in year.
func (o observance) onsetIn(year int) (time.Time, bool) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	var walls []time.Time
	if o.rrule != "" {
		r, err := rrule.StrToRRule(o.rrule)
		if err != nil {
			appLog.Error("vtimezone: failed to parse RRULE", err, "rrule", o.rrule)
			return time.Time{}, false
		}
		r.DTStart(o.dtstart)
		walls = r.Between(from, to, true)
	}
	for _, rd := range append([]time.Time{o.dtstart}, o.rdates...) {
		if !rd.Before(from) && rd.Before(to) {
			walls = append(walls, rd)
		}
	}
	if len(walls) == 0 {
		return time.Time{}, false
	}
	first := walls[0]
	for _, w := range walls[1:] {
		if w.Before(first) {
			first = w
		}
	}
	// The wall clock is read in the offset that was in force before the onset.
	return first.Add(-time.Duration(o.offsetFrom) * time.Second).UTC(), true
}

// ParseVTimezone reads the first VTIMEZONE of an ICS payload and describes
// the zone for year: the STANDARD offset in force and, if a DAYLIGHT rule
// is active that year, its window.
func ParseVTimezone(body []byte, year int) (model.TimezoneDescriptor, error) {
	var out model.TimezoneDescriptor
	if len(body) == 0 {
		return out, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("ics: parse: %w", err)
	}

	var tz *ical.VTimezone
	for _, c := range cal.Components {
		if v, ok := c.(*ical.VTimezone); ok {
			tz = v
			break
		}
	}
	if tz == nil {
		return out, ErrNoTimezone
	}
	if p := tz.GetProperty("TZID"); p != nil {
		out.Name = strings.TrimSpace(p.Value)
	}

	var standards, daylights []observance
	for _, sub := range tz.Components {
		var (
			base     *ical.ComponentBase
			daylight bool
		)
		switch s := sub.(type) {
		case *ical.Standard:
			base = &s.ComponentBase
		case *ical.Daylight:
			base, daylight = &s.ComponentBase, true
		default:
			continue
		}
		o, perr := parseObservance(base, daylight)
		if perr != nil {
			appLog.Error("vtimezone: skipping observance", perr, "tzid", out.Name, "daylight", daylight)
			continue
		}
		if daylight {
			daylights = append(daylights, o)
		} else {
			standards = append(standards, o)
		}
	}
	if len(standards) == 0 {
		return out, fmt.Errorf("ics: VTIMEZONE %q has no STANDARD observance", out.Name)
	}

	std, stdOnset, stdOK := current(standards, year)
	out.StandardOffsetHours = float64(std.offsetTo) / 3600

	dst, dstOnset, dstOK := current(daylights, year)
	if !dstOK || !stdOK {
		return out, nil
	}
	delta := float64(dst.offsetTo-std.offsetTo) / 3600
	if delta <= 0 {
		return out, nil
	}
	out.DST = &model.DstWindow{
		Start:            dstOnset,
		End:              stdOnset,
		OffsetDeltaHours: delta,
	}
	return out, nil
}

// current picks the observance that has an onset in year; among several,
// the one with the latest DTSTART wins since it supersedes older rules.
func current(obs []observance, year int) (observance, time.Time, bool) {
	var (
		best      observance
		bestOnset time.Time
		found     bool
	)
	for _, o := range obs {
		onset, ok := o.onsetIn(year)
		if !ok {
			continue
		}
		if !found || o.dtstart.After(best.dtstart) {
			best, bestOnset, found = o, onset, true
		}
	}
	if !found && len(obs) > 0 {
		// No onset this year: the latest rule that started before it still applies.
		for _, o := range obs {
			if o.dtstart.Year() <= year && (!found || o.dtstart.After(best.dtstart)) {
				best, found = o, true
			}
		}
		return best, time.Time{}, false
	}
	return best, bestOnset, found
}

func parseObservance(cb *ical.ComponentBase, daylight bool) (observance, error) {
	o := observance{daylight: daylight}

	p := cb.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return o, errors.New("missing DTSTART")
	}
	t, err := time.ParseInLocation("20060102T150405", strings.TrimSpace(p.Value), time.UTC)
	if err != nil {
		return o, fmt.Errorf("DTSTART: %w", err)
	}
	o.dtstart = t

	if o.offsetFrom, err = offsetProperty(cb, "TZOFFSETFROM"); err != nil {
		return o, err
	}
	if o.offsetTo, err = offsetProperty(cb, "TZOFFSETTO"); err != nil {
		return o, err
	}
	if p := cb.GetProperty(ical.ComponentPropertyRrule); p != nil {
		o.rrule = strings.TrimSpace(p.Value)
	}
	for _, rp := range cb.GetProperties("RDATE") {
		for _, part := range strings.Split(rp.Value, ",") {
			if rd, err := time.ParseInLocation("20060102T150405", strings.TrimSpace(part), time.UTC); err == nil {
				o.rdates = append(o.rdates, rd)
			}
		}
	}
	return o, nil
}

func offsetProperty(cb *ical.ComponentBase, name ical.ComponentProperty) (int, error) {
	p := cb.GetProperty(name)
	if p == nil {
		return 0, fmt.Errorf("missing %s", name)
	}
	secs, err := parseUTCOffset(p.Value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return secs, nil
}

// parseUTCOffset parses "+0530", "-0600" or "+053045" into seconds.
func parseUTCOffset(v string) (int, error) {
	v = strings.TrimSpace(v)
	if len(v) != 5 && len(v) != 7 {
		return 0, fmt.Errorf("invalid utc offset %q", v)
	}
	sign := 1
	switch v[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("invalid utc offset %q", v)
	}
	hh, err1 := strconv.Atoi(v[1:3])
	mm, err2 := strconv.Atoi(v[3:5])
	ss := 0
	var err3 error
	if len(v) == 7 {
		ss, err3 = strconv.Atoi(v[5:7])
	}
	if err := errors.Join(err1, err2, err3); err != nil {
		return 0, fmt.Errorf("invalid utc offset %q: %w", v, err)
	}
	return sign * (hh*3600 + mm*60 + ss), nil
}
