// Package calendar assembles the year view of a home/work zone pair: the
// transition events, their classes and date ranges, and the sentences that
// describe them.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dustin/go-humanize"

	"tzcal/internal/cache"
	"tzcal/internal/classify"
	"tzcal/internal/dateutil"
	appLog "tzcal/internal/log"
	"tzcal/internal/model"
	"tzcal/internal/offset"
	"tzcal/internal/tzinfo"
)

// ErrMissingZone is returned when home or work is empty.
var ErrMissingZone = errors.New("calendar: home and work zones are required")

// Calendar is the computed view for one pair and year. Offsets are work
// minus home; dates are home dates.
type Calendar struct {
	Year        int                          `json:"year"`
	Home        model.TimezoneDescriptor     `json:"home"`
	Work        model.TimezoneDescriptor     `json:"work"`
	Events      []model.TransitionEvent      `json:"events"`
	Legend      []classify.ClassEntry        `json:"legend"`
	Labels      []string                     `json:"labels"`
	Ranges      map[string][]model.DateRange `json:"ranges"`
	Description []string                     `json:"description"`

	classes classify.ClassMap
	ranges  classify.ClassRanges
}

// Compute builds a Calendar from two descriptors without any lookup.
func Compute(home, work model.TimezoneDescriptor, year int, palette []string) (*Calendar, error) {
	events, err := offset.ComputeTransitionsForYear(work, home, year)
	if err != nil {
		return nil, err
	}
	c := &Calendar{Year: year, Home: home, Work: work, Events: events}
	c.index(palette)
	c.Legend = c.classes.Entries()
	c.Labels = c.ranges.Labels()
	c.Ranges = c.ranges.All()
	c.Description = Describe(events)
	return c, nil
}

// index rebuilds the lookup structures, which are not serialized.
func (c *Calendar) index(palette []string) {
	c.classes = classify.ComputeClassOffsetMap(c.Events, palette)
	c.ranges = classify.ComputeClassRanges(c.classes, c.Events, c.Year)
}

// LabelFor returns the class label of a home date of the calendar's year.
func (c *Calendar) LabelFor(d civil.Date) string {
	l, _ := c.ranges.LabelFor(d)
	return l
}

// OffsetLabel returns the steady label of an offset.
func (c *Calendar) OffsetLabel(offset float64) string {
	l, _ := c.classes.Label(offset)
	return l
}

// IsTransition reports whether label marks a change day.
func (c *Calendar) IsTransition(label string) bool {
	return classify.IsTransition(c.classes, label)
}

// Describe renders the events as the sentences shown under the calendar.
func Describe(events []model.TransitionEvent) []string {
	if len(events) == 0 {
		return nil
	}
	lines := []string{
		"At the beginning of the year the difference is " + dateutil.Pluralize(events[0].OffsetHours, "hour"),
	}
	if len(events) == 1 {
		return append(lines, "It does not change throughout the year")
	}
	for _, ev := range events[1:] {
		lines = append(lines, fmt.Sprintf("On %s %s it changes to %s",
			ev.Start.Month, humanize.Ordinal(ev.Start.Day), dateutil.Pluralize(ev.OffsetHours, "hour")))
	}
	return lines
}

// Service resolves zone names and memoizes calendars.
type Service struct {
	lookup  tzinfo.Lookup
	store   cache.Store
	palette []string
	year    int
	now     func() time.Time
}

// NewService returns a Service. store may be nil to disable memoization;
// year 0 means the current year in the home zone.
func NewService(lookup tzinfo.Lookup, store cache.Store, palette []string, year int) *Service {
	return &Service{
		lookup:  lookup,
		store:   store,
		palette: palette,
		year:    year,
		now:     time.Now,
	}
}

// Lookup exposes the timezone collaborator for passthrough endpoints.
func (s *Service) Lookup() tzinfo.Lookup {
	return s.lookup
}

// Build returns the calendar of work against home.
func (s *Service) Build(ctx context.Context, home, work string) (*Calendar, error) {
	home, work = strings.TrimSpace(home), strings.TrimSpace(work)
	if home == "" || work == "" {
		return nil, ErrMissingZone
	}

	year := s.year
	if year == 0 {
		loc, err := time.LoadLocation(home)
		if err != nil {
			loc = time.UTC
		}
		year = dateutil.CurrentYear(s.now(), loc)
	}
	key := fmt.Sprintf("%s|%s|%d", home, work, year)

	if s.store != nil {
		var cached Calendar
		ok, err := cache.GetJSON(ctx, s.store, key, &cached)
		if err != nil {
			appLog.Error("calendar cache read failed", err, "key", key)
		}
		if ok {
			cached.index(s.palette)
			return &cached, nil
		}
	}

	descs, err := tzinfo.ForYear(s.lookup, year).ResolveTimezonesByName(ctx, []string{home, work})
	if err != nil {
		return nil, err
	}
	if len(descs) != 2 {
		return nil, fmt.Errorf("calendar: lookup returned %d descriptors for 2 zones", len(descs))
	}

	c, err := Compute(descs[0], descs[1], year, s.palette)
	if err != nil {
		if errors.Is(err, model.ErrPrecondition) {
			appLog.Error("timezone descriptor rejected", err, "home", home, "work", work)
		}
		return nil, err
	}
	appLog.Debug("calendar computed", "home", home, "work", work, "year", year, "events", len(c.Events))

	if s.store != nil {
		if err := cache.SetJSON(ctx, s.store, key, c); err != nil {
			appLog.Error("calendar cache write failed", err, "key", key)
		}
	}
	return c, nil
}

// Invalidate drops every memoized calendar.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Purge(ctx)
}
