package tzinfo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tzcal/internal/ics"
	"tzcal/internal/model"
)

// ICS resolves names by fetching one VTIMEZONE calendar per zone.
type ICS struct {
	fetcher  *ics.Fetcher
	template string // URL with a {zone} placeholder
	year     int
}

// NewICS returns an ICS lookup. template must contain "{zone}".
func NewICS(fetcher *ics.Fetcher, template string, year int) (*ICS, error) {
	if !strings.Contains(template, "{zone}") {
		return nil, fmt.Errorf("tzinfo: ics url %q has no {zone} placeholder", template)
	}
	return &ICS{fetcher: fetcher, template: template, year: year}, nil
}

// ForYear returns an ICS lookup sharing i's fetcher that expands rules for year.
func (i *ICS) ForYear(year int) Lookup {
	return &ICS{fetcher: i.fetcher, template: i.template, year: year}
}

func (i *ICS) ResolveTimezone(ctx context.Context, latitude, longitude float64) (model.TimezoneDescriptor, error) {
	name := LatLngToZone(latitude, longitude)
	if name == "" {
		return model.TimezoneDescriptor{}, fmt.Errorf("ics: %.4f,%.4f: %w", latitude, longitude, ErrUnknownZone)
	}
	return i.describe(ctx, name)
}

func (i *ICS) ResolveTimezonesByName(ctx context.Context, names []string) ([]model.TimezoneDescriptor, error) {
	return resolveEach(ctx, names, i.describe)
}

func (i *ICS) Names(context.Context) ([]string, error) {
	return sortedKnownZones(), nil
}

func (i *ICS) describe(ctx context.Context, name string) (model.TimezoneDescriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.TimezoneDescriptor{}, ErrUnknownZone
	}
	res, err := i.fetcher.Fetch(ctx, strings.ReplaceAll(i.template, "{zone}", name))
	if err != nil {
		if errors.Is(err, ics.ErrNotFound) {
			return model.TimezoneDescriptor{}, ErrUnknownZone
		}
		return model.TimezoneDescriptor{}, err
	}
	d, err := ics.ParseVTimezone(res.Body, yearOr(i.year))
	if err != nil {
		return model.TimezoneDescriptor{}, err
	}
	// Feeds may publish an alias as TZID; callers match on what they asked for.
	d.Name = name
	return d, nil
}
