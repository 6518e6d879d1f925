// Package tzinfo resolves places and zone names into timezone descriptors.
//
// Three backends implement Lookup: TZDB reads the Go tz database, API calls a
// remote timezone service and ICS reads VTIMEZONE feeds.
package tzinfo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"tzcal/internal/config"
	"tzcal/internal/ics"
	"tzcal/internal/model"
)

var (
	// ErrUnknownZone is returned for names or coordinates that map to no zone.
	ErrUnknownZone = errors.New("unknown timezone")
	// ErrUnsupported is returned when a backend cannot serve a request kind.
	ErrUnsupported = errors.New("unsupported by lookup backend")
)

// Lookup is the timezone collaborator of the calendar service.
type Lookup interface {
	ResolveTimezone(ctx context.Context, latitude, longitude float64) (model.TimezoneDescriptor, error)
	ResolveTimezonesByName(ctx context.Context, names []string) ([]model.TimezoneDescriptor, error)
	Names(ctx context.Context) ([]string, error)
}

// YearScoped is implemented by backends whose descriptors depend on the year
// they are built for.
type YearScoped interface {
	// ForYear returns a copy of the backend that describes zones for year.
	ForYear(year int) Lookup
}

// ForYear scopes l to year when the backend supports it, and returns l as
// is otherwise. Callers that resolve a calendar year pass it here so the
// descriptors and the calendar agree on the year.
func ForYear(l Lookup, year int) Lookup {
	if ys, ok := l.(YearScoped); ok && year > 0 {
		return ys.ForYear(year)
	}
	return l
}

// resolveEach applies one to every name and aggregates failures so callers
// see every bad name at once.
func resolveEach(ctx context.Context, names []string, one func(context.Context, string) (model.TimezoneDescriptor, error)) ([]model.TimezoneDescriptor, error) {
	out := make([]model.TimezoneDescriptor, 0, len(names))
	var result *multierror.Error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := one(ctx, name)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			continue
		}
		out = append(out, d)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// yearOr returns year, or the current year when it is zero.
func yearOr(year int) int {
	if year > 0 {
		return year
	}
	return time.Now().Year()
}

// knownZones is the list served by Names for backends that cannot enumerate.
var knownZones = []string{
	"UTC",
	"Africa/Cairo", "Africa/Casablanca", "Africa/Johannesburg", "Africa/Lagos", "Africa/Nairobi",
	"America/Anchorage", "America/Bogota", "America/Buenos_Aires", "America/Chicago", "America/Denver",
	"America/Halifax", "America/Lima", "America/Los_Angeles", "America/Mexico_City", "America/New_York",
	"America/Santiago", "America/Sao_Paulo", "America/St_Johns", "America/Toronto", "America/Vancouver",
	"Asia/Bangkok", "Asia/Dubai", "Asia/Hong_Kong", "Asia/Jakarta", "Asia/Jerusalem", "Asia/Kathmandu",
	"Asia/Kolkata", "Asia/Manila", "Asia/Seoul", "Asia/Shanghai", "Asia/Singapore", "Asia/Tehran",
	"Asia/Tokyo",
	"Atlantic/Azores", "Atlantic/Reykjavik",
	"Australia/Adelaide", "Australia/Brisbane", "Australia/Melbourne", "Australia/Perth", "Australia/Sydney",
	"Europe/Amsterdam", "Europe/Athens", "Europe/Berlin", "Europe/Dublin", "Europe/Istanbul", "Europe/Lisbon",
	"Europe/Ljubljana", "Europe/London", "Europe/Madrid", "Europe/Moscow", "Europe/Paris", "Europe/Rome",
	"Europe/Stockholm", "Europe/Warsaw",
	"Pacific/Auckland", "Pacific/Chatham", "Pacific/Fiji", "Pacific/Honolulu",
}

func sortedKnownZones() []string {
	out := append([]string(nil), knownZones...)
	sort.Strings(out)
	return out
}

// New builds the Lookup selected by cfg. year is passed to backends that
// describe a zone for a specific year (0 for the current year).
func New(cfg config.LookupConfig, year int) (Lookup, error) {
	switch cfg.Backend {
	case "", config.BackendTZDB:
		return NewTZDB(year), nil
	case config.BackendAPI:
		a, err := NewAPI(cfg.APIURL)
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.BackendICS:
		i, err := NewICS(ics.NewFetcher(cfg.CacheDir), cfg.ICSURL, year)
		if err != nil {
			return nil, err
		}
		return i, nil
	}
	return nil, fmt.Errorf("tzinfo: backend %q: %w", cfg.Backend, ErrUnsupported)
}
