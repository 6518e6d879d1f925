package tzinfo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tzcal/internal/model"
)

// TZDB builds descriptors from the tz database compiled into the binary or
// installed on the host.
type TZDB struct {
	// Year is the year descriptors are built for; 0 means the current year.
	Year int
}

// NewTZDB returns a TZDB lookup for year (0 for the current year).
func NewTZDB(year int) *TZDB {
	return &TZDB{Year: year}
}

// ForYear returns a TZDB building descriptors for year.
func (t *TZDB) ForYear(year int) Lookup {
	return &TZDB{Year: year}
}

func (t *TZDB) ResolveTimezone(ctx context.Context, latitude, longitude float64) (model.TimezoneDescriptor, error) {
	name := LatLngToZone(latitude, longitude)
	if name == "" {
		return model.TimezoneDescriptor{}, fmt.Errorf("tzdb: %.4f,%.4f: %w", latitude, longitude, ErrUnknownZone)
	}
	return t.describe(ctx, name)
}

func (t *TZDB) ResolveTimezonesByName(ctx context.Context, names []string) ([]model.TimezoneDescriptor, error) {
	return resolveEach(ctx, names, t.describe)
}

func (t *TZDB) Names(context.Context) ([]string, error) {
	return sortedKnownZones(), nil
}

func (t *TZDB) describe(_ context.Context, name string) (model.TimezoneDescriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.TimezoneDescriptor{}, ErrUnknownZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return model.TimezoneDescriptor{}, fmt.Errorf("tzdb: %w: %v", ErrUnknownZone, err)
	}
	return DescribeLocation(loc, yearOr(t.Year)), nil
}

// transition is an instant at which a location's UTC offset changes.
type transition struct {
	at     time.Time
	offset int // seconds east of UTC, after the change
}

// DescribeLocation scans year for offset changes of loc. The smallest offset
// seen is standard time and the largest is DST, so zones whose database
// entry uses negative DST (Europe/Dublin) still describe summer as DST.
// A zone without exactly one rise and one fall in the year has no DST.
func DescribeLocation(loc *time.Location, year int) model.TimezoneDescriptor {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	to := time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
	changes := scanTransitions(from, to)

	_, startOff := from.Zone()
	d := model.TimezoneDescriptor{
		Name:                loc.String(),
		StandardOffsetHours: float64(startOff) / 3600,
	}
	if len(changes) == 0 {
		return d
	}

	lo, hi := startOff, startOff
	for _, c := range changes {
		lo = min(lo, c.offset)
		hi = max(hi, c.offset)
	}
	d.StandardOffsetHours = float64(lo) / 3600

	var dstStart, dstEnd time.Time
	rises, falls := 0, 0
	for _, c := range changes {
		switch c.offset {
		case hi:
			rises++
			dstStart = c.at
		case lo:
			falls++
			dstEnd = c.at
		}
	}
	if rises != 1 || falls != 1 || hi == lo {
		// A permanent change of standard time: keep the offset in force at year end.
		_, endOff := to.Add(-time.Second).Zone()
		d.StandardOffsetHours = float64(endOff) / 3600
		return d
	}
	d.DST = &model.DstWindow{
		Start:            dstStart.UTC(),
		End:              dstEnd.UTC(),
		OffsetDeltaHours: float64(hi-lo) / 3600,
	}
	return d
}

// scanTransitions steps through [from, to) a day at a time and narrows every
// day whose offset differs at its two ends down to the exact second.
func scanTransitions(from, to time.Time) []transition {
	var out []transition
	const step = 24 * time.Hour
	_, prevOff := from.Zone()
	for t := from; t.Before(to); t = t.Add(step) {
		next := t.Add(step)
		if next.After(to) {
			next = to
		}
		_, nextOff := next.Zone()
		if nextOff == prevOff {
			continue
		}
		out = append(out, transition{at: bisect(t, next), offset: nextOff})
		prevOff = nextOff
	}
	return out
}

// bisect returns the first instant in (lo, hi] whose offset equals hi's.
func bisect(lo, hi time.Time) time.Time {
	_, loOff := lo.Zone()
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if _, off := mid.Zone(); off == loOff {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi.Truncate(time.Second)
}
