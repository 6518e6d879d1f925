package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"
)

// ErrPrecondition marks a timezone descriptor that declares daylight saving
// without the data needed to use it. It is a contract violation of whoever
// built the descriptor and is never retried.
var ErrPrecondition = errors.New("precondition violation")

// DstWindow describes the annual daylight saving interval of a zone.
//
// Start and End are the instants DST begins and ends, in any reference year.
// When Start is before End the window follows the northern pattern (DST is
// active between the two); otherwise it follows the southern pattern (DST is
// active outside [End, Start]).
type DstWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// OffsetDeltaHours is the non-negative shift applied while DST is active.
	OffsetDeltaHours float64 `json:"offset_delta_hours"`
}

// Northern reports whether DST is active between Start and End.
func (w DstWindow) Northern() bool {
	return w.Start.Before(w.End)
}

// TimezoneDescriptor is the read-only description of one zone as supplied by
// a lookup collaborator.
type TimezoneDescriptor struct {
	// Name is the IANA zone name, e.g. "America/Chicago". May be empty for
	// descriptors that only carry offsets.
	Name string `json:"name"`

	// StandardOffsetHours is the UTC offset outside DST (may be fractional or negative).
	StandardOffsetHours float64 `json:"standard_offset_hours"`

	// DST is nil when the zone never observes daylight saving.
	DST *DstWindow `json:"dst,omitempty"`
}

// HasDST reports whether the zone declares a DST window.
func (d TimezoneDescriptor) HasDST() bool {
	return d.DST != nil
}

// Validate checks the descriptor contract. A declared DST window must carry
// both instants, they must differ and the delta must not be negative.
func (d TimezoneDescriptor) Validate() error {
	if d.DST == nil {
		return nil
	}
	w := d.DST
	switch {
	case w.Start.IsZero() || w.End.IsZero():
		return fmt.Errorf("%w: zone %q declares DST without start/end instants", ErrPrecondition, d.Name)
	case w.Start.Equal(w.End):
		return fmt.Errorf("%w: zone %q has identical DST start and end", ErrPrecondition, d.Name)
	case w.OffsetDeltaHours < 0 || math.IsNaN(w.OffsetDeltaHours):
		return fmt.Errorf("%w: zone %q has invalid DST delta %v", ErrPrecondition, d.Name, w.OffsetDeltaHours)
	}
	return nil
}

// Location returns the zone's *time.Location. Unknown or empty names fall
// back to a fixed zone at the standard offset.
func (d TimezoneDescriptor) Location() *time.Location {
	if d.Name != "" {
		if loc, err := time.LoadLocation(d.Name); err == nil {
			return loc
		}
	}
	name := d.Name
	if name == "" {
		name = "STD"
	}
	return time.FixedZone(name, int(math.Round(d.StandardOffsetHours*3600)))
}

// TransitionEvent is one entry of the offset partition of a year.
//
// The first event of a sequence is the baseline and has a zero Start; every
// later event carries the first day its offset applies.
type TransitionEvent struct {
	OffsetHours float64    `json:"offset"`
	Start       civil.Date `json:"start"`
}

// IsBaseline reports whether the event is the implicit start-of-year entry.
func (e TransitionEvent) IsBaseline() bool {
	return e.Start == civil.Date{}
}

type transitionJSON struct {
	OffsetHours float64     `json:"offset"`
	Start       *civil.Date `json:"start,omitempty"`
}

// MarshalJSON omits the start of the baseline, whose zero date has no
// valid text form.
func (e TransitionEvent) MarshalJSON() ([]byte, error) {
	v := transitionJSON{OffsetHours: e.OffsetHours}
	if !e.IsBaseline() {
		v.Start = &e.Start
	}
	return json.Marshal(v)
}

func (e *TransitionEvent) UnmarshalJSON(data []byte) error {
	var v transitionJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = TransitionEvent{OffsetHours: v.OffsetHours}
	if v.Start != nil {
		e.Start = *v.Start
	}
	return nil
}

// DateRange is a closed interval of calendar days.
type DateRange struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// Contains reports whether d lies inside the range, bounds included.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of days covered by the range.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.End.DaysSince(r.Start) + 1
}
