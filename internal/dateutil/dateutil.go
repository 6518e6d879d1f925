// Package dateutil holds the small amount of calendar and offset arithmetic
// shared by the resolver, the classifier and the renderers.
package dateutil

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
)

// InYear converts t into loc, moves it onto the given year and strips the
// time of day. Feb 29 on a non-leap year rolls over to Mar 1.
func InYear(t time.Time, loc *time.Location, year int) civil.Date {
	local := t.In(loc)
	d := time.Date(year, local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return civil.DateOf(d)
}

// YearStart returns Jan 1 of year.
func YearStart(year int) civil.Date {
	return civil.Date{Year: year, Month: time.January, Day: 1}
}

// YearEnd returns Dec 31 of year.
func YearEnd(year int) civil.Date {
	return civil.Date{Year: year, Month: time.December, Day: 31}
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	return YearEnd(year).DaysSince(YearStart(year)) + 1
}

// CurrentYear returns the year of now in loc (time.Local when nil).
func CurrentYear(now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Year()
}

// FormatHours renders an hour offset without trailing zeros: 12, -5.5, 5.75.
func FormatHours(h float64) string {
	if h == math.Trunc(h) {
		return strconv.FormatInt(int64(h), 10)
	}
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// Pluralize renders "1 hour", "2 hours", "-1 hours", "0.5 hours".
func Pluralize(n float64, word string) string {
	if n == 1 {
		return fmt.Sprintf("%s %s", FormatHours(n), word)
	}
	return fmt.Sprintf("%s %ss", FormatHours(n), word)
}

// SignedHours renders an offset with an explicit sign, as used for UTC offsets.
func SignedHours(h float64) string {
	if h >= 0 {
		return "+" + FormatHours(h)
	}
	return FormatHours(h)
}
