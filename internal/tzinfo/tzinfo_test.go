package tzinfo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzcal/internal/config"
	"tzcal/internal/ics"
	"tzcal/internal/model"
)

func TestDescribeLocation(t *testing.T) {
	tests := []struct {
		zone     string
		standard float64
		start    time.Time
		end      time.Time
	}{
		{"America/Chicago", -6, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), time.Date(2024, 11, 3, 7, 0, 0, 0, time.UTC)},
		{"Pacific/Auckland", 12, time.Date(2024, 9, 28, 14, 0, 0, 0, time.UTC), time.Date(2024, 4, 6, 14, 0, 0, 0, time.UTC)},
		{"Europe/Dublin", 0, time.Date(2024, 3, 31, 1, 0, 0, 0, time.UTC), time.Date(2024, 10, 27, 1, 0, 0, 0, time.UTC)},
		{"America/Bogota", -5, time.Time{}, time.Time{}},
		{"Asia/Kathmandu", 5.75, time.Time{}, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			loc, err := time.LoadLocation(tt.zone)
			require.NoError(t, err)

			d := DescribeLocation(loc, 2024)
			assert.Equal(t, tt.zone, d.Name)
			assert.Equal(t, tt.standard, d.StandardOffsetHours)
			if tt.start.IsZero() {
				assert.Nil(t, d.DST)
				return
			}
			require.NotNil(t, d.DST)
			assert.True(t, tt.start.Equal(d.DST.Start), "start %s", d.DST.Start)
			assert.True(t, tt.end.Equal(d.DST.End), "end %s", d.DST.End)
			assert.Equal(t, 1.0, d.DST.OffsetDeltaHours)
		})
	}
}

func TestTZDBResolveByName(t *testing.T) {
	db := NewTZDB(2024)

	got, err := db.ResolveTimezonesByName(context.Background(), []string{"America/Bogota", "America/Chicago"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "America/Bogota", got[0].Name)
	assert.Equal(t, "America/Chicago", got[1].Name)
	assert.True(t, got[1].HasDST())

	_, err = db.ResolveTimezonesByName(context.Background(), []string{"Mars/Olympus", "America/Chicago", "Venus/Maat"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownZone)
	assert.Contains(t, err.Error(), "Mars/Olympus")
	assert.Contains(t, err.Error(), "Venus/Maat")
}

func TestTZDBResolveTimezone(t *testing.T) {
	db := NewTZDB(2024)

	d, err := db.ResolveTimezone(context.Background(), 41.88, -87.63)
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", d.Name)

	_, err = db.ResolveTimezone(context.Background(), 0, -140)
	assert.ErrorIs(t, err, ErrUnknownZone)
}

func TestLatLngToZone(t *testing.T) {
	tests := []struct {
		name      string
		lat, long float64
		want      string
	}{
		{"bogota", 4.71, -74.07, "America/Bogota"},
		{"bangkok", 13.75, 100.5, "Asia/Bangkok"},
		{"auckland", -36.85, 174.76, "Pacific/Auckland"},
		{"ljubljana", 46.05, 14.51, "Europe/Ljubljana"},
		{"new york", 40.71, -74.0, "America/New_York"},
		{"london", 51.5, -0.12, "Europe/London"},
		{"pacific ocean", 0, -140, ""},
		{"out of range", 91, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LatLngToZone(tt.lat, tt.long))
		})
	}
}

func TestNamesAreLoadable(t *testing.T) {
	names, err := NewTZDB(0).Names(context.Background())
	require.NoError(t, err)
	assert.IsIncreasing(t, names)
	for _, n := range names {
		_, err := time.LoadLocation(n)
		assert.NoError(t, err, n)
	}
	for _, r := range regions {
		assert.Contains(t, names, r.zone)
	}
}

// fakeService mimics the remote timezone service.
func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	chicago := WireTimezone{
		TimeZone:          "America/Chicago",
		StandardUtcOffset: Duration{Seconds: -21600},
		HasDayLightSaving: true,
		DstInterval: &DstInterval{
			DstStart:                "2024-03-10T08:00:00Z",
			DstEnd:                  "2024-11-03T07:00:00Z",
			DstOffsetToStandardTime: Duration{Seconds: 3600},
		},
	}
	bogota := WireTimezone{TimeZone: "America/Bogota", StandardUtcOffset: Duration{Seconds: -18000}}

	mux := http.NewServeMux()
	mux.HandleFunc("/timezones", func(w http.ResponseWriter, r *http.Request) {
		var zones []string
		if err := json.Unmarshal([]byte(r.URL.Query().Get("zones")), &zones); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var out []WireTimezone
		// Answer in reverse to check that the client restores request order.
		for i := len(zones) - 1; i >= 0; i-- {
			switch zones[i] {
			case chicago.TimeZone:
				out = append(out, chicago)
			case bogota.TimeZone:
				out = append(out, bogota)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/timezone-from-location", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") != "4.71" || r.URL.Query().Get("long") != "-74.07" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(bogota)
	})
	mux.HandleFunc("/timezone-names", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"America/Bogota", "America/Chicago"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIClient(t *testing.T) {
	srv := fakeService(t)
	api, err := NewAPI(srv.URL + "/")
	require.NoError(t, err)
	api.WithClient(srv.Client())
	ctx := context.Background()

	got, err := api.ResolveTimezonesByName(ctx, []string{"America/Chicago", "America/Bogota"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "America/Chicago", got[0].Name)
	assert.Equal(t, -6.0, got[0].StandardOffsetHours)
	require.NotNil(t, got[0].DST)
	assert.True(t, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC).Equal(got[0].DST.Start))
	assert.Equal(t, 1.0, got[0].DST.OffsetDeltaHours)
	assert.Equal(t, "America/Bogota", got[1].Name)
	assert.Nil(t, got[1].DST)

	_, err = api.ResolveTimezonesByName(ctx, []string{"America/Chicago", "Mars/Olympus"})
	assert.ErrorIs(t, err, ErrUnknownZone)

	d, err := api.ResolveTimezone(ctx, 4.71, -74.07)
	require.NoError(t, err)
	assert.Equal(t, -5.0, d.StandardOffsetHours)

	_, err = api.ResolveTimezone(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrUnknownZone)

	names, err := api.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"America/Bogota", "America/Chicago"}, names)
}

func TestWireRoundTrip(t *testing.T) {
	in := model.TimezoneDescriptor{
		Name:                "America/Chicago",
		StandardOffsetHours: -6,
		DST: &model.DstWindow{
			Start:            time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
			End:              time.Date(2024, 11, 3, 7, 0, 0, 0, time.UTC),
			OffsetDeltaHours: 1,
		},
	}
	summer := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	w := WireOf(in, summer)
	assert.True(t, w.HasDayLightSaving)
	assert.True(t, w.IsDayLightSavingActive)
	assert.Equal(t, -18000.0, w.CurrentUtcOffset.Seconds)
	assert.Equal(t, -21600.0, w.StandardUtcOffset.Seconds)

	out, err := w.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWireTimeFormats(t *testing.T) {
	for _, s := range []string{"2024-03-10T08:00:00Z", "2024-03-10T08:00:00", "2024-03-10T08:00:00.0000000"} {
		got, err := parseWireTime(s)
		require.NoError(t, err, s)
		assert.True(t, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC).Equal(got), s)
	}
	_, err := parseWireTime("March 10")
	assert.Error(t, err)
}

func TestICSBackend(t *testing.T) {
	body := strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VTIMEZONE
TZID:America/Chicago
BEGIN:DAYLIGHT
TZOFFSETFROM:-0600
TZOFFSETTO:-0500
DTSTART:19700308T020000
RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU
END:DAYLIGHT
BEGIN:STANDARD
TZOFFSETFROM:-0500
TZOFFSETTO:-0600
DTSTART:19701101T020000
RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU
END:STANDARD
END:VTIMEZONE
END:VCALENDAR
`, "\n", "\r\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/America/Chicago" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	fetcher := ics.NewFetcher(t.TempDir()).WithClient(srv.Client())
	lookup, err := NewICS(fetcher, srv.URL+"/zones/{zone}", 2024)
	require.NoError(t, err)

	got, err := lookup.ResolveTimezonesByName(context.Background(), []string{"America/Chicago"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, -6.0, got[0].StandardOffsetHours)
	require.NotNil(t, got[0].DST)
	assert.True(t, time.Date(2024, 11, 3, 7, 0, 0, 0, time.UTC).Equal(got[0].DST.End))

	_, err = lookup.ResolveTimezonesByName(context.Background(), []string{"Mars/Olympus"})
	assert.ErrorIs(t, err, ErrUnknownZone)

	_, err = NewICS(fetcher, srv.URL+"/zones", 2024)
	assert.Error(t, err)
}

func TestForYear(t *testing.T) {
	ctx := context.Background()
	current := NewTZDB(0)

	scoped := ForYear(current, 2025)
	got, err := scoped.ResolveTimezonesByName(ctx, []string{"America/Chicago"})
	require.NoError(t, err)
	require.NotNil(t, got[0].DST)
	assert.True(t, time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC).Equal(got[0].DST.Start))
	assert.Equal(t, 0, current.Year, "scoping must not modify the original")

	assert.Same(t, current, ForYear(current, 0))

	fetcher := ics.NewFetcher(t.TempDir())
	feed, err := NewICS(fetcher, "https://example.com/{zone}", 0)
	require.NoError(t, err)
	scopedFeed, ok := ForYear(feed, 2024).(*ICS)
	require.True(t, ok)
	assert.Equal(t, 2024, scopedFeed.year)
	assert.Same(t, fetcher, scopedFeed.fetcher)

	api, err := NewAPI("http://localhost:3007")
	require.NoError(t, err)
	assert.Same(t, api, ForYear(api, 2024))
}

func TestNew(t *testing.T) {
	l, err := New(config.LookupConfig{Backend: config.BackendTZDB}, 2024)
	require.NoError(t, err)
	assert.IsType(t, &TZDB{}, l)

	l, err = New(config.LookupConfig{Backend: config.BackendAPI, APIURL: "http://localhost:3007"}, 0)
	require.NoError(t, err)
	assert.IsType(t, &API{}, l)

	l, err = New(config.LookupConfig{Backend: config.BackendICS, ICSURL: "https://example.com/{zone}", CacheDir: t.TempDir()}, 0)
	require.NoError(t, err)
	assert.IsType(t, &ICS{}, l)

	_, err = New(config.LookupConfig{Backend: config.BackendAPI}, 0)
	assert.Error(t, err)

	_, err = New(config.LookupConfig{Backend: "smoke-signals"}, 0)
	assert.ErrorIs(t, err, ErrUnsupported)
}
