package tzinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "tzcal/internal/log"
	"tzcal/internal/model"
)

// Duration is the .NET style span the timezone service emits.
type Duration struct {
	Seconds      float64 `json:"seconds"`
	Milliseconds float64 `json:"milliseconds"`
	Ticks        float64 `json:"ticks"`
	Nanoseconds  float64 `json:"nanoseconds"`
}

// Hours returns the span in hours.
func (d Duration) Hours() float64 { return d.Seconds / 3600 }

func durationOfHours(h float64) Duration {
	s := h * 3600
	return Duration{
		Seconds:      s,
		Milliseconds: s * 1e3,
		Ticks:        s * 1e7,
		Nanoseconds:  s * 1e9,
	}
}

// DstInterval is the DST part of a WireTimezone.
type DstInterval struct {
	DstName                 string   `json:"dstName,omitempty"`
	DstStart                string   `json:"dstStart"`
	DstEnd                  string   `json:"dstEnd"`
	DstOffsetToStandardTime Duration `json:"dstOffsetToStandardTime"`
	DstOffsetToUtc          Duration `json:"dstOffsetToUtc"`
}

// WireTimezone is the JSON shape of one zone on the timezone service.
type WireTimezone struct {
	TimeZone               string       `json:"timeZone"`
	CurrentLocalTime       string       `json:"currentLocalTime,omitempty"`
	CurrentUtcOffset       Duration     `json:"currentUtcOffset"`
	StandardUtcOffset      Duration     `json:"standardUtcOffset"`
	HasDayLightSaving      bool         `json:"hasDayLightSaving"`
	IsDayLightSavingActive bool         `json:"isDayLightSavingActive"`
	DstInterval            *DstInterval `json:"dstInterval"`
}

// Descriptor converts the wire shape into a descriptor.
func (w WireTimezone) Descriptor() (model.TimezoneDescriptor, error) {
	d := model.TimezoneDescriptor{
		Name:                w.TimeZone,
		StandardOffsetHours: w.StandardUtcOffset.Hours(),
	}
	if w.DstInterval == nil {
		return d, nil
	}
	start, err := parseWireTime(w.DstInterval.DstStart)
	if err != nil {
		return d, fmt.Errorf("%s: dstStart: %w", w.TimeZone, err)
	}
	end, err := parseWireTime(w.DstInterval.DstEnd)
	if err != nil {
		return d, fmt.Errorf("%s: dstEnd: %w", w.TimeZone, err)
	}
	d.DST = &model.DstWindow{
		Start:            start,
		End:              end,
		OffsetDeltaHours: w.DstInterval.DstOffsetToStandardTime.Hours(),
	}
	return d, nil
}

// WireOf converts a descriptor into the wire shape, for serving the same
// JSON the service emits.
func WireOf(d model.TimezoneDescriptor, now time.Time) WireTimezone {
	w := WireTimezone{
		TimeZone:          d.Name,
		StandardUtcOffset: durationOfHours(d.StandardOffsetHours),
		CurrentUtcOffset:  durationOfHours(d.StandardOffsetHours),
		HasDayLightSaving: d.HasDST(),
	}
	local := now.In(d.Location())
	w.CurrentLocalTime = local.Format(time.RFC3339)
	if d.DST == nil {
		return w
	}
	_, cur := local.Zone()
	w.CurrentUtcOffset = durationOfHours(float64(cur) / 3600)
	w.IsDayLightSavingActive = float64(cur)/3600 != d.StandardOffsetHours
	w.DstInterval = &DstInterval{
		DstStart:                d.DST.Start.UTC().Format(time.RFC3339),
		DstEnd:                  d.DST.End.UTC().Format(time.RFC3339),
		DstOffsetToStandardTime: durationOfHours(d.DST.OffsetDeltaHours),
		DstOffsetToUtc:          durationOfHours(d.StandardOffsetHours + d.DST.OffsetDeltaHours),
	}
	return w
}

func parseWireTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04:05.9999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

// API is a client of the remote timezone service.
type API struct {
	base   *url.URL
	client *http.Client
}

// NewAPI returns a client for the service rooted at baseURL.
func NewAPI(baseURL string) (*API, error) {
	if baseURL == "" {
		return nil, errors.New("tzinfo: api base url is empty")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("tzinfo: api base url: %w", err)
	}
	return &API{base: u, client: &http.Client{Timeout: 10 * time.Second}}, nil
}

// WithClient replaces the HTTP client, e.g. for tests.
func (a *API) WithClient(c *http.Client) *API {
	a.client = c
	return a
}

func (a *API) ResolveTimezone(ctx context.Context, latitude, longitude float64) (model.TimezoneDescriptor, error) {
	var w WireTimezone
	err := a.get(ctx, "/timezone-from-location", map[string]any{"lat": latitude, "long": longitude}, &w)
	if err != nil {
		return model.TimezoneDescriptor{}, err
	}
	return w.Descriptor()
}

func (a *API) ResolveTimezonesByName(ctx context.Context, names []string) ([]model.TimezoneDescriptor, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var ws []WireTimezone
	if err := a.get(ctx, "/timezones", map[string]any{"zones": names}, &ws); err != nil {
		return nil, err
	}
	byName := make(map[string]WireTimezone, len(ws))
	for _, w := range ws {
		byName[w.TimeZone] = w
	}
	// The service answers in its own order; match the request order and
	// report whatever it left out.
	return resolveEach(ctx, names, func(_ context.Context, name string) (model.TimezoneDescriptor, error) {
		w, ok := byName[name]
		if !ok {
			return model.TimezoneDescriptor{}, ErrUnknownZone
		}
		return w.Descriptor()
	})
}

func (a *API) Names(ctx context.Context) ([]string, error) {
	var names []string
	if err := a.get(ctx, "/timezone-names", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// get issues a GET with every parameter JSON encoded, as the service expects.
func (a *API) get(ctx context.Context, path string, params map[string]any, out any) error {
	u := *a.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	for k, v := range params {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("tzinfo: encode %s: %w", k, err)
		}
		q.Set(k, string(b))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	appLog.Debug("tz api request", "path", path)
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("tzinfo: %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("tzinfo: %s: %w", path, ErrUnknownZone)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tzinfo: %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tzinfo: %s: decode: %w", path, err)
	}
	return nil
}
