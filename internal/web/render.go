package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dustin/go-humanize"
	"github.com/gosimple/slug"

	"tzcal/internal/calendar"
	"tzcal/internal/dateutil"
	appLog "tzcal/internal/log"
	"tzcal/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

func newTemplate(fsys fs.FS, n string) *template.Template {
	funcMap := template.FuncMap{
		"Hours":    func(h float64) string { return dateutil.Pluralize(h, "hour") },
		"Signed":   dateutil.SignedHours,
		"Ordinal":  humanize.Ordinal,
		"Slugify":  slug.Make,
		"ToLower":  strings.ToLower,
		"Relative": humanize.Time,
	}
	t := template.New("empty").Funcs(funcMap)
	return template.Must(t.ParseFS(fsys, path.Join("templates", n), "templates/base.html"))
}

// colors are handed to steady labels in legend order.
var colors = []string{"#2e7d32", "#1565c0", "#c62828", "#6a1b9a", "#ef6c00", "#00838f", "#5d4037"}

type legendItem struct {
	Label  string
	Offset float64
	Style  template.CSS
}

type dayCell struct {
	Day        int // 0 for padding
	Label      string
	Transition bool
	Style      template.CSS
	Title      string
}

type monthView struct {
	Name  string
	Weeks [][]dayCell
}

type zoneDetails struct {
	Role     string
	Name     string
	Standard float64
	HasDST   bool
	Delta    float64
	Start    string
	End      string
}

type pageData struct {
	Title       string
	Home        string
	Work        string
	Year        int
	Legend      []legendItem
	Description []string
	Zones       []zoneDetails
	Months      []monthView
	SwapURL     string
	ICSURL      string
	Generated   time.Time
}

func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	cal, ok := s.build(w, r)
	if !ok {
		return
	}
	data := newPageData(cal, s.now())

	var buf bytes.Buffer
	if err := s.page.ExecuteTemplate(&buf, "base.html", data); err != nil {
		appLog.Error("calendar template failed", err, "home", cal.Home.Name, "work", cal.Work.Name)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func newPageData(cal *calendar.Calendar, now time.Time) pageData {
	styles := labelStyles(cal)
	data := pageData{
		Title:       cal.Work.Name + " vs " + cal.Home.Name,
		Home:        cal.Home.Name,
		Work:        cal.Work.Name,
		Year:        cal.Year,
		Description: cal.Description,
		SwapURL:     pairURL("/calendar", cal.Work.Name, cal.Home.Name),
		ICSURL:      pairURL("/api/calendar.ics", cal.Home.Name, cal.Work.Name),
		Generated:   now,
	}
	for _, e := range cal.Legend {
		data.Legend = append(data.Legend, legendItem{Label: e.Label, Offset: e.Offset, Style: styles[e.Label]})
	}
	homeLoc := cal.Home.Location()
	data.Zones = []zoneDetails{
		details("Home", cal.Home, homeLoc),
		details("Work", cal.Work, homeLoc),
	}
	for m := time.January; m <= time.December; m++ {
		data.Months = append(data.Months, buildMonth(cal, m, styles))
	}
	return data
}

func pairURL(base, home, work string) string {
	return base + "?home=" + template.URLQueryEscaper(home) + "&work=" + template.URLQueryEscaper(work)
}

// labelStyles colors steady labels and blends the two colors of a
// transition label.
func labelStyles(cal *calendar.Calendar) map[string]template.CSS {
	steady := make(map[string]string, len(cal.Legend))
	for i, e := range cal.Legend {
		steady[e.Label] = colors[i%len(colors)]
	}
	out := make(map[string]template.CSS, len(cal.Labels))
	for _, label := range cal.Labels {
		if c, ok := steady[label]; ok {
			out[label] = template.CSS("background-color: " + c)
			continue
		}
		from, to, found := strings.Cut(label, "_")
		if !found {
			continue
		}
		out[label] = template.CSS("background: linear-gradient(135deg, " + steady[from] + " 50%, " + steady[to] + " 50%)")
	}
	return out
}

func details(role string, d model.TimezoneDescriptor, ref *time.Location) zoneDetails {
	z := zoneDetails{Role: role, Name: d.Name, Standard: d.StandardOffsetHours, HasDST: d.HasDST()}
	if d.DST != nil {
		const layout = "02/01/2006 @ 3pm"
		z.Delta = d.DST.OffsetDeltaHours
		z.Start = d.DST.Start.In(ref).Format(layout)
		z.End = d.DST.End.In(ref).Format(layout)
	}
	return z
}

// buildMonth lays a month out in Sunday-first weeks.
func buildMonth(cal *calendar.Calendar, m time.Month, styles map[string]template.CSS) monthView {
	first := civil.Date{Year: cal.Year, Month: m, Day: 1}
	mv := monthView{Name: m.String()}

	week := make([]dayCell, int(first.In(time.UTC).Weekday()))
	for d := first; d.Month == m; d = d.AddDays(1) {
		label := cal.LabelFor(d)
		week = append(week, dayCell{
			Day:        d.Day,
			Label:      label,
			Transition: label != "" && cal.IsTransition(label),
			Style:      styles[label],
			Title:      d.String(),
		})
		if len(week) == 7 {
			mv.Weeks = append(mv.Weeks, week)
			week = nil
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, dayCell{})
		}
		mv.Weeks = append(mv.Weeks, week)
	}
	return mv
}

// icsFileName is the download name of the ICS export.
func icsFileName(cal *calendar.Calendar) string {
	return slug.Make(cal.Work.Name + " " + cal.Home.Name + " " + strconv.Itoa(cal.Year))
}
