package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/handlers"

	"tzcal/internal/calendar"
	"tzcal/internal/config"
	"tzcal/internal/ics"
	appLog "tzcal/internal/log"
	"tzcal/internal/model"
	"tzcal/internal/tzinfo"
)

// Server provides the HTML calendar and the JSON/ICS APIs behind it.
type Server struct {
	cfg    *config.Config
	svc    *calendar.Service
	debug  bool
	router chi.Router
	page   *template.Template
	now    func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc *calendar.Service, debug bool) *Server {
	s := &Server{
		cfg:   cfg,
		svc:   svc,
		debug: debug,
		page:  newTemplate(templateFS, "calendar.html"),
		now:   time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = handlers.CompressHandler(h)
	if s.debug {
		h = handlers.LoggingHandler(appLogWriter{}, h)
	}
	return h
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// /health is always served without authentication.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuthMiddleware)
		}
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/calendar", http.StatusFound)
		})
		r.Get("/calendar", s.handleCalendarPage)
		r.Route("/api", func(r chi.Router) {
			r.Get("/transitions", s.handleTransitions)
			r.Get("/calendar", s.handleCalendar)
			r.Get("/calendar.ics", s.handleCalendarICS)
			r.Get("/timezones", s.handleTimezones)
			r.Get("/timezone-names", s.handleTimezoneNames)
			r.Get("/timezone-from-location", s.handleTimezoneFromLocation)
		})
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tzcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, svc *calendar.Service, debug bool) error {
	s := NewServer(cfg, svc, debug)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "debug", debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// pairFromQuery reads home and work, falling back to the configured pair.
// swap=1 exchanges them.
func (s *Server) pairFromQuery(r *http.Request) (home, work string) {
	q := r.URL.Query()
	home, work = strings.TrimSpace(q.Get("home")), strings.TrimSpace(q.Get("work"))
	if home == "" && s.cfg != nil {
		home = s.cfg.Home
	}
	if work == "" && s.cfg != nil {
		work = s.cfg.Work
	}
	if swap, _ := strconv.ParseBool(q.Get("swap")); swap {
		home, work = work, home
	}
	return home, work
}

func (s *Server) build(w http.ResponseWriter, r *http.Request) (*calendar.Calendar, bool) {
	home, work := s.pairFromQuery(r)
	cal, err := s.svc.Build(r.Context(), home, work)
	if err != nil {
		s.writeLookupError(w, err, "home", home, "work", work)
		return nil, false
	}
	return cal, true
}

// writeLookupError maps resolver and lookup failures onto status codes.
func (s *Server) writeLookupError(w http.ResponseWriter, err error, kv ...any) {
	switch {
	case errors.Is(err, calendar.ErrMissingZone):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tzinfo.ErrUnknownZone):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tzinfo.ErrUnsupported):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, model.ErrPrecondition):
		appLog.Error("invalid timezone descriptor", err, kv...)
		writeError(w, http.StatusInternalServerError, "invalid timezone data")
	default:
		appLog.Error("request failed", err, kv...)
		writeError(w, http.StatusBadGateway, "timezone lookup failed")
	}
}

type transitionsResponse struct {
	Home   string                  `json:"home"`
	Work   string                  `json:"work"`
	Year   int                     `json:"year"`
	Events []model.TransitionEvent `json:"events"`
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	cal, ok := s.build(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, transitionsResponse{
		Home:   cal.Home.Name,
		Work:   cal.Work.Name,
		Year:   cal.Year,
		Events: cal.Events,
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	cal, ok := s.build(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	cal, ok := s.build(w, r)
	if !ok {
		return
	}
	body := ics.ExportTransitions(cal.Events, ics.ExportOptions{
		Home:  cal.Home.Name,
		Work:  cal.Work.Name,
		Year:  cal.Year,
		Stamp: s.now(),
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, icsFileName(cal)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// parseZones accepts both zones=a,b and the JSON encoded zones=["a","b"].
func parseZones(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &out) == nil {
		return out
	}
	for _, z := range strings.Split(raw, ",") {
		if z = strings.TrimSpace(z); z != "" {
			out = append(out, z)
		}
	}
	return out
}

func (s *Server) handleTimezones(w http.ResponseWriter, r *http.Request) {
	zones := parseZones(r.URL.Query().Get("zones"))
	if len(zones) == 0 {
		writeError(w, http.StatusBadRequest, "zones is required")
		return
	}
	descs, err := s.svc.Lookup().ResolveTimezonesByName(r.Context(), zones)
	if err != nil {
		s.writeLookupError(w, err, "zones", zones)
		return
	}
	now := s.now()
	out := make([]tzinfo.WireTimezone, 0, len(descs))
	for _, d := range descs {
		out = append(out, tzinfo.WireOf(d, now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTimezoneNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.Lookup().Names(r.Context())
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleTimezoneFromLocation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
	long, err2 := strconv.ParseFloat(strings.TrimSpace(q.Get("long")), 64)
	if err := errors.Join(err1, err2); err != nil {
		writeError(w, http.StatusBadRequest, "lat and long must be numbers")
		return
	}
	d, err := s.svc.Lookup().ResolveTimezone(r.Context(), lat, long)
	if err != nil {
		s.writeLookupError(w, err, "lat", lat, "long", long)
		return
	}
	writeJSON(w, http.StatusOK, tzinfo.WireOf(d, s.now()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// appLogWriter routes gorilla access logs into the application logger.
type appLogWriter struct{}

func (appLogWriter) Write(p []byte) (int, error) {
	appLog.Debug("http", "access", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
