package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"

	"tzcal/internal/cache"
	"tzcal/internal/calendar"
	"tzcal/internal/capture"
	"tzcal/internal/config"
	"tzcal/internal/dateutil"
	"tzcal/internal/ics"
	appLog "tzcal/internal/log"
	"tzcal/internal/schedule"
	"tzcal/internal/tzinfo"
	"tzcal/internal/web"
)

// flagConfig holds CLI flag values; non-empty values override the config file.
type flagConfig struct {
	configPath  string
	listen      string
	home        string
	work        string
	year        int
	once        bool
	icsPath     string
	capturePath string
	debug       bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	appLog.Info("tzcal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	flags.apply(conf)
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"home", conf.Home,
		"work", conf.Work,
		"year", conf.Year,
		"backend", conf.Lookup.Backend,
		"refresh", conf.RefreshCron,
		"redis", conf.Cache.RedisAddr != "",
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closeStore, err := newService(ctx, conf)
	if err != nil {
		appLog.Error("failed to initialize calendar service", err)
		os.Exit(1)
	}
	defer closeStore()

	switch {
	case flags.once:
		err = runOnce(ctx, svc, conf, os.Stdout)
	case flags.icsPath != "":
		err = runICS(ctx, svc, conf, flags.icsPath)
	case flags.capturePath != "":
		err = runCapture(ctx, svc, conf, flags.capturePath, flags.debug)
	default:
		err = runServer(ctx, svc, conf, flags.debug)
	}
	if err != nil {
		appLog.Error("tzcal failed", err)
		os.Exit(1)
	}
	appLog.Info("tzcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	pflag.StringVarP(&cfg.configPath, "config", "c", "./config.yaml", "Path to config file")
	pflag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	pflag.StringVar(&cfg.home, "home", "", "Home IANA zone, the reference frame (overrides config)")
	pflag.StringVar(&cfg.work, "work", "", "Work IANA zone (overrides config)")
	pflag.IntVar(&cfg.year, "year", 0, "Calendar year (overrides config; 0 keeps it)")
	pflag.BoolVar(&cfg.once, "once", false, "Print the description and transitions and exit")
	pflag.StringVar(&cfg.icsPath, "ics", "", "Write the transitions as an ICS file and exit")
	pflag.StringVar(&cfg.capturePath, "capture", "", "Serve, capture /calendar as PNG to this path and exit")
	pflag.BoolVarP(&cfg.debug, "debug", "d", false, "Enable debug logging and access logs")

	pflag.Parse()

	return cfg
}

func (f flagConfig) apply(c *config.Config) {
	if f.listen != "" {
		c.Listen = f.listen
	}
	if f.home != "" {
		c.Home = f.home
	}
	if f.work != "" {
		c.Work = f.work
	}
	if f.year != 0 {
		c.Year = f.year
	}
}

// newService wires lookup and cache. A Redis that cannot be reached falls
// back to the in-memory cache.
func newService(ctx context.Context, conf *config.Config) (*calendar.Service, func(), error) {
	lookup, err := tzinfo.New(conf.Lookup, conf.Year)
	if err != nil {
		return nil, nil, err
	}

	closeStore := func() {}
	var store cache.Store
	if conf.Cache.RedisAddr != "" {
		r, err := cache.NewRedis(ctx, conf.Cache.RedisAddr, conf.Cache.RedisDB, conf.Cache.TTL)
		if err == nil {
			store = r
			closeStore = func() { _ = r.Close() }
		} else {
			appLog.Error("redis unavailable, using in-memory cache", err, "addr", conf.Cache.RedisAddr)
		}
	}
	if store == nil {
		m, err := cache.NewMemory(conf.Cache.Size)
		if err != nil {
			return nil, nil, err
		}
		store = m
	}
	return calendar.NewService(lookup, store, conf.Palette, conf.Year), closeStore, nil
}

func runOnce(ctx context.Context, svc *calendar.Service, conf *config.Config, out io.Writer) error {
	cal, err := svc.Build(ctx, conf.Home, conf.Work)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s vs %s, %d (dates in %s)\n\n", cal.Work.Name, cal.Home.Name, cal.Year, cal.Home.Name)
	for _, line := range cal.Description {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
	for _, ev := range cal.Events {
		start := "baseline  "
		if !ev.IsBaseline() {
			start = ev.Start.String()
		}
		fmt.Fprintf(out, "%s  %6s h  %s\n", start, dateutil.SignedHours(ev.OffsetHours), cal.OffsetLabel(ev.OffsetHours))
	}
	return nil
}

func runICS(ctx context.Context, svc *calendar.Service, conf *config.Config, path string) error {
	cal, err := svc.Build(ctx, conf.Home, conf.Work)
	if err != nil {
		return err
	}
	body := ics.ExportTransitions(cal.Events, ics.ExportOptions{
		Home: cal.Home.Name,
		Work: cal.Work.Name,
		Year: cal.Year,
	})
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return err
	}
	appLog.Info("ics written", "path", path, "events", len(cal.Events)-1)
	return nil
}

func runServer(ctx context.Context, svc *calendar.Service, conf *config.Config, debug bool) error {
	sched, err := schedule.New(conf.RefreshCron, svc)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	return web.StartServer(ctx, conf, svc, debug)
}

// runCapture serves in the background, waits for /health and captures the
// calendar page.
func runCapture(ctx context.Context, svc *calendar.Service, conf *config.Config, path string, debug bool) error {
	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- web.StartServer(srvCtx, conf, svc, debug) }()

	base := "http://" + strings.Replace(conf.Listen, "0.0.0.0", "127.0.0.1", 1)
	if err := waitHealthy(ctx, base+"/health", 10*time.Second); err != nil {
		return err
	}

	opts := capture.Options{
		BaseURL:    base,
		Home:       conf.Home,
		Work:       conf.Work,
		OutputPath: path,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
	}
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
		opts.BaseURL = strings.Replace(base, "http://", "http://"+conf.BasicAuth.Username+":"+conf.BasicAuth.Password+"@", 1)
	}
	captureErr := capture.CalendarPNG(ctx, opts)

	stop()
	if err := <-errCh; err != nil && captureErr == nil {
		return err
	}
	return captureErr
}

func waitHealthy(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s not healthy after %s", url, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
