package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"tailscale.com/tsweb"

	"github.com/banshee-data/neocrisis/internal/autofire"
	"github.com/banshee-data/neocrisis/internal/config"
	"github.com/banshee-data/neocrisis/internal/httputil"
	"github.com/banshee-data/neocrisis/internal/intercept"
	"github.com/banshee-data/neocrisis/internal/journal"
	"github.com/banshee-data/neocrisis/internal/monitoring"
	"github.com/banshee-data/neocrisis/internal/neoapi"
	"github.com/banshee-data/neocrisis/internal/telescope"
	"github.com/banshee-data/neocrisis/internal/timeutil"
	"github.com/banshee-data/neocrisis/internal/tracking"
	"github.com/banshee-data/neocrisis/internal/trajectory"
	"github.com/banshee-data/neocrisis/internal/units"
	"github.com/banshee-data/neocrisis/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON tuning file (built-in defaults when empty)")
	logLevel    = flag.String("log-level", monitoring.LevelOps, "Log streams to emit: ops, diag or trace")
	logFile     = flag.String("log-file", "", "Also write logs to this file, rotated by size")
	journalPath = flag.String("journal", "autofire.db", "SQLite journal of intercept attempts (empty disables)")
	debugListen = flag.String("debug-listen", "localhost:6060", "Listen address for /metrics and /debug/ (empty disables)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

const (
	defaultHost = "localhost"
	defaultPort = 5000
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [host [port]]\n\n", os.Args[0])
	flag.PrintDefaults()
}

// parseTarget reads the optional positional host and port.
func parseTarget(args []string) (host string, port int, err error) {
	host, port = defaultHost, defaultPort
	if len(args) > 2 {
		return "", 0, fmt.Errorf("expected at most host and port, got %d arguments", len(args))
	}
	if len(args) > 0 && args[0] != "" {
		host = args[0]
	}
	if len(args) > 1 {
		port, err = strconv.Atoi(args[1])
		if err != nil || port < 1 || port > 65535 {
			return "", 0, fmt.Errorf("invalid port %q", args[1])
		}
	}
	return host, port, nil
}

func loadConfig(path string) (*config.AutofireConfig, error) {
	if path == "" {
		return config.EmptyConfig(), nil
	}
	return config.LoadConfig(path)
}

func tolerance(cfg *config.AutofireConfig) trajectory.Tolerance {
	return trajectory.Tolerance{Abs: cfg.GetAbsTolerance(), Rel: cfg.GetRelTolerance()}
}

func schedulerOptions(cfg *config.AutofireConfig) intercept.Options {
	return intercept.Options{
		SlugSpeed:       cfg.GetSlugSpeed(),
		LaunchLead:      cfg.GetLaunchLead(),
		Tolerance:       tolerance(cfg),
		Epsilon:         cfg.GetSolverEpsilon(),
		ServerScheduled: cfg.GetServerScheduled(),
		FireHorizon:     cfg.GetFireHorizon(),
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	host, port, err := parseTarget(flag.Args())
	if err != nil {
		log.Fatalf("bad arguments: %v", err)
	}

	var out io.Writer = os.Stderr
	if *logFile != "" {
		rotating := monitoring.RotatingFile(*logFile)
		defer rotating.Close()
		out = io.MultiWriter(os.Stderr, rotating)
	}
	writers, err := monitoring.WritersForLevel(*logLevel, out)
	if err != nil {
		log.Fatalf("bad -log-level: %v", err)
	}
	monitoring.SetLogWriters(writers)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	loc, err := units.LoadTimezone(cfg.GetServerTimezone())
	if err != nil {
		log.Fatalf("bad server_timezone: %v", err)
	}

	metrics, err := monitoring.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	var recorder intercept.Recorder
	var jrnl *journal.Journal
	if *journalPath != "" {
		jrnl, err = journal.Open(*journalPath)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer jrnl.Close()
		recorder = jrnl
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseURL := neoapi.BaseURL(host, port)
	client := neoapi.NewClient(baseURL, httputil.NewStandardClient(cfg.GetRequestTimeout()), loc)
	probeService(ctx, client)

	clock := timeutil.RealClock{}
	store := tracking.NewStore(cfg.GetMaxTracked())
	loop := autofire.New(autofire.Config{
		Sweeper:   telescope.NewPoller(client, store, loc, metrics),
		Store:     store,
		Estimator: trajectory.NewEstimator(tolerance(cfg)),
		Engager:   intercept.NewScheduler(client, recorder, clock, metrics, schedulerOptions(cfg)),
		Clock:     clock,
		Metrics:   metrics,
		Pause:     cfg.GetEvaluatePause(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitoring.Opsf("autofire %s targeting %s", version.Version, baseURL)
		return loop.Run(gctx)
	})

	if *debugListen != "" {
		server := &http.Server{
			Addr:    *debugListen,
			Handler: debugMux(metrics, jrnl, baseURL),
		}
		g.Go(func() error {
			return serveDebug(gctx, server)
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("autofire stopped: %v", err)
	}
	log.Printf("graceful shutdown complete")
}

// serveDebug runs server until ctx is done. A listener failure is logged
// on the ops stream and the loop keeps targeting without a debug surface.
func serveDebug(ctx context.Context, server *http.Server) error {
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Opsf("debug server on %s unavailable: %v", server.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("debug server shutdown error: %v", err)
		server.Close()
	}
	return nil
}

// debugMux serves /metrics and the /debug/ index. The journal console is
// mounted only when a journal is open.
func debugMux(metrics *monitoring.Collector, jrnl *journal.Journal, baseURL string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	debug := tsweb.Debugger(mux)
	debug.KV("Service", baseURL)
	debug.KV("Version", version.String())
	if jrnl != nil {
		if err := jrnl.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach journal routes: %v", err)
		}
	}
	return mux
}

// probeService logs the service status once. Failure is not fatal; the
// loop reports unreachable sectors on its own.
func probeService(ctx context.Context, client *neoapi.Client) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	info, err := client.Info(ctx)
	if err != nil {
		monitoring.Opsf("service status unavailable: %v", err)
		return
	}
	monitoring.Opsf("service %q: telescope online=%v railgun online=%v",
		info.Name, info.Telescope.Online, info.Railgun.Online)
}
