// Command zonesync periodically mirrors an authoritative DNS server's zones
// and records into a local SQLite cache.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"zonesync/pkg/remote/powerdns"
	"zonesync/pkg/store/sqlite"
	"zonesync/pkg/syncer"
)

func main() {
	// ---- PowerDNS API flags ----
	pdnsURL := flag.String("pdns-url",
		envOr("ZONESYNC_PDNS_URL", ""),
		"PowerDNS API base URL, e.g. http://pdns.internal:8081 (required)")
	pdnsAPIKey := flag.String("pdns-api-key",
		envOr("ZONESYNC_PDNS_API_KEY", ""),
		"PowerDNS API key sent as X-API-Key")
	pdnsServerID := flag.String("pdns-server-id",
		envOr("ZONESYNC_PDNS_SERVER_ID", "localhost"),
		"PowerDNS server instance id")
	pdnsTimeout := flag.Duration("pdns-timeout",
		envOrDuration("ZONESYNC_PDNS_TIMEOUT", 30*time.Second),
		"Timeout for PowerDNS API requests")

	// ---- Cache flags ----
	dbPath := flag.String("db-path",
		envOr("ZONESYNC_DB_PATH", ""),
		"Path to the SQLite cache (default: user config dir)")
	integrationID := flag.String("integration-id",
		envOr("ZONESYNC_INTEGRATION_ID", "default"),
		"Integration id owning the cached zones")

	// ---- Syncer flags ----
	interval := flag.Duration("interval",
		envOrDuration("ZONESYNC_INTERVAL", 5*time.Minute),
		"Periodic refresh interval")
	batchSize := flag.Int("zone-batch-size",
		envOrInt("ZONESYNC_ZONE_BATCH_SIZE", 50),
		"How many zones are grouped per record-pass batch")
	once := flag.Bool("once",
		envOrBool("ZONESYNC_ONCE", false),
		"Run exactly one refresh and exit")
	dryRun := flag.Bool("dry-run",
		envOrBool("ZONESYNC_DRY_RUN", false),
		"Log planned cache changes without applying them")

	// ---- Health check flags ----
	healthPort := flag.Int("health-port",
		envOrInt("ZONESYNC_HEALTH_PORT", 8080),
		"Port for the HTTP health/metrics server (0 to disable)")

	// ---- Shutdown flags ----
	shutdownTimeout := flag.Duration("shutdown-timeout",
		envOrDuration("ZONESYNC_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Maximum time to wait for graceful shutdown after SIGTERM")

	// ---- Logging flags ----
	logLevel := flag.String("log-level",
		envOr("ZONESYNC_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error")

	flag.Parse()

	log := newLogger(*logLevel)

	// ---- Validate required configuration ----
	if *pdnsURL == "" {
		log.Error("--pdns-url is required (or set ZONESYNC_PDNS_URL)")
		os.Exit(1)
	}

	// ---- Open the local cache ----
	path := *dbPath
	if path == "" {
		var err error
		path, err = defaultDBPath()
		if err != nil {
			log.Error("unable to determine cache path", "err", err)
			os.Exit(1)
		}
	}
	st, err := sqlite.Open(path)
	if err != nil {
		log.Error("failed to open cache", "path", path, "err", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn("error closing cache", "err", cerr)
		}
	}()

	// ---- Build remote source ----
	src := powerdns.New(powerdns.Config{
		BaseURL:  *pdnsURL,
		APIKey:   *pdnsAPIKey,
		ServerID: *pdnsServerID,
		Timeout:  *pdnsTimeout,
	}, log)

	// ---- Build syncer ----
	s := syncer.New(src, st, log, syncer.Config{
		IntegrationID: *integrationID,
		ZoneBatchSize: *batchSize,
		Interval:      *interval,
		Once:          *once,
		DryRun:        *dryRun,
	})

	// ---- Graceful shutdown ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	log.Info("starting zonesync",
		"pdns-url", *pdnsURL,
		"integration-id", *integrationID,
		"db-path", path,
		"interval", interval.String(),
		"dry-run", *dryRun,
		"once", *once,
	)

	g, gctx := errgroup.WithContext(ctx)

	// The syncer ends the whole process when it returns, error or not, so
	// the health server never outlives it.
	runCtx, cancelRun := context.WithCancel(gctx)
	g.Go(func() error {
		defer cancelRun()
		if err := s.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("syncer: %w", err)
		}
		return nil
	})

	if *healthPort != 0 {
		g.Go(func() error {
			return serveHealth(runCtx, *healthPort, *shutdownTimeout, s, st, *integrationID, log)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("zonesync exited with error", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// serveHealth runs an HTTP server exposing /healthz (liveness), /readyz
// (readiness, gated on the first successful refresh), /statusz (the stored
// integration health), and /metrics. It shuts down gracefully when ctx is
// cancelled.
func serveHealth(ctx context.Context, port int, shutdownTimeout time.Duration, s *syncer.Syncer, st *sqlite.Store, integrationID string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.IsReady() {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "not ready")
		}
	})
	mux.HandleFunc("/statusz", func(w http.ResponseWriter, r *http.Request) {
		status, err := st.Status(r.Context(), integrationID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"state":   status.State,
			"message": status.Message,
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("health server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn("health server shutdown error", "err", err)
	}
	return <-errCh
}

// defaultDBPath returns the default cache path under the user config dir.
func defaultDBPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine config directory: %w", err)
	}
	return filepath.Join(base, "zonesync", "zonesync.db"), nil
}

// newLogger returns a JSON logger writing to stderr at the given level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// envOr returns the value of the environment variable named key, or fallback
// if the variable is unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envOrInt returns the environment variable named key parsed as int, or fallback.
func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envOrBool returns the environment variable named key parsed as bool, or fallback.
func envOrBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envOrDuration returns the environment variable named key parsed as
// time.Duration, or fallback.
func envOrDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
