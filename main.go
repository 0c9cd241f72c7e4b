// raspimon samples host telemetry, stores it in SQLite, raises threshold
// alerts and streams both to websocket subscribers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"raspimon/internal/config"
	"raspimon/internal/db"
	"raspimon/internal/logger"
	"raspimon/internal/routes"
	"raspimon/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "token" {
		return runToken(args[1:], stdout)
	}
	return runServe(args)
}

func runServe(args []string) error {
	var configPath, addr string
	flagSet := pflag.NewFlagSet("raspimon", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file (default: $RASPIMON_CONFIG)")
	flagSet.StringVar(&addr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(log)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	sqldb, err := db.Open(cfg.DBPath, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrConfiguration, err)
	}
	if err := db.Migrate(sqldb); err != nil {
		_ = sqldb.Close()
		return err
	}
	store := db.NewStore(sqldb)
	defer store.Close()
	log.Info("database ready", "path", cfg.DBPath)

	auth := services.NewAuthService(cfg.AuthSecret, cfg.TokenExpiry)
	switch {
	case !auth.Enabled():
		log.Warn("AUTH_SECRET not set, mutating API is open")
	case auth.WeakSecret():
		log.Warn("AUTH_SECRET is shorter than 32 bytes")
	}

	bus := services.NewEventBus(log.With("module", "bus"), 64)
	pipeline := services.NewPipeline(
		bus,
		services.NewCollector(services.NewHostSensors(log.With("module", "sensors")), store, bus, log.With("module", "collector")),
		services.NewAlertEngine(store, bus, log.With("module", "alerts"), services.AlertEngineConfig{
			Thresholds: cfg.Thresholds,
			Cooldown:   cfg.AlertCooldown,
		}),
		services.NewBroadcastHub(log.With("module", "hub"), cfg.HeartbeatInterval),
		services.NewSnapshotCache(2*cfg.MetricsInterval),
		log.With("module", "pipeline"),
	)

	router := routes.New(routes.Dependencies{
		Store:          store,
		Pipeline:       pipeline,
		Auth:           auth,
		Log:            log.With("module", "http"),
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		Version:        version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline.Start(ctx, services.PipelineConfig{
		Collector: services.CollectorConfig{
			Interval:        cfg.MetricsInterval,
			CleanupInterval: cfg.CleanupInterval,
			RetentionDays:   cfg.RetentionDays,
		},
		AlertInterval: cfg.AlertCheckInterval,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-errCh:
		log.Error("http server failed", "error", err)
	}

	pipeline.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error("http shutdown", "error", serr)
	}
	log.Info("raspimon stopped")
	return err
}

// runToken prints an operator token signed with AUTH_SECRET
func runToken(args []string, stdout io.Writer) error {
	var configPath, subject string
	var expiry time.Duration
	flagSet := pflag.NewFlagSet("raspimon token", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&subject, "subject", "", "operator name recorded as resolved_by")
	flagSet.DurationVar(&expiry, "expiry", 0, "token lifetime (default: AUTH_TOKEN_EXPIRY)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	auth := services.NewAuthService(cfg.AuthSecret, cfg.TokenExpiry)
	token, expiresAt, err := auth.GenerateToken(subject, expiry)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n", token)
	fmt.Fprintf(stdout, "# subject=%s expires=%s\n", subject, expiresAt.UTC().Format(time.RFC3339))
	return nil
}
