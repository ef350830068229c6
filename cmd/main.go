package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/asbplayer"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/config"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/httpapi"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/jobs"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/library"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/persistence"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/service"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/watch"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// scheduler registers the recurring scan with the cron engine.
type scheduler interface {
	Schedule() error
}

// cronEngine is the subset of cron.Cron the daemon drives directly.
type cronEngine interface {
	Start()
	Stop() context.Context
}

// httpServer is the subset of httpapi.Server the daemon drives directly.
type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		log.Fatal("%v", err)
	}
}

func run() error {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// The settings file wins over environment defaults once it exists.
	settingsPath := config.RuntimeSettingsFilePath(cfg.System.DataDir)
	settings, err := config.LoadRuntimeSettingsFile(settingsPath)
	switch {
	case err == nil:
		cfg, err = config.NewFromEnv(config.WithRuntimeSettings(settings))
		if err != nil {
			return fmt.Errorf("apply runtime settings: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		settings = cfg.RuntimeSettings()
		if err := config.WriteRuntimeSettingsFile(settingsPath, settings); err != nil {
			log.Warn("could not seed settings file %s: %v", settingsPath, err)
		}
	default:
		log.Warn("ignoring settings file %s: %v", settingsPath, err)
		settings = cfg.RuntimeSettings()
	}

	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is already running (lock %s)", cfg.LockPath())
	}
	defer lock.Unlock()

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, settings)
	if err != nil {
		return fmt.Errorf("init settings store: %w", err)
	}

	queue := jobs.NewQueue(1, store)

	var scanner *library.Scanner
	if cfg.Watch.Dir != "" {
		scanner = library.NewScanner(cfg.Watch.Dir)
	}

	engine := cron.New()

	svc, err := service.NewTranscriptionService(cfg, settingsStore, store, queue, scanner, engine)
	if err != nil {
		return fmt.Errorf("init transcription service: %w", err)
	}

	queue.Start(svc.Execute)
	defer queue.Stop()

	if cfg.Player.WebsocketServerCmd != "" {
		player, err := asbplayer.StartServer(cfg.Player.WebsocketServerCmd)
		if err != nil {
			log.Warn("asbplayer websocket server not started: %v", err)
		} else {
			defer player.Stop()
		}
	}

	opts := []httpapi.Option{
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(svc.ApplyRuntimeSettings),
		httpapi.WithStatusSource(svc.Status),
	}
	if scanner != nil {
		opts = append(opts, httpapi.WithScanTrigger(svc.Scan))
	}
	srv := httpapi.NewServer(queue, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.ClipboardWatch {
		watcher := watch.NewWatcher(func(url string) {
			if _, created := svc.SubmitURL(url, "clipboard"); created {
				log.Info("queued clipboard URL %s", url)
			}
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	if cfg.Watch.Dir != "" {
		log.Info("watching %s (%s)", cfg.Watch.Dir, settings.ScanSchedule)
	}
	log.Info("listening on %s", cfg.HTTP.Addr)

	return runWithComponents(ctx, cfg, svc, engine, srv)
}

// runWithComponents runs the daemon until ctx is cancelled or the HTTP
// server fails. Shutdown drains HTTP and in-flight cron jobs for at most
// five seconds.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, engine cronEngine, httpSrv httpServer) error {
	if err := sched.Schedule(); err != nil {
		return err
	}
	engine.Start()

	httpErr := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe(cfg.HTTP.Addr)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		httpErr <- err
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-httpErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	select {
	case <-engine.Stop().Done():
	case <-shutdownCtx.Done():
	}

	return runErr
}
