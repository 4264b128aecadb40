package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type SimpleResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// App is everything the HTTP and stream handlers share.
type App struct {
	config       Config
	logger       *log.Logger
	catalog      *Catalog
	registry     *SessionRegistry
	platform     Platform
	resolver     adResolver
	stream       *StreamHub
	telemetryLog *TelemetryLog

	closers []func() error
}

/* ======================
   main()
   ====================== */

func main() {
	logger := log.New(os.Stderr, "[server] ", log.LstdFlags)

	if len(os.Args) > 1 && os.Args[1] == "simulate" {
		if err := runSimulateCommand(os.Args[2:], logger); err != nil {
			logger.Fatal("simulate: ", err)
		}
		return
	}

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("config: ", err)
	}
	logger.Println("App environment:", cfg.AppEnv)
	if cfg.DevMode {
		logger.Println("⚠️  DEV MODE ENABLED")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup: ", err)
	}

	tickDone := startTickLoop(ctx, app.registry, cfg.TickInterval, logger)

	mux := http.NewServeMux()
	registerRoutes(mux, app)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Println("Listening on", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed: ", err)
		}
	}()

	<-ctx.Done()
	logger.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Println("http shutdown:", err)
	}
	<-tickDone
	app.Close(shutdownCtx)
}

// newApp opens the stores and builds the platform, registry and stream hub
// described by cfg.
func newApp(ctx context.Context, cfg Config, logger *log.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	tuning := DefaultTuning()
	if cfg.TuningPath != "" {
		t, err := LoadTuning(cfg.TuningPath)
		if err != nil {
			return nil, err
		}
		tuning = t
		logger.Println("Tuning: loaded", cfg.TuningPath)
	}

	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	app.catalog = catalog

	local, err := openLocalStore(cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, local.Close)
	logger.Println("Saves:", cfg.Backend(), "at", cfg.savesPath())

	cloud, err := openCloudStore(ctx, cfg, logger)
	if err != nil {
		app.closeStores()
		return nil, err
	}
	app.closers = append(app.closers, cloud.Close)

	app.stream = NewStreamHub(app, cfg.StreamInterval, logger)
	switch cfg.Platform() {
	case PlatformRelay:
		relay := NewRelayPlatform(cloud, app.stream)
		app.platform = relay
		app.resolver = relay
		app.stream.SetAdResolver(relay)
	default:
		app.platform = NewMockPlatform(cloud)
	}
	logger.Println("Platform:", cfg.Platform())

	var recorder EventRecorder = nopRecorder{}
	if cfg.EnableTelemetry {
		app.telemetryLog = NewTelemetryLog(cfg.telemetryDir(), logger)
		recorder = app.telemetryLog
		app.closers = append(app.closers, app.telemetryLog.Close)
	}

	app.registry = NewSessionRegistry(SessionDeps{
		Tuning:    tuning,
		Store:     local,
		Platform:  app.platform,
		Telemetry: recorder,
		Logger:    logger,
		Location:  cfg.Location(),
		AdTimeout: cfg.AdTimeout,
		Presence:  cfg.PresenceTimeout,
	}, cfg.SessionIdleTimeout, logger)
	return app, nil
}

func openLocalStore(cfg Config) (SaveStore, error) {
	if cfg.Backend() == SaveBackendFile {
		return OpenFileStore(cfg.savesPath())
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return OpenSQLiteStore(cfg.savesPath())
}

// openCloudStore uses Postgres when DATABASE_URL is set and a second local
// file store otherwise.
func openCloudStore(ctx context.Context, cfg Config, logger *log.Logger) (SaveStore, error) {
	if cfg.DatabaseURL != "" {
		store, err := OpenPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Println("Cloud saves: connected to PostgreSQL")
		return store, nil
	}
	logger.Println("Cloud saves: local files at", cfg.cloudDir())
	return OpenFileStore(cfg.cloudDir())
}

// Close flushes every session before the stores go away.
func (a *App) Close(ctx context.Context) {
	a.registry.Shutdown(ctx)
	a.closeStores()
}

func (a *App) closeStores() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Println("close:", err)
		}
	}
	a.closers = nil
}

/* ======================
   Routes
   ====================== */

func registerRoutes(mux *http.ServeMux, app *App) {
	mux.HandleFunc("/health", healthHandler(app))
	mux.HandleFunc("/state", stateHandler(app))
	mux.HandleFunc("/tap", tapHandler(app))
	mux.HandleFunc("/upgrade", upgradeHandler(app))
	mux.HandleFunc("/shop/buy", shopBuyHandler(app))
	mux.HandleFunc("/business/upgrade", businessUpgradeHandler(app))
	mux.HandleFunc("/reward/boost", rewardBoostHandler(app))
	mux.HandleFunc("/daily/claim", dailyClaimHandler(app))
	mux.HandleFunc("/offer/double", offerDoubleHandler(app))
	mux.HandleFunc("/visibility", visibilityHandler(app))
	mux.HandleFunc("/screen", screenHandler(app))
	mux.HandleFunc("/settings", settingsHandler(app))
	mux.HandleFunc("/auth", authHandler(app))
	mux.HandleFunc("/ads/result", adResultHandler(app))
	mux.HandleFunc("/i18n", i18nHandler(app))
	mux.HandleFunc("/telemetry", telemetryHandler(app))
	mux.HandleFunc("/feedback", feedbackHandler(app))
	mux.HandleFunc("/ws", app.stream.Handler())
}
