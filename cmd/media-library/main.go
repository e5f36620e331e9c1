package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-library/internal/config"
	"media-library/internal/database"
	"media-library/internal/filesystem"
	"media-library/internal/handlers"
	"media-library/internal/indexer"
	"media-library/internal/logging"
	"media-library/internal/memory"
	"media-library/internal/metrics"
	"media-library/internal/middleware"
	"media-library/internal/providers"
	"media-library/internal/providers/fanart"
	"media-library/internal/providers/localimages"
	"media-library/internal/providers/mediainfo"
	"media-library/internal/providers/tmdb"
	"media-library/internal/resolver"
	"media-library/internal/startup"
	"media-library/internal/watcher"
)

// ignoreReleaseDelay keeps a server-written path suppressed briefly after
// the write, since inotify may deliver its events late.
const ignoreReleaseDelay = 5 * time.Second

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()
	logging.EnableFileOutput(logging.FileOptionsFromEnv())
	defer logging.Close()

	// Load configuration
	cfg, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	// One server per database directory
	lock := flock.New(cfg.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		startup.LogFatal("Failed to acquire instance lock: %v", err)
	}
	if !locked {
		startup.LogFatal("Another instance is using %s", cfg.DatabaseDir)
	}
	defer func() { _ = lock.Unlock() }()

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewLibraryVolumeResolver(cfg.LibraryDirs, cfg.CacheDir, cfg.DatabaseDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Server policy, reloaded when the file changes
	cfgMgr, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		startup.LogFatal("Failed to load %s: %v", cfg.ConfigFile, err)
	}
	if err := cfgMgr.Watch(ctx); err != nil {
		logging.Warn("Configuration file will not be reloaded automatically: %v", err)
	}
	applyLogLevel(cfgMgr.Current())

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	ignore := watcher.NewIgnoreSetWithDelay(ignoreReleaseDelay)

	// Metadata providers
	providerMgr := setupProviders(cfg, cfgMgr, ignore, memMonitor)
	startup.LogProvidersInit(providerMgr.Names(), cfgMgr.Current().EnableInternetProviders)
	metrics.InitializeMetrics(providerMgr.Names())

	// Initialize indexer
	startup.LogIndexerInit(cfg.IndexInterval)
	idx := indexer.New(db, resolver.New(), providerMgr, indexer.Options{
		Roots:          cfg.LibraryDirs,
		Libraries:      func() []config.Library { return cfgMgr.Current().Libraries },
		IndexInterval:  cfg.IndexInterval,
		RefreshWorkers: cfg.RefreshWorkers,
		Monitor:        memMonitor,
	})
	parallelConfig := indexer.DefaultParallelWalkerConfig()
	parallelConfig.NumWorkers = cfg.ScanWorkers
	idx.SetParallelConfig(parallelConfig)

	// Realtime monitor
	watchMgr := watcher.NewManager(db, idx, cfgMgr, ignore, watcher.Options{Roots: cfg.LibraryDirs})
	idx.SetOnChildrenChanged(watchMgr.OnChildrenChanged)
	startup.LogWatcherInit(cfgMgr.Current().EnableRealtimeMonitor, cfgMgr.Current().WatcherDelay())
	if err := watchMgr.Start(ctx); err != nil {
		startup.LogFatal("Failed to start file watcher: %v", err)
	}

	unsubscribe := cfgMgr.Subscribe(configChangeHandler(cfgMgr, providerMgr, idx))
	defer unsubscribe()

	if err := idx.Start(); err != nil {
		startup.LogFatal("Failed to start indexer: %v", err)
	}
	startup.LogIndexerStarted()

	collector := metrics.NewCollector(db, time.Minute)
	collector.Start()

	// Initialize handlers
	h := handlers.New(handlers.Deps{
		Scanner:  idx,
		Stats:    db,
		Running:  providerMgr,
		Watches:  watchMgr,
		Reloader: cfgMgr,
	})

	router := setupRouter(h, cfg.MetricsEnabled)
	startup.LogHTTPRoutes(router, cfg.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(middleware.Metrics(middleware.DefaultMetricsConfig())(router))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go handleShutdown(srv, done, func() {
		startup.LogShutdownStep("Stopping file watcher")
		watchMgr.Stop()
		startup.LogShutdownStepComplete("File watcher stopped")

		startup.LogShutdownStep("Stopping indexer")
		idx.Stop()
		startup.LogShutdownStepComplete("Indexer stopped")

		startup.LogShutdownStep("Cancelling provider runs")
		providerMgr.Close()
		startup.LogShutdownStepComplete("Provider runs cancelled")

		collector.Stop()
		memMonitor.Stop()
		cancel()
	})

	startup.LogServerStarted(startup.ServerInfo{
		Port:            cfg.Port,
		MetricsEnabled:  cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
	startup.LogShutdownComplete()
}

// setupProviders builds the provider chain. Internet providers are only
// registered when their API key is configured at startup.
func setupProviders(cfg *startup.Config, cfgMgr *config.Manager, ignore providers.PathIgnorer, monitor *memory.Monitor) *providers.Manager {
	policy := func() providers.Policy { return providers.PolicyFromConfig(cfgMgr.Current()) }
	maxBackdrops := func() int { return cfgMgr.Current().MaxBackdrops }
	refreshInterval := func() time.Duration { return cfgMgr.Current().MetadataRefreshInterval() }

	pm := providers.NewManager(policy, ignore, providers.WithMemoryMonitor(monitor))

	imageCache := ""
	if cfg.ImageCacheEnabled {
		imageCache = cfg.ImageCacheDir
	}
	parts := []providers.Provider{
		mediainfo.New(),
		localimages.New(imageCache, maxBackdrops),
	}

	current := cfgMgr.Current()
	if client, err := tmdb.NewClient(current.TMDB.APIKey, current.TMDB.BaseURL, current.TMDB.Language); err == nil {
		parts = append(parts, tmdb.New(client, refreshInterval))
	} else {
		logging.Info("TMDB provider disabled: %v", err)
	}
	if client, err := fanart.NewClient(current.Fanart.APIKey, current.Fanart.BaseURL); err == nil {
		parts = append(parts, fanart.New(client, pm, maxBackdrops, refreshInterval))
	} else {
		logging.Info("FanArt provider disabled: %v", err)
	}

	pm.AddParts(parts...)
	return pm
}

// configChangeHandler reacts to a reloaded configuration: providers drop
// runs the new policy forbids, the log level follows the file and a change
// of libraries queues a full rescan.
func configChangeHandler(cfgMgr *config.Manager, pm *providers.Manager, idx *indexer.Indexer) func() {
	var mu sync.Mutex
	libraries := cfgMgr.Current().Libraries

	return func() {
		current := cfgMgr.Current()
		pm.OnConfigurationChanged()
		applyLogLevel(current)

		mu.Lock()
		changed := !slices.EqualFunc(libraries, current.Libraries, func(a, b config.Library) bool {
			return a.Name == b.Name && slices.Equal(a.Locations, b.Locations)
		})
		libraries = current.Libraries
		mu.Unlock()

		if changed {
			logging.Info("Library definitions changed, queueing a full rescan")
			idx.QueueFullRescan()
		}
	}
}

func applyLogLevel(cfg config.ServerConfig) {
	if cfg.LogLevel != "" {
		logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/library/refresh", h.RefreshLibrary).Methods("POST")
	api.HandleFunc("/items/{id}/refresh", h.RefreshItem).Methods("POST")
	api.HandleFunc("/providers/running", h.RunningProviders).Methods("GET")
	api.HandleFunc("/watcher/paths", h.WatchedPaths).Methods("GET")
	api.HandleFunc("/config/reload", h.ReloadConfig).Methods("POST")

	return r
}

func handleShutdown(srv *http.Server, done chan<- struct{}, stopServices func()) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	stopServices()
}
