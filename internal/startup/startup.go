package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"media-library/internal/logging"
	"media-library/internal/workers"
)

// Set with -ldflags "-X media-library/internal/startup.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo is served by /version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Pool size caps applied to auto-detected and overridden worker counts.
const (
	maxRefreshWorkers = 16
	maxScanWorkers    = 32
)

// Config holds the bootstrap configuration read from the environment.
type Config struct {
	LibraryDirs     []string
	CacheDir        string
	DatabaseDir     string
	ConfigFile      string
	Port            string
	IndexInterval   time.Duration
	RefreshWorkers  int
	ScanWorkers     int
	LogHealthChecks bool
	MetricsEnabled  bool

	// Derived paths
	DatabasePath  string
	LockPath      string
	ImageCacheDir string

	// Feature flags based on directory availability
	ImageCacheEnabled bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	logBanner()
	section("CONFIGURATION")

	libraryDirsStr := getEnv("LIBRARY_DIRS", "/media")
	cacheDir := getEnv("CACHE_DIR", "/cache")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	configFile := getEnv("CONFIG_FILE", "")
	port := getEnv("PORT", "8080")
	indexIntervalStr := getEnv("INDEX_INTERVAL", "6h")
	refreshWorkers := workers.ForRefresh(maxRefreshWorkers)
	scanWorkers := workers.ForScan(maxScanWorkers)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	logging.Info("  LIBRARY_DIRS:        %s", libraryDirsStr)
	logging.Info("  CACHE_DIR:           %s", cacheDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  CONFIG_FILE:         %s", valueOr(configFile, "(DATABASE_DIR/server.toml)"))
	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  INDEX_INTERVAL:      %s", indexIntervalStr)
	logging.Info("  REFRESH_WORKERS:     %d", refreshWorkers)
	logging.Info("  SCAN_WORKERS:        %d", scanWorkers)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	indexInterval, err := time.ParseDuration(indexIntervalStr)
	if err != nil {
		logging.Warn("  Invalid INDEX_INTERVAL, using default: 6h")
		indexInterval = 6 * time.Hour
	}

	section("DIRECTORY SETUP")

	libraryDirs, err := resolveLibraryDirs(libraryDirsStr)
	if err != nil {
		return nil, err
	}
	for _, dir := range libraryDirs {
		logging.Info("  Library directory (absolute): %s", dir)
		// Missing libraries are a warning only; they may be network mounts
		// that appear later.
		if err := ensureDirectory(dir, "library"); err != nil {
			logging.Warn("  Library directory issue: %v", err)
		}
	}

	cacheDir, err = filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", cacheDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	if configFile == "" {
		configFile = filepath.Join(databaseDir, "server.toml")
	}
	configFile, err = filepath.Abs(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config file path: %w", err)
	}

	config := &Config{
		LibraryDirs:     libraryDirs,
		CacheDir:        cacheDir,
		DatabaseDir:     databaseDir,
		ConfigFile:      configFile,
		Port:            port,
		IndexInterval:   indexInterval,
		RefreshWorkers:  refreshWorkers,
		ScanWorkers:     scanWorkers,
		LogHealthChecks: logHealthChecks,
		MetricsEnabled:  metricsEnabled,
		DatabasePath:    filepath.Join(databaseDir, "library.db"),
		LockPath:        filepath.Join(databaseDir, "library.lock"),
		ImageCacheDir:   filepath.Join(cacheDir, "images"),
	}

	// Ensure base database directory exists (required for database)
	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory %s is not writable: %w", databaseDir, err)
	}

	config.ImageCacheEnabled = setupOptionalDir(config.ImageCacheDir, "image cache")

	logging.Info("  Image cache: %s, metrics: %s", enabledString(config.ImageCacheEnabled), enabledString(config.MetricsEnabled))

	return config, nil
}

// resolveLibraryDirs splits an OS path list, makes each entry absolute and
// drops duplicates.
func resolveLibraryDirs(list string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	for _, entry := range filepath.SplitList(list) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		abs, err := filepath.Abs(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve library directory %q: %w", entry, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		dirs = append(dirs, abs)
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("LIBRARY_DIRS does not name any directory")
	}
	return dirs, nil
}

// setupOptionalDir creates path and reports whether it is usable. Optional
// directories only disable the feature that needs them.
func setupOptionalDir(path, name string) bool {
	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("  %s disabled: cannot create %s: %v", name, path, err)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("  %s disabled: %s is not writable: %v", name, path, err)
		return false
	}
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOr(value, fallback string) string {
	if value == "" || value == "0" {
		return fallback
	}
	return value
}

// ensureDirectory checks that path is a directory. Library roots are never
// created since they are expected to be mounts; other directories are.
func ensureDirectory(path, name string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err) && name == "library":
		return fmt.Errorf("%s does not exist", path)
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", name, err)
		}
		logging.Debug("  Created %s directory %s", name, path)
		return nil
	case err != nil:
		return fmt.Errorf("stat %s directory: %w", name, err)
	case !info.IsDir():
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func testWriteAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("Ignoring %s=%q: not a boolean, using %v", key, v, def)
		return def
	}
	return b
}
