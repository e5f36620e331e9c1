package startup

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"media-library/internal/logging"
	"media-library/internal/memory"
)

const rule = "------------------------------------------------------------"

// section starts a titled block of startup output.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

func logBanner() {
	fmt.Println(rule + `
   __  ___       ___        __   _ __
  /  |/  /__ ___/ (_)__ _  / /  (_) /  _______ _______ __
 / /|_/ / -_) _  / / _ '/ / /__/ / _ \/ __/ _ '/ __/ // /
/_/  /_/\__/\_,_/_/\_,_/ /____/_/_.__/_/  \_,_/_/  \_, /
                                                  /___/
` + rule)
	logging.Info("  %s (%s, built %s) on %s/%s, %d CPUs, GOMAXPROCS %d",
		Version, Commit, BuildTime, runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.GOMAXPROCS(0))
	if host, err := os.Hostname(); err == nil {
		logging.Debug("  Host: %s", host)
	}
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(result memory.ConfigResult) {
	section("MEMORY")
	switch {
	case !result.Configured:
		logging.Info("  GOMEMLIMIT: not configured (set MEMORY_LIMIT or GOMEMLIMIT)")
	case result.Source == memory.SourceMemoryLimit:
		logging.Info("  GOMEMLIMIT:      %s", formatBytes(result.GoMemLimit))
		logging.Info("  Container limit: %s (ratio %.2f)", formatBytes(result.ContainerLimit), result.Ratio)
	default:
		logging.Info("  GOMEMLIMIT:      %s (from %s)", formatBytes(result.GoMemLimit), result.Source)
	}
}

// formatBytes renders b with binary units.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	exp := 0
	v := float64(b) / unit
	for v >= unit && exp < 5 {
		v /= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", v, "KMGTPE"[exp])
}

func LogDatabaseInit(took time.Duration) {
	section("CATALOG")
	logging.Info("  Database opened in %v", took)
}

// LogProvidersInit logs the metadata provider chain in execution order.
func LogProvidersInit(names []string, internetEnabled bool) {
	section("METADATA PROVIDERS")
	for i, name := range names {
		logging.Info("  %d. %s", i+1, name)
	}
	logging.Info("  Internet providers: %s", enabledString(internetEnabled))
}

func LogIndexerInit(interval time.Duration) {
	section("INDEXER")
	logging.Info("  Full rescan every %v", interval)
}

func LogIndexerStarted() {
	logging.Info("  Indexer running")
}

// LogWatcherInit logs the realtime monitor state.
func LogWatcherInit(enabled bool, delay time.Duration) {
	section("REALTIME MONITOR")
	if !enabled {
		logging.Info("  Disabled (enable_realtime_monitor = false)")
		return
	}
	logging.Info("  Debounce window: %v", delay)
}

// RouteInfo is one method/path pair registered on the router.
type RouteInfo struct {
	Method string
	Path   string
}

// GetRoutes lists every method/path pair on router, sorted by path. Routes
// without a method restriction are reported as "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path})
		}
		return nil
	})
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	return routes, err
}

// LogHTTPRoutes logs the route table at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER")
	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		for _, r := range routes {
			logging.Debug("    %-6s %s", r.Method, r.Path)
		}
	}
	logging.Info("  Health check logging: %s", strings.ToLower(enabledString(logHealthChecks)))
}

// ServerInfo describes the listening server.
type ServerInfo struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

func LogServerStarted(info ServerInfo) {
	section("SERVER STARTED")
	logging.Info("  Ready in %v", info.StartupDuration)
	logging.Info("  Admin API: http://0.0.0.0:%s/api", info.Port)
	if info.MetricsEnabled {
		logging.Info("  Metrics:   http://0.0.0.0:%s/metrics", info.Port)
	}
}

func LogShutdownInitiated(signal string) {
	section("SHUTDOWN (" + signal + ")")
}

func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

func LogShutdownComplete() {
	logging.Info("  Shutdown complete")
}

// LogFatal logs and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
