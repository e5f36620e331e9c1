package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"

	"media-library/internal/logging"
)

// recorder captures the status and body size of a response.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int64
	wrote  bool
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *recorder) WriteHeader(code int) {
	if rec.wrote {
		return
	}
	rec.status = code
	rec.wrote = true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	rec.wrote = true
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// LoggingConfig selects which requests are logged.
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

var healthPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger writes one access line per request through the application
// logger. Requests that change state and server errors log at info level,
// plain reads at debug.
func Logger(cfg LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipLogging(r.URL.Path, cfg) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newRecorder(w)
			next.ServeHTTP(rec, r)

			logf := logging.Debug
			if isMutation(r.Method) || rec.status >= http.StatusInternalServerError {
				logf = logging.Info
			}
			logf("%s %s -> %d (%d bytes, %s) from %s",
				sanitize(r.Method),
				sanitize(r.URL.RequestURI()),
				rec.status,
				rec.bytes,
				time.Since(start).Round(time.Millisecond),
				sanitize(clientIP(r)))
		})
	}
}

func isMutation(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

func skipLogging(path string, cfg LoggingConfig) bool {
	for _, prefix := range cfg.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return !cfg.LogHealthChecks && healthPaths[path]
}

// sanitize drops control characters so request fields cannot forge log lines.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
