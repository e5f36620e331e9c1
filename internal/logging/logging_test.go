package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LogLevel
	}{
		{name: "debug", input: "debug", want: LevelDebug},
		{name: "info", input: "info", want: LevelInfo},
		{name: "warn", input: "warn", want: LevelWarn},
		{name: "warning alias", input: "warning", want: LevelWarn},
		{name: "error", input: "error", want: LevelError},
		{name: "case insensitive", input: "DEBUG", want: LevelDebug},
		{name: "surrounding space", input: "  error ", want: LevelError},
		{name: "unknown defaults to info", input: "verbose", want: LevelInfo},
		{name: "empty defaults to info", input: "", want: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo {
		t.Error("LevelDebug should be less than LevelInfo")
	}
	if LevelInfo >= LevelWarn {
		t.Error("LevelInfo should be less than LevelWarn")
	}
	if LevelWarn >= LevelError {
		t.Error("LevelWarn should be less than LevelError")
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	fn()
	return buf.String()
}

func TestLevelFiltering(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(LevelWarn)
	out := captureOutput(t, func() {
		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")
	})

	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("output contains messages below warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn message") {
		t.Errorf("output missing warn message: %q", out)
	}
	if !strings.Contains(out, "[ERROR] error message") {
		t.Errorf("output missing error message: %q", out)
	}
}

func TestIsDebugEnabled(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(LevelDebug)
	if !IsDebugEnabled() {
		t.Error("IsDebugEnabled() = false, want true at debug level")
	}

	SetLevel(LevelInfo)
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled() = true, want false at info level")
	}
}

func TestEnableFileOutput(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)
	SetLevel(LevelInfo)

	path := filepath.Join(t.TempDir(), "server.log")
	EnableFileOutput(FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1})
	Info("written to file %d", 7)
	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[INFO] written to file 7") {
		t.Errorf("log file content = %q, want info line", string(data))
	}
}

func TestEnableFileOutputEmptyPath(t *testing.T) {
	EnableFileOutput(FileOptions{})
	if err := Close(); err != nil {
		t.Errorf("Close() with no file error = %v, want nil", err)
	}
}

func TestFileOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_FILE", "/tmp/x.log")
	t.Setenv("LOG_MAX_SIZE_MB", "12")
	t.Setenv("LOG_MAX_BACKUPS", "bogus")

	opts := FileOptionsFromEnv()
	if opts.Path != "/tmp/x.log" {
		t.Errorf("Path = %q, want /tmp/x.log", opts.Path)
	}
	if opts.MaxSizeMB != 12 {
		t.Errorf("MaxSizeMB = %d, want 12", opts.MaxSizeMB)
	}
	if opts.MaxBackups != 5 {
		t.Errorf("MaxBackups = %d, want default 5", opts.MaxBackups)
	}
}
