package memory

import (
	"runtime/debug"
	"testing"
)

func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()

	if !result.Configured || result.Source != SourceMemoryLimit {
		t.Fatalf("ConfigureFromEnv() = %+v, want configured from MEMORY_LIMIT", result)
	}
	if result.GoMemLimit != 536870912 {
		t.Errorf("GoMemLimit = %d, want 536870912", result.GoMemLimit)
	}
	if got := debug.SetMemoryLimit(-1); got != 536870912 {
		t.Errorf("runtime memory limit = %d, want 536870912", got)
	}
}

func TestConfigureFromEnvUnset(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()
	if result.Configured || result.Source != SourceNone {
		t.Errorf("ConfigureFromEnv() = %+v, want unconfigured", result)
	}
}

func TestConfigureFromEnvInvalidLimit(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")

	for _, value := range []string{"lots", "-5", "0"} {
		t.Setenv("MEMORY_LIMIT", value)
		if result := ConfigureFromEnv(); result.Configured {
			t.Errorf("MEMORY_LIMIT=%q: ConfigureFromEnv() = %+v, want unconfigured", value, result)
		}
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"", DefaultMemoryRatio},
		{"0.75", 0.75},
		{"1", 1.0},
		{"0", DefaultMemoryRatio},
		{"1.5", DefaultMemoryRatio},
		{"abc", DefaultMemoryRatio},
	}

	for _, tt := range tests {
		if got := parseRatio(tt.input); got != tt.want {
			t.Errorf("parseRatio(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1073741824, "1.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
