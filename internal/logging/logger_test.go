package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

// decodeLines parses JSON log lines into maps.
func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	t.Run("creates log file in directory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		dir := Dir("/repo")

		logger, err := New(Options{Dir: dir, Level: LevelDebug, Fs: fs})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		logger.Info("hello")
		if err := logger.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		data, err := afero.ReadFile(fs, filepath.Join(dir, FileName))
		if err != nil {
			t.Fatalf("log file was not written: %v", err)
		}
		if entries := decodeLines(t, string(data)); len(entries) != 1 || entries[0]["msg"] != "hello" {
			t.Errorf("entries = %v", entries)
		}
	})

	t.Run("writes to stderr when Dir is empty", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Options{Level: LevelInfo, Stderr: &buf})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		logger.Info("to stderr")

		if !strings.Contains(buf.String(), `"msg":"to stderr"`) {
			t.Errorf("stderr = %q", buf.String())
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close on stderr logger should be a no-op, got %v", err)
		}
	})
}

func TestDir(t *testing.T) {
	if got, want := Dir("/repo"), filepath.Join("/repo", ".wsrun", "logs"); got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{LevelDebug, []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{LevelInfo, []string{"INFO", "WARN", "ERROR"}},
		{LevelWarn, []string{"WARN", "ERROR"}},
		{LevelError, []string{"ERROR"}},
		{"bogus", []string{"INFO", "WARN", "ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, _ := New(Options{Level: tt.level, Stderr: &buf})

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			entries := decodeLines(t, buf.String())
			if len(entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.want))
			}
			for i, entry := range entries {
				if entry["level"] != tt.want[i] {
					t.Errorf("entry %d level = %v, want %s", i, entry["level"], tt.want[i])
				}
			}
		})
	}
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Level: LevelDebug, Stderr: &buf})

	logger.WithRun("run-1").WithBatch(2).WithPackage("pkg-a").Info("started", "script", "build")

	entries := decodeLines(t, buf.String())
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
	if entry["batch"] != float64(2) {
		t.Errorf("batch = %v", entry["batch"])
	}
	if entry["package"] != "pkg-a" {
		t.Errorf("package = %v", entry["package"])
	}
	if entry["script"] != "build" {
		t.Errorf("script = %v", entry["script"])
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	parent, _ := New(Options{Level: LevelDebug, Stderr: &buf})

	if parent.With() != parent {
		t.Error("With() without args should return the same logger")
	}

	child := parent.With("key", "value")
	parent.Info("parent")
	child.Info("child")

	entries := decodeLines(t, buf.String())
	if _, ok := entries[0]["key"]; ok {
		t.Error("parent logger should not inherit child attributes")
	}
	if entries[1]["key"] != "value" {
		t.Errorf("child key = %v", entries[1]["key"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.WithPackage("a").Error("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if logger.Slog() == nil {
		t.Error("Slog() should not be nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidLevels(t *testing.T) {
	if got := ValidLevels(); len(got) != 4 || got[0] != LevelDebug || got[3] != LevelError {
		t.Errorf("ValidLevels() = %v", got)
	}
}

func TestConcurrentWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger, err := New(Options{Dir: "/logs", Level: LevelInfo, Fs: fs, Rotation: DefaultRotationConfig()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			child := logger.WithBatch(i)
			for range 10 {
				child.Info("tick")
			}
		})
	}
	wg.Wait()
	_ = logger.Close()

	data, _ := afero.ReadFile(fs, "/logs/"+FileName)
	if entries := decodeLines(t, string(data)); len(entries) != 100 {
		t.Errorf("got %d entries, want 100", len(entries))
	}
}
