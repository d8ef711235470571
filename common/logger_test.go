package common

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAppLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelInfo)

	logger.Debug("hidden")
	if buf.Len() > 0 {
		t.Fatalf("Debug logged at Info level: %q", buf.String())
	}

	logger.SetLevel(LevelDebug)
	logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("Debug not logged after SetLevel(LevelDebug), got %q", buf.String())
	}
}

func TestAppLogger_LogFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")

	if buf.Len() > 0 {
		t.Error("Debug/Info messages should be filtered when level is Warn")
	}

	logger.Warn("warn message")
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("Warn message should be logged, got %q", buf.String())
	}

	buf.Reset()
	logger.Error("error message")
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("Error message should be logged, got %q", buf.String())
	}
}

func TestAppLogger_LogFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelDebug)

	logger.Info("Test message with %s", "formatting")

	output := buf.String()

	if !strings.Contains(output, `"time":`) {
		t.Error("Log should contain a timestamp")
	}

	if !strings.Contains(output, `"caller":`) {
		t.Error("Log should contain the caller")
	}

	if !strings.Contains(output, "Test message with formatting") {
		t.Error("Log should contain formatted message")
	}
}

func TestDefaultLogConfig(t *testing.T) {
	if defaultMaxFileSize != 5*1024*1024 {
		t.Errorf("defaultMaxFileSize = %v, want 5MB", defaultMaxFileSize)
	}

	if defaultMaxBackups != 5 {
		t.Errorf("defaultMaxBackups = %v, want 5", defaultMaxBackups)
	}
}

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if len(id1) != 36 {
		t.Errorf("GenerateID() length = %v, want 36", len(id1))
	}

	if id1 == id2 {
		t.Error("GenerateID() should return unique IDs")
	}
}

func TestIndexOf(t *testing.T) {
	slice := []string{"corp", "guest"}

	if got := IndexOf(slice, "guest"); got != 1 {
		t.Errorf("IndexOf(guest) = %v, want 1", got)
	}

	if got := IndexOf(slice, "admin"); got != -1 {
		t.Errorf("IndexOf(admin) = %v, want -1", got)
	}
}

func TestWrapError(t *testing.T) {
	wrapped := WrapError(ErrNoSession, "additional context")

	if wrapped == nil {
		t.Fatal("WrapError should return non-nil error")
	}

	if !strings.Contains(wrapped.Error(), "additional context") {
		t.Error("WrapError should include additional context")
	}

	if !strings.Contains(wrapped.Error(), ErrNoSession.Error()) {
		t.Error("WrapError should include original error message")
	}

	if WrapError(nil, "context") != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestRotatingFile_RotatesOnOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	if err := os.WriteFile(path, []byte(strings.Repeat("x", 1024*1024)), 0600); err != nil {
		t.Fatal(err)
	}

	f, err := openRotatingFile(path, 512*1024, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	info, err := os.Stat(path)
	if err != nil || info.Size() != 0 {
		t.Errorf("log file should be empty after rotation, got %v, %v", info, err)
	}
	if matches, _ := filepath.Glob(path + ".*.gz"); len(matches) != 1 {
		t.Errorf("backups = %v, want one gzipped file", matches)
	}
}

func TestRotatingFile_RotatesOnWriteAndPrunes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	f, err := openRotatingFile(path, 100, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	line := []byte(strings.Repeat("y", 60) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := f.Write(line); err != nil {
			t.Fatal(err)
		}
		// Backup names have millisecond resolution.
		time.Sleep(2 * time.Millisecond)
	}

	backups, _ := filepath.Glob(path + ".*")
	if len(backups) != 2 {
		t.Errorf("backups = %d, want 2", len(backups))
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() != int64(len(line)) {
		t.Errorf("current file should hold the last line, got %v, %v", info, err)
	}
}

func TestRotatingFile_RefusesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "test.log")
	if err := os.WriteFile(target, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skip("symlinks unsupported:", err)
	}

	if _, err := openRotatingFile(link, 1024, 1); err == nil {
		t.Error("openRotatingFile should refuse a symlinked log file")
	}
}

func TestAppLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := newAppLogger(io.Discard, LevelInfo)
	if err := logger.EnableFileLogging(path, defaultMaxFileSize, defaultMaxBackups); err != nil {
		t.Fatal(err)
	}

	logger.Warn("written to %s", "file")
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"message":"written to file"`) {
		t.Errorf("log file = %q, want the JSON entry", data)
	}
}

func TestEventNames(t *testing.T) {
	seen := map[string]bool{}
	for _, ev := range Events() {
		name := ev.String()
		if name == "" || name == "unknown" {
			t.Errorf("event %d has no name", ev)
		}
		if seen[name] {
			t.Errorf("duplicate event name %q", name)
		}
		seen[name] = true
	}

	if got := Event(-1).String(); got != "unknown" {
		t.Errorf("Event(-1).String() = %v, want unknown", got)
	}
}

// Helper to create a test logger writing JSON lines to buf.
func newTestLogger(buf *bytes.Buffer, level LogLevel) *AppLogger {
	return newAppLogger(buf, level)
}
