package app

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTidyHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&tidyHandler{w: &buf, opID: "20250310T090000Z-test"})

	logger.Info("apply finished", "entry", "e1", "operations", 3)

	line := strings.TrimSuffix(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 6 {
		t.Fatalf("field count = %d, want 6: %q", len(fields), line)
	}
	if fields[1] != "INFO" {
		t.Errorf("level = %q, want INFO", fields[1])
	}
	if fields[2] != "20250310T090000Z-test" {
		t.Errorf("opID = %q", fields[2])
	}
	if fields[3] != "apply finished" {
		t.Errorf("message = %q", fields[3])
	}
	if fields[4] != "entry=e1" || fields[5] != "operations=3" {
		t.Errorf("attrs = %q %q", fields[4], fields[5])
	}
}

func TestTidyHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(&tidyHandler{w: &buf, opID: "op"})
	logger := base.With("dir", "/base")

	logger.Warn("move failed", "error", "boom")

	line := buf.String()
	if !strings.Contains(line, "\tdir=/base\t") {
		t.Errorf("pre-set attr missing: %q", line)
	}
	if !strings.Contains(line, "\terror=boom") {
		t.Errorf("record attr missing: %q", line)
	}
	if !strings.Contains(line, "\tWARN\t") {
		t.Errorf("level missing: %q", line)
	}
}

func TestNewLogger(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(logDir, "op-1")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello")

	data, err := os.ReadFile(filepath.Join(logDir, "tidy.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\tINFO\top-1\thello") {
		t.Errorf("log line = %q", data)
	}
}
