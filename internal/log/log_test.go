package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInit_StderrLevels(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Stderr: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("debug should be suppressed without Verbose")
	}
	if strings.Contains(out, "info message") {
		t.Error("info should be suppressed without Verbose")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn should be written")
	}
	if !strings.Contains(out, "error message") {
		t.Error("error should be written")
	}
}

func TestInit_Verbose(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Verbose: true, Stderr: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Debug("debug message")
	if !strings.Contains(buf.String(), "debug message") {
		t.Error("debug should be written with Verbose")
	}
}

func TestInit_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{JSONFormat: true, Stderr: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Warn("structured", "key", "value")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("stderr output is not JSON: %v", err)
	}
	if rec["key"] != "value" {
		t.Errorf("key = %v, want %q", rec["key"], "value")
	}
}

func TestInit_DebugFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if err := Init(Options{Stderr: &buf, DebugDir: dir}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Close()

	Debug("file only")

	name := time.Now().Format("2006-01-02") + ".jsonl"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading debug file: %v", err)
	}
	if !strings.Contains(string(data), "file only") {
		t.Error("debug record should land in the file even when stderr suppresses it")
	}
	if strings.Contains(buf.String(), "file only") {
		t.Error("debug record should not reach stderr")
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "2000-01-01.jsonl")
	if err := os.WriteFile(old, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	current := filepath.Join(dir, time.Now().Format("2006-01-02")+".jsonl")
	if err := os.WriteFile(current, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	Cleanup(dir, 7)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old log file should be removed")
	}
	if _, err := os.Stat(current); err != nil {
		t.Error("current log file should be kept")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-log files should be untouched")
	}
}
