package logger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestWithComponent(t *testing.T) {
	log := New()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := New()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestWithRunAndCollector(t *testing.T) {
	entry := New().WithComponent("pipeline").WithRun("run-1").WithCollector("jobs")
	if entry.Entry.Data[FieldRunID] != "run-1" || entry.Entry.Data[FieldCollector] != "jobs" {
		t.Fatalf("run fields missing: %v", entry.Entry.Data)
	}
	if _, ok := New().WithComponent("x").WithRun("").Entry.Data[FieldRunID]; ok {
		t.Fatalf("empty run id should not be attached")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"":       logrus.InfoLevel,
		"report": logrus.InfoLevel,
		"DEBUG":  logrus.DebugLevel,
		"warn":   logrus.WarnLevel,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func logAt(log *Log) {
	log.WithComponent("caller").Warn("where")
}

func TestCallerPointsOutsideLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	log := New()
	log.SetOutput(&buf)
	logAt(log)

	if !strings.Contains(buf.String(), `"file":"logger_test.go:`) {
		t.Fatalf("caller not resolved to test file: %s", buf.String())
	}
}

func TestReportCountsWarningsAndErrors(t *testing.T) {
	ResetReport()
	t.Cleanup(ResetReport)

	log := New()
	log.SetOutput(io.Discard)
	entry := log.WithComponent("sessions")
	entry.Warn("fallback")
	entry.Warn("fallback again")
	log.WithComponent("ledger").Error("read failed")

	got := Report()
	if len(got) != 2 {
		t.Fatalf("expected 2 components, got %v", got)
	}
	if got[0].Component != "ledger" || got[0].Errors != 1 || got[0].Warnings != 0 {
		t.Fatalf("unexpected ledger report: %+v", got[0])
	}
	if got[1].Component != "sessions" || got[1].Warnings != 2 {
		t.Fatalf("unexpected sessions report: %+v", got[1])
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "clawdash.log")

	log := New()
	if err := log.Configure("debug", "text", path, 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	log.WithComponent("test").Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("log file missing message: %s", data)
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	if err := New().Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}
