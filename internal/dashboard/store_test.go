package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLogStoreCapturesEntries(t *testing.T) {
	store := newLogStore(3)
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Unix(10, 0)
	entry.Level = logrus.WarnLevel
	entry.Message = "warning"
	entry.Data = logrus.Fields{"component": "sessions", "error": errors.New("timeout")}

	if err := store.Fire(entry); err != nil {
		t.Fatalf("store.Fire returned error: %v", err)
	}

	snapshot := store.snapshot(logrus.TraceLevel)
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(snapshot))
	}
	if snapshot[0].Component != "sessions" || snapshot[0].Fields["error"] != "timeout" {
		t.Fatalf("unexpected snapshot data: %#v", snapshot[0])
	}
	if _, ok := snapshot[0].Fields["component"]; ok {
		t.Fatalf("component should not be repeated in fields")
	}
}

func TestLogStoreKeepsNewestInOrder(t *testing.T) {
	store := newLogStore(2)
	for i := 0; i < 5; i++ {
		entry := logrus.NewEntry(logrus.New())
		entry.Message = "msg"
		entry.Level = logrus.InfoLevel
		entry.Data = logrus.Fields{"index": i}
		if err := store.Fire(entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snapshot := store.snapshot(logrus.TraceLevel)
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 entries after wrap, got %d", len(snapshot))
	}
	if snapshot[0].Fields["index"] != 3 || snapshot[1].Fields["index"] != 4 {
		t.Fatalf("unexpected retention order: %v, %v", snapshot[0].Fields, snapshot[1].Fields)
	}
}

func TestLogStoreLevelFilterAndClose(t *testing.T) {
	store := newLogStore(4)
	for _, lvl := range []logrus.Level{logrus.DebugLevel, logrus.InfoLevel, logrus.ErrorLevel} {
		entry := logrus.NewEntry(logrus.New())
		entry.Level = lvl
		entry.Message = lvl.String()
		_ = store.Fire(entry)
	}

	if got := store.snapshot(logrus.WarnLevel); len(got) != 1 || got[0].Message != "error" {
		t.Fatalf("expected only the error entry, got %#v", got)
	}

	store.close()
	entry := logrus.NewEntry(logrus.New())
	entry.Message = "ignored"
	_ = store.Fire(entry)
	if got := store.snapshot(logrus.TraceLevel); len(got) != 3 {
		t.Fatalf("store accepted entries after close")
	}
}
