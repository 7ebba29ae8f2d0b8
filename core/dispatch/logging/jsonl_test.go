package logging

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestJSONLStore_AppendQuery(t *testing.T) {
	store, err := Open("jsonl", filepath.Join(t.TempDir(), "journal.jsonl"), Rotation{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"i1", "i2", "i3"} {
		rec := LogRecord{Timestamp: base.Add(time.Duration(i) * time.Minute), IncidentID: id}
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	out, err := store.Query(context.Background(), LogQuery{Start: base.Add(30 * time.Second)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 || out[0].IncidentID != "i2" {
		t.Fatalf("unexpected records %#v", out)
	}
	out, _ = store.Query(context.Background(), LogQuery{IncidentID: "i3"})
	if len(out) != 1 {
		t.Fatalf("incident filter failed: %#v", out)
	}
}

func TestOpenBackends(t *testing.T) {
	if s, err := Open("none", "", Rotation{}); err != nil {
		t.Fatalf("none: %v", err)
	} else if _, ok := s.(NopStore); !ok {
		t.Fatalf("expected NopStore")
	}
	s, err := Open("jsonl", filepath.Join(t.TempDir(), "r.jsonl"), Rotation{MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("rotating: %v", err)
	}
	if _, ok := s.(*RotatingJSONLStore); !ok {
		t.Fatalf("expected rotating store")
	}
	_ = s.Close()
	if _, err := Open("mongo", "x", Rotation{}); err == nil || !strings.Contains(err.Error(), "mongo") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}
