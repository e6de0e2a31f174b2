package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(l), &m); err != nil {
			t.Fatalf("bad log line %q: %v", l, err)
		}
		out = append(out, m)
	}
	return out
}

func TestSlogBridge_CarriesContextAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Service: "geoinsights", Component: "test"}, &buf)
	log := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSession(ctx, "sess-1")
	ctx = WithOwner(ctx, "user-1")
	log.With("format", "csv").WithGroup("ingest").InfoContext(ctx, "accepted", "records", 2, "err", errors.New("none"))

	got := lines(t, &buf)
	if len(got) != 1 {
		t.Fatalf("lines=%d want 1: %s", len(got), buf.String())
	}
	l := got[0]
	want := map[string]any{
		"level": "info", "msg": "accepted", "service": "geoinsights", "component": "test",
		"request_id": "req-1", "session_id": "sess-1", "owner_id": "user-1",
		"format": "csv", "ingest.records": float64(2), "ingest.err": "none",
	}
	for k, v := range want {
		if l[k] != v {
			t.Fatalf("%s=%v want %v (line %v)", k, l[k], v, l)
		}
	}
	if _, ok := l["timestamp"]; !ok {
		t.Fatal("missing timestamp")
	}
}

func TestSlogBridge_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	log := NewSlog(&zl)

	log.Info("dropped")
	log.Debug("dropped")
	log.Warn("kept")
	log.Error("kept too")

	got := lines(t, &buf)
	if len(got) != 2 || got[0]["level"] != "warn" || got[1]["level"] != "error" {
		t.Fatalf("lines=%v", got)
	}
	Build(Config{Level: "info"}, &buf)
}

func TestNewID_Unique(t *testing.T) {
	a, b := NewID(), NewID()
	if len(a) != 16 || a == b {
		t.Fatalf("ids %q %q", a, b)
	}
}
