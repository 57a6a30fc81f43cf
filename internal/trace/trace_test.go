package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStreamTracerLevels(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)

	batch := Begin(tr, ScopeBatch, "compile", 0)
	file := Begin(tr, ScopeFile, "src/index.tes", batch.ID())
	file.End("")
	batch.WithExtra("files", "3").End("ok")

	out := buf.String()
	if !strings.Contains(out, "→ compile") || !strings.Contains(out, "← compile (ok) {files=3}") {
		t.Fatalf("batch span missing:\n%s", out)
	}
	if strings.Contains(out, "index.tes") {
		t.Fatalf("file scope should be filtered at phase level:\n%s", out)
	}
}

func TestErrorLevelKeepsFailedSpansOnly(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelError, FormatNDJSON)

	Begin(tr, ScopeFile, "ok.tes", 0).End("")
	Begin(tr, ScopeFile, "bad.tes", 0).Fail(errors.New("bad syntax")).End("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want one line, got %d:\n%s", len(lines), buf.String())
	}
	var ev jsonEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Name != "bad.tes" || ev.Kind != "end" || ev.Extra["error"] != "bad syntax" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestRingTracerWraps(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for i := 0; i < 5; i++ {
		Point(ring, ScopeHook, "style", string(rune('a'+i)), 0)
	}
	snap := ring.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("want 3 events, got %d", len(snap))
	}
	if snap[0].Detail != "c" || snap[2].Detail != "e" {
		t.Fatalf("want oldest-first c..e, got %q..%q", snap[0].Detail, snap[2].Detail)
	}
}

func TestNewWithRing(t *testing.T) {
	var buf bytes.Buffer
	tr, ring, err := New(Config{Level: LevelDetail, Output: &buf, RingSize: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Begin(tr, ScopeDriver, "serve", 0).End("")
	if ring == nil || len(ring.Snapshot()) != 2 {
		t.Fatalf("ring should hold both events")
	}
	if strings.Count(buf.String(), "serve") != 2 {
		t.Fatalf("stream should hold both events:\n%s", buf.String())
	}
	var dump bytes.Buffer
	if err := ring.Dump(&dump, FormatNDJSON); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if strings.Count(dump.String(), "\n") != 2 {
		t.Fatalf("dump: %q", dump.String())
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.ndjson")
	tr, _, err := New(Config{Level: LevelPhase, Path: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Begin(tr, ScopeDriver, "build", 0).End("")
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "{") {
		t.Fatalf("auto format should pick ndjson, got %q", data)
	}
}

func TestOffIsNop(t *testing.T) {
	tr, ring, err := New(Config{Level: LevelOff})
	if err != nil || tr != Nop || ring != nil {
		t.Fatalf("want Nop, got %v %v %v", tr, ring, err)
	}
	if Begin(tr, ScopeDriver, "x", 0).ID() != 0 {
		t.Fatalf("nop spans should have no id")
	}
}

func TestContextPropagation(t *testing.T) {
	ring := NewRingTracer(8, LevelDetail)
	ctx := WithTracer(context.Background(), ring)
	if FromContext(ctx) != ring {
		t.Fatalf("tracer not found in context")
	}
	if FromContext(context.Background()) != Nop {
		t.Fatalf("missing tracer should be Nop")
	}
	s := Begin(ring, ScopeBatch, "compile", 0)
	ctx = WithSpan(ctx, s)
	if CurrentSpan(ctx) != s.ID() {
		t.Fatalf("span not found in context")
	}
}

func TestHeartbeat(t *testing.T) {
	ring := NewRingTracer(16, LevelPhase)
	hb := StartHeartbeat(ring, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	hb.Stop()
	hb.Stop()
	n := len(ring.Snapshot())
	if n == 0 {
		t.Fatalf("expected heartbeats")
	}
	time.Sleep(15 * time.Millisecond)
	if len(ring.Snapshot()) != n {
		t.Fatalf("heartbeat kept running after Stop")
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatalf("heartbeat on Nop should be nil")
	}
}

func TestParse(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel: %v %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
	if f, err := ParseFormat("json"); err != nil || f != FormatNDJSON {
		t.Fatalf("ParseFormat: %v %v", f, err)
	}
}
