package adminhttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tmq/pkg/broker"
	"github.com/aussiebroadwan/tmq/pkg/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleHealthzReportsOK(t *testing.T) {
	s := NewServer("127.0.0.1:0", testLogger(), nil, 50, 10)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("response missing uptime field")
	}
}

func TestHandleStatsWithNilRegistryIsEmpty(t *testing.T) {
	s := NewServer("127.0.0.1:0", testLogger(), nil, 50, 10)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.handleStats(rec, req)

	var body struct {
		Patterns []patternStat `json:"patterns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Patterns) != 0 {
		t.Errorf("patterns = %v, want empty", body.Patterns)
	}
}

func TestHandleStatsReflectsRegistry(t *testing.T) {
	reg := broker.NewRegistry()
	pattern := wire.HashPattern("admin", "stats")
	addr := wire.Address{Family: wire.IPv4, Host: [8]uint16{49320, 1}, Port: 9000}
	frame := wire.Frame{Type: wire.SUB | wire.CACHE | wire.BROKER, Pattern: pattern, Payload: wire.PackAddress(addr)}
	if err := reg.HandleFrame(context.Background(), frame); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	s := NewServer("127.0.0.1:0", testLogger(), reg, 50, 10)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.handleStats(rec, req)

	var body struct {
		Patterns []patternStat `json:"patterns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Patterns) != 1 {
		t.Fatalf("patterns = %v, want one entry", body.Patterns)
	}
	if body.Patterns[0].Subscribers != 1 || body.Patterns[0].Publishers != 0 {
		t.Errorf("patterns[0] = %+v, want {Subscribers:1 Publishers:0}", body.Patterns[0])
	}
}

func TestHandleEventsStreamsRegistrationEvent(t *testing.T) {
	reg := broker.NewRegistry()
	s := NewServer("127.0.0.1:0", testLogger(), reg, 50, 10)

	srv := httptest.NewServer(http.HandlerFunc(s.handleEvents))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}

	pattern := wire.HashPattern("admin", "events")
	addr := wire.Address{Family: wire.IPv4, Host: [8]uint16{2560, 1}, Port: 9001}
	frame := wire.Frame{Type: wire.SUB | wire.CACHE | wire.BROKER, Pattern: pattern, Payload: wire.PackAddress(addr)}
	if err := reg.HandleFrame(context.Background(), frame); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	buf := make([]byte, 4096)
	var collected strings.Builder
	deadline := time.Now().Add(1500 * time.Millisecond)
	for time.Now().Before(deadline) {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			collected.Write(buf[:n])
		}
		if strings.Contains(collected.String(), "event: registration") {
			return
		}
		if err != nil {
			break
		}
	}
	t.Fatalf("did not observe a registration SSE event, got: %q", collected.String())
}
