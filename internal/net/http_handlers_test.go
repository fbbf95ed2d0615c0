package net

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"betterhud/server/internal/command"
	"betterhud/server/internal/game"
	"betterhud/server/internal/hud"
	"betterhud/server/internal/net/proto"
	"betterhud/server/internal/ui"
	"betterhud/server/logging"
)

type stubHUD struct{ diag hud.Diagnostics }

func (s stubHUD) Diagnostics() hud.Diagnostics { return s.diag }

type stubEvents struct{ stats logging.RouterStats }

func (s stubEvents) Stats() logging.RouterStats { return s.stats }

type countedSink struct{ sent uint64 }

func (countedSink) SendUI(ui.Update) error { return nil }
func (s countedSink) Sent() uint64         { return s.sent }

type noOverlays struct{}

func (noOverlays) ShowOverlay(context.Context, uuid.UUID) bool  { return false }
func (noOverlays) HideOverlay(context.Context, uuid.UUID) bool  { return false }
func (noOverlays) ForceRefresh(context.Context, uuid.UUID) bool { return false }
func (noOverlays) State(uuid.UUID) hud.State                    { return hud.StateDisconnected }
func (noOverlays) VisibleFor(uuid.UUID) (time.Duration, bool)   { return 0, false }

func TestHTTPJoinCreatesPlayer(t *testing.T) {
	world := game.NewWorld(game.DefaultConfig())
	handler := NewHTTPHandler(HTTPHandlerConfig{World: world})

	req := httptest.NewRequest(http.MethodPost, "/join", bytes.NewReader([]byte(`{"name":"alice"}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}

	var join proto.JoinResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &join); err != nil {
		t.Fatalf("failed to decode join payload: %v", err)
	}
	id, err := uuid.Parse(join.ID)
	if err != nil {
		t.Fatalf("expected uuid player id, got %q", join.ID)
	}
	if player, ok := world.Player(id); !ok || player.DisplayName() != "alice" || join.Name != "alice" {
		t.Fatalf("expected alice to be in the world, got %+v", join)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/join", nil))
	if resp.Code != http.StatusOK || world.Count() != 2 {
		t.Fatalf("expected an empty body to join with a generated name, code=%d", resp.Code)
	}
}

func TestHTTPMethodAndPayloadChecks(t *testing.T) {
	world := game.NewWorld(game.DefaultConfig())
	handler := NewHTTPHandler(HTTPHandlerConfig{World: world})

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"join get", http.MethodGet, "/join", "", http.StatusMethodNotAllowed},
		{"join bad body", http.MethodPost, "/join", "{", http.StatusBadRequest},
		{"command get", http.MethodGet, "/command", "", http.StatusMethodNotAllowed},
		{"command unavailable", http.MethodPost, "/command", `{"line":"hide"}`, http.StatusServiceUnavailable},
		{"schema post", http.MethodPost, "/schema/ui", "", http.StatusMethodNotAllowed},
		{"pprof disabled", http.MethodGet, "/debug/pprof/", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestHTTPDiagnosticsAggregatesSources(t *testing.T) {
	world := game.NewWorld(game.DefaultConfig())
	player, _ := world.Join("bob")
	player.Attach(countedSink{sent: 7})
	metrics := &logging.Metrics{}
	metrics.TelemetryAdd("hud.sweeps", 3)

	handler := NewHTTPHandler(HTTPHandlerConfig{
		World:   world,
		HUD:     stubHUD{diag: hud.Diagnostics{Sweeps: 3, Visible: 1}},
		Metrics: metrics,
		Events:  stubEvents{stats: logging.RouterStats{EventsTotal: 9}},
		Clock:   logging.ClockFunc(func() time.Time { return time.UnixMilli(1234) }),
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		Status     string `json:"status"`
		ServerTime int64  `json:"serverTime"`
		Players    []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Session bool   `json:"session"`
			Sent    uint64 `json:"sent"`
		} `json:"players"`
		HUD struct {
			Sweeps  uint64 `json:"sweeps"`
			Visible int    `json:"visible"`
		} `json:"hud"`
		Telemetry map[string]uint64 `json:"telemetry"`
		Events    struct {
			EventsTotal uint64 `json:"eventsTotal"`
		} `json:"events"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.ServerTime != 1234 {
		t.Fatalf("unexpected header fields %+v", payload)
	}
	if len(payload.Players) != 1 || payload.Players[0].ID != player.ID().String() {
		t.Fatalf("expected bob in players, got %+v", payload.Players)
	}
	if !payload.Players[0].Session || payload.Players[0].Sent != 7 {
		t.Fatalf("expected bob's session frame count, got %+v", payload.Players[0])
	}
	if payload.HUD.Sweeps != 3 || payload.HUD.Visible != 1 {
		t.Fatalf("unexpected hud diagnostics %+v", payload.HUD)
	}
	if payload.Telemetry["hud.sweeps"] != 3 || payload.Events.EventsTotal != 9 {
		t.Fatalf("unexpected telemetry %v / %+v", payload.Telemetry, payload.Events)
	}
}

func TestHTTPConsoleCommandIsRejected(t *testing.T) {
	dispatcher := command.NewDispatcher(noOverlays{}, nil, command.DefaultConfig(), nil)
	handler := NewHTTPHandler(HTTPHandlerConfig{Commands: dispatcher})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(`{"line":"/betterhud hide"}`)))
	var reply proto.CommandReply
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if reply.Text != "[BetterHUD] Only players can use this command." {
		t.Fatalf("unexpected console reply %q", reply.Text)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(`{"line":"/betterhud"}`)))
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if reply.Text != command.HelpText {
		t.Fatalf("expected help text, got %q", reply.Text)
	}
}

func TestHTTPServesUISchema(t *testing.T) {
	handler := NewHTTPHandler(HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/schema/ui", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var schema map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &schema); err != nil {
		t.Fatalf("failed to decode schema: %v", err)
	}
	if schema["title"] != "Overlay UI Update" {
		t.Fatalf("unexpected schema title %v", schema["title"])
	}
}
