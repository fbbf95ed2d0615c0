package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"betterhud/server/internal/game"
	"betterhud/server/internal/hud"
	"betterhud/server/internal/net/proto"
	"betterhud/server/internal/telemetry"
	"betterhud/server/internal/ui"
	"betterhud/server/logging"
	loggingSinks "betterhud/server/logging/sinks"
	overlaylog "betterhud/server/logging/overlay"
)

type testServer struct {
	app  *App
	http *httptest.Server
}

func startApp(t *testing.T) *testServer {
	t.Helper()
	return startAppWith(t, nil)
}

func startAppWith(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = telemetry.Discard()
	cfg.Logging.EnabledSinks = []string{"memory"}
	cfg.HUD.CreateDelay = 10 * time.Millisecond
	cfg.HUD.SweepInterval = 20 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.HUD().Run(ctx)
	}()
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		a.Close(context.Background())
	})
	return &testServer{app: a, http: srv}
}

func (s *testServer) join(t *testing.T, name string) proto.JoinResponse {
	t.Helper()
	resp, err := http.Post(s.http.URL+"/join", "application/json", strings.NewReader(`{"name":"`+name+`"}`))
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	defer resp.Body.Close()
	var join proto.JoinResponse
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		t.Fatalf("failed to decode join: %v", err)
	}
	return join
}

func (s *testServer) dial(t *testing.T, id string) *websocket.Conn {
	t.Helper()
	parsed, _ := url.Parse(s.http.URL)
	parsed.Scheme = "ws"
	parsed.Path = "/ws"
	parsed.RawQuery = url.Values{"id": []string{id}}.Encode()
	conn, resp, err := websocket.DefaultDialer.Dial(parsed.String(), nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("failed to open websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(msg map[string]any, raw []byte) bool) []byte {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("no matching frame before deadline: %v", err)
		}
		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("failed to decode frame %s: %v", raw, err)
		}
		if match(msg, raw) {
			return raw
		}
	}
}

func uiField(msg map[string]any, selector string) (any, bool) {
	if msg["type"] != ui.MessageTypeUI {
		return nil, false
	}
	fields, ok := msg["fields"].(map[string]any)
	if !ok {
		return nil, false
	}
	value, ok := fields[selector]
	return value, ok
}

func commandReply(text string) func(map[string]any, []byte) bool {
	return func(msg map[string]any, _ []byte) bool {
		if msg["type"] != proto.TypeCommandReply {
			return false
		}
		return msg["text"] == text
	}
}

func TestOverlayLifecycleOverWebsocket(t *testing.T) {
	s := startApp(t)
	join := s.join(t, "alice")
	id := uuid.MustParse(join.ID)
	conn := s.dial(t, join.ID)

	if err := conn.WriteJSON(proto.ClientMessage{Type: proto.TypeReady, Seq: 1}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readUntil(t, conn, func(msg map[string]any, _ []byte) bool {
		head, _ := uiField(msg, hud.ArmorValueSelector("Head"))
		arrows, _ := uiField(msg, "#ArrowsValue.Text")
		return msg["full"] == true && head == " 100%" && arrows == "72"
	})
	if state := s.app.HUD().State(id); state != hud.StateVisible {
		t.Fatalf("expected visible overlay, got %s", state)
	}

	hide := proto.ClientMessage{Type: proto.TypeCommand, Seq: 2, Line: "/betterhud hide"}
	if err := conn.WriteJSON(hide); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readUntil(t, conn, commandReply("[BetterHUD] HUD is now hidden."))

	if err := conn.WriteJSON(proto.ClientMessage{Type: proto.TypeCommand, Seq: 3, Line: "/betterhud status"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readUntil(t, conn, commandReply("[BetterHUD] HUD is hidden."))

	if err := conn.WriteJSON(proto.ClientMessage{Type: proto.TypeCommand, Seq: 4, Line: "/betterhud on"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readUntil(t, conn, commandReply("[BetterHUD] HUD is now visible."))

	damage := &game.Action{Name: game.ActionDamage, Section: "armor", Slot: 1, Amount: 160}
	if err := conn.WriteJSON(proto.ClientMessage{Type: proto.TypeAction, Seq: 5, Action: damage}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readUntil(t, conn, func(msg map[string]any, _ []byte) bool {
		chest, ok := uiField(msg, hud.ArmorValueSelector("Chest"))
		return ok && chest == " 50%"
	})

	resp, err := http.Get(s.http.URL + "/diagnostics")
	if err != nil {
		t.Fatalf("diagnostics failed: %v", err)
	}
	var diag struct {
		HUD hud.Diagnostics `json:"hud"`
	}
	err = json.NewDecoder(resp.Body).Decode(&diag)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if diag.HUD.Visible != 1 || len(diag.HUD.Overlays) != 1 || diag.HUD.Overlays[0].Name != "alice" {
		t.Fatalf("unexpected diagnostics %+v", diag.HUD)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for s.app.HUD().State(id) != hud.StateDisconnected || s.app.World().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected overlay and player to be released after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := s.app.Overlays().Composite(id); ok {
		t.Fatalf("expected the shared page to be forgotten")
	}

	if err := s.app.Router().Close(context.Background()); err != nil {
		t.Fatalf("router close failed: %v", err)
	}
	memory, ok := s.app.Router().Sink("memory").(*loggingSinks.MemorySink)
	if !ok {
		t.Fatalf("expected memory sink to be configured")
	}
	for _, eventType := range []logging.EventType{overlaylog.EventCreated, overlaylog.EventHidden, overlaylog.EventShown, overlaylog.EventRemoved} {
		if len(memory.OfType(eventType)) != 1 {
			t.Fatalf("expected one %s event, got %d", eventType, len(memory.OfType(eventType)))
		}
	}
}

func TestLeaveDetachesOverlayWithoutFailures(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	s := startAppWith(t, func(cfg *Config) {
		cfg.Logger = telemetry.LoggerFunc(func(format string, args ...any) {
			mu.Lock()
			lines = append(lines, fmt.Sprintf(format, args...))
			mu.Unlock()
		})
	})
	join := s.join(t, "nina")
	id := uuid.MustParse(join.ID)
	conn := s.dial(t, join.ID)
	if err := conn.WriteJSON(proto.ClientMessage{Type: proto.TypeReady}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readUntil(t, conn, func(msg map[string]any, _ []byte) bool {
		return msg["type"] == ui.MessageTypeUI && msg["full"] == true
	})
	deadline := time.Now().Add(3 * time.Second)
	for s.app.HUD().State(id) != hud.StateVisible {
		if time.Now().After(deadline) {
			t.Fatalf("expected the overlay to become visible")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !s.app.World().Leave(context.Background(), id, "kicked") {
		t.Fatalf("expected the player to leave")
	}
	if state := s.app.HUD().State(id); state != hud.StateDisconnected {
		t.Fatalf("expected the overlay to be released, got %s", state)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, line := range lines {
		if strings.Contains(line, "[hud]") && strings.Contains(line, "overlay of") {
			t.Fatalf("expected leaving to be silent, got %q", line)
		}
	}
}

func TestReconnectResumesOverlayPage(t *testing.T) {
	s := startApp(t)
	join := s.join(t, "bob")
	first := s.dial(t, join.ID)

	if err := first.WriteJSON(proto.ClientMessage{Type: proto.TypeReady}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readUntil(t, first, func(msg map[string]any, _ []byte) bool {
		_, ok := uiField(msg, hud.ArmorValueSelector("Head"))
		return ok && msg["full"] == true
	})

	second := s.dial(t, join.ID)
	raw := readUntil(t, second, func(msg map[string]any, _ []byte) bool {
		return msg["type"] == ui.MessageTypeUI && msg["full"] == true
	})
	update, err := ui.Decode(raw)
	if err != nil {
		t.Fatalf("failed to decode resumed page: %v", err)
	}
	if text, _ := update.Text(hud.ArmorValueSelector("Feet")); text != " 100%" {
		t.Fatalf("expected resumed page to carry armor values, got %s", raw)
	}
	if s.app.World().Count() != 1 {
		t.Fatalf("expected reconnect to keep the player")
	}
}

func TestNewRejectsUnopenableJSONLog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = telemetry.Discard()
	cfg.Logging.EnabledSinks = []string{"json"}
	cfg.Logging.JSON.FilePath = t.TempDir() + "/missing/dir/events.jsonl"
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected an unopenable json log path to fail")
	}
}
