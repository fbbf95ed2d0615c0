package net

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	nethttp "net/http"

	"betterhud/server/internal/command"
	"betterhud/server/internal/game"
	"betterhud/server/internal/hud"
	"betterhud/server/internal/net/proto"
	"betterhud/server/internal/net/ws"
	"betterhud/server/internal/observability"
	"betterhud/server/internal/telemetry"
	"betterhud/server/internal/ui"
	"betterhud/server/logging"
)

// HUDDiagnostics reports the overlay service state.
type HUDDiagnostics interface {
	Diagnostics() hud.Diagnostics
}

// MetricsSnapshot exposes the current counters.
type MetricsSnapshot interface {
	Snapshot() map[string]uint64
}

// EventStats reports the logging router throughput.
type EventStats interface {
	Stats() logging.RouterStats
}

type HTTPHandlerConfig struct {
	World         *game.World
	HUD           HUDDiagnostics
	Metrics       MetricsSnapshot
	Events        EventStats
	Commands      *command.Dispatcher
	Sessions      *ws.Handler
	Observability observability.Config
	ClientDir     string
	Logger        telemetry.Logger
	Clock         logging.Clock
}

type playerDiagnostics struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Ready   bool   `json:"ready"`
	Session bool   `json:"session"`
	Sent    uint64 `json:"sent"`
}

type sentCounter interface {
	Sent() uint64
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		players := []playerDiagnostics{}
		if cfg.World != nil {
			for _, player := range cfg.World.Players() {
				session := player.Session()
				entry := playerDiagnostics{
					ID:      player.ID().String(),
					Name:    player.DisplayName(),
					Ready:   player.Ready(),
					Session: session != nil,
				}
				if counter, ok := session.(sentCounter); ok {
					entry.Sent = counter.Sent()
				}
				players = append(players, entry)
			}
		}
		payload := struct {
			Status     string              `json:"status"`
			ServerTime int64               `json:"serverTime"`
			Players    []playerDiagnostics `json:"players"`
			HUD        any                 `json:"hud,omitempty"`
			Telemetry  map[string]uint64   `json:"telemetry,omitempty"`
			Events     any                 `json:"events,omitempty"`
		}{
			Status:     "ok",
			ServerTime: clock.Now().UnixMilli(),
			Players:    players,
		}
		if cfg.HUD != nil {
			payload.HUD = cfg.HUD.Diagnostics()
		}
		if cfg.Metrics != nil {
			payload.Telemetry = cfg.Metrics.Snapshot()
		}
		if cfg.Events != nil {
			payload.Events = cfg.Events.Stats()
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.World == nil {
			httpError(w, "world unavailable", nethttp.StatusServiceUnavailable)
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if r.Body != nil {
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}

		player, err := cfg.World.Join(req.Name)
		if err != nil {
			logger.Printf("join failed: %v", err)
			httpError(w, "failed to join", nethttp.StatusInternalServerError)
			return
		}
		writeJSON(w, proto.NewJoinResponse(player))
	})

	mux.HandleFunc("/command", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.Commands == nil {
			httpError(w, "commands unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		var req struct {
			Line string `json:"line"`
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		reply := cfg.Commands.Dispatch(r.Context(), command.Sender{Name: "console"}, req.Line)
		writeJSON(w, proto.NewCommandReply(0, reply))
	})

	mux.HandleFunc("/schema/ui", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		schema, err := ui.Schema()
		if err != nil {
			httpError(w, "failed to build schema", nethttp.StatusInternalServerError)
			return
		}
		writeJSON(w, schema)
	})

	if cfg.Sessions != nil {
		mux.HandleFunc("/ws", cfg.Sessions.Handle)
	}

	observability.Mount(mux, cfg.Observability)

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
