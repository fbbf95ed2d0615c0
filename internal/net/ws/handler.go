package ws

import (
	"context"
	"log"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"betterhud/server/internal/game"
	"betterhud/server/internal/net/intake"
	"betterhud/server/internal/net/proto"
	"betterhud/server/internal/telemetry"
)

// Players is the part of the world sessions bind to.
type Players interface {
	Player(id uuid.UUID) (*game.Player, bool)
	Leave(ctx context.Context, id uuid.UUID, reason string) bool
}

type HandlerConfig struct {
	Players Players
	Intake  intake.Context
	Logger  telemetry.Logger
	// Context is passed to everything a session triggers. It outlives the
	// HTTP request that opened the session.
	Context      context.Context
	WriteTimeout time.Duration
	// OnSession runs after a session was bound to its player, before any
	// client message is read.
	OnSession func(ctx context.Context, player *game.Player)
}

type Handler struct {
	cfg      HandlerConfig
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		cfg:      cfg,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and serves the player's session until the
// connection closes. The player leaves the world when its current session
// ends.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	rawID := r.URL.Query().Get("id")
	if rawID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}
	playerID, err := uuid.Parse(rawID)
	if err != nil {
		nethttp.Error(w, "invalid id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", playerID, err)
		return
	}
	session := newSession(conn, h.cfg.WriteTimeout)

	var player *game.Player
	if h.cfg.Players != nil {
		player, _ = h.cfg.Players.Player(playerID)
	}
	if player == nil {
		session.Close(websocket.ClosePolicyViolation, "unknown player")
		return
	}

	if previous := player.Attach(session); previous != nil {
		if old, ok := previous.(*Session); ok {
			old.Close(websocket.CloseNormalClosure, "replaced by a new session")
		}
	}

	ctx := h.cfg.Context
	if h.cfg.OnSession != nil {
		h.cfg.OnSession(ctx, player)
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.disconnect(ctx, player, session)
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", playerID, err)
			continue
		}

		reply, err := intake.StageClientMessage(ctx, h.cfg.Intake, player, msg)
		if err != nil {
			h.logger.Printf("%s message from %s failed: %v", msg.Type, playerID, err)
			continue
		}
		if reply == nil {
			continue
		}
		if err := session.WriteJSON(reply); err != nil {
			h.disconnect(ctx, player, session)
			return
		}
	}
}

func (h *Handler) disconnect(ctx context.Context, player *game.Player, session *Session) {
	session.Close(websocket.CloseNormalClosure, "")
	if !player.Detach(session) {
		// A newer session took over.
		return
	}
	if h.cfg.Players != nil {
		h.cfg.Players.Leave(ctx, player.ID(), "connection closed")
	}
}
