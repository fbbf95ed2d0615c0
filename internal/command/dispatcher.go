package command

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"betterhud/server/internal/hud"
	"betterhud/server/internal/telemetry"
)

// Name is the root command handled by the dispatcher.
const Name = "betterhud"

const (
	replyPrefix      = "[BetterHUD] "
	replyOnlyPlayers = replyPrefix + "Only players can use this command."
	replyNoPlayer    = replyPrefix + "Player not found for this command sender."
	replyShown       = replyPrefix + "HUD is now visible."
	replyHidden      = replyPrefix + "HUD is now hidden."
	replyRefreshed   = replyPrefix + "HUD refreshed."
	replyNotVisible  = replyPrefix + "HUD is not visible."
	replyThrottled   = replyPrefix + "Slow down."
)

// HelpText is sent for the bare command and unknown subcommands.
var HelpText = strings.Join([]string{
	"/betterhud show",
	"/betterhud on",
	"/betterhud hide",
	"/betterhud off",
	"/betterhud refresh",
	"/betterhud status",
}, "\n")

// Overlays is the part of the overlay service commands drive.
type Overlays interface {
	ShowOverlay(ctx context.Context, id uuid.UUID) bool
	HideOverlay(ctx context.Context, id uuid.UUID) bool
	ForceRefresh(ctx context.Context, id uuid.UUID) bool
	State(id uuid.UUID) hud.State
	VisibleFor(id uuid.UUID) (time.Duration, bool)
}

// Players reports whether an id belongs to a connected player.
type Players interface {
	Connected(id uuid.UUID) bool
}

// PlayersFunc adapts a function to Players.
type PlayersFunc func(id uuid.UUID) bool

func (f PlayersFunc) Connected(id uuid.UUID) bool { return f != nil && f(id) }

// Sender identifies who issued a command. Console senders have no player id.
type Sender struct {
	Name     string
	PlayerID uuid.UUID
	IsPlayer bool
}

// Config controls per-sender throttling.
type Config struct {
	// Interval is the steady state spacing between two commands of one
	// sender.
	Interval time.Duration
	Burst    int
}

func DefaultConfig() Config {
	return Config{Interval: 250 * time.Millisecond, Burst: 4}
}

// Dispatcher parses /betterhud command lines and routes them to the overlay
// service.
type Dispatcher struct {
	overlays Overlays
	players  Players
	cfg      Config
	logger   telemetry.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewDispatcher(overlays Overlays, players Players, cfg Config, logger telemetry.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if logger == nil {
		logger = telemetry.Discard()
	}
	return &Dispatcher{
		overlays: overlays,
		players:  players,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Dispatch executes line, with or without the leading "/betterhud", and
// returns the reply for the sender.
func (d *Dispatcher) Dispatch(ctx context.Context, sender Sender, line string) string {
	args := strings.Fields(strings.TrimSpace(line))
	if len(args) > 0 && strings.EqualFold(strings.TrimPrefix(args[0], "/"), Name) {
		args = args[1:]
	}
	if len(args) == 0 {
		return HelpText
	}

	if !d.allow(sender) {
		return replyThrottled
	}

	sub := strings.ToLower(args[0])
	switch sub {
	case "show", "on", "hide", "off", "refresh", "status":
	default:
		return HelpText
	}

	if !sender.IsPlayer {
		return replyOnlyPlayers
	}
	if d.players != nil && !d.players.Connected(sender.PlayerID) {
		return replyNoPlayer
	}

	id := sender.PlayerID
	switch sub {
	case "show", "on":
		if d.overlays.ShowOverlay(ctx, id) {
			d.logger.Printf("[command] %s showed the HUD", sender.Name)
		}
		return replyShown
	case "hide", "off":
		if d.overlays.HideOverlay(ctx, id) {
			d.logger.Printf("[command] %s hid the HUD", sender.Name)
		}
		return replyHidden
	case "refresh":
		if !d.overlays.ForceRefresh(ctx, id) {
			return replyNotVisible
		}
		return replyRefreshed
	default:
		return d.status(id)
	}
}

func (d *Dispatcher) status(id uuid.UUID) string {
	state := d.overlays.State(id)
	switch state {
	case hud.StateVisible:
		if visibleFor, ok := d.overlays.VisibleFor(id); ok {
			return replyPrefix + "HUD is visible for " + hud.FormatDuration(visibleFor) + "."
		}
		return replyPrefix + "HUD is visible."
	case hud.StateHidden:
		return replyPrefix + "HUD is hidden."
	case hud.StatePendingCreate:
		return replyPrefix + "HUD is loading."
	default:
		return replyPrefix + "HUD is not active."
	}
}

func (d *Dispatcher) allow(sender Sender) bool {
	key := sender.Name
	if sender.IsPlayer {
		key = sender.PlayerID.String()
	}
	d.mu.Lock()
	limiter, ok := d.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(d.cfg.Interval), d.cfg.Burst)
		d.limiters[key] = limiter
	}
	d.mu.Unlock()
	return limiter.Allow()
}

// Forget drops the limiter of a player that left.
func (d *Dispatcher) Forget(id uuid.UUID) {
	d.mu.Lock()
	delete(d.limiters, id.String())
	d.mu.Unlock()
}
