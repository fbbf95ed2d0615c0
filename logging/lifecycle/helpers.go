package lifecycle

import (
	"context"

	"betterhud/server/logging"
)

const (
	// EventPlayerReady is emitted when a player's client finished loading.
	EventPlayerReady logging.EventType = "lifecycle.player_ready"
	// EventPlayerDisconnected is emitted when a player leaves the world.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
)

// PlayerReadyPayload captures the player's display name.
type PlayerReadyPayload struct {
	Name string `json:"name"`
}

// PlayerDisconnectedPayload captures the reason a player left.
type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// PlayerReady publishes a player ready event.
func PlayerReady(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload PlayerReadyPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerReady,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// PlayerDisconnected publishes a player disconnect event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload PlayerDisconnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerDisconnected,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
