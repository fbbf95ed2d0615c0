package overlay

import (
	"context"

	"betterhud/server/logging"
)

const (
	// EventCreated is emitted when a player's overlay opens and is shown.
	EventCreated logging.EventType = "overlay.created"
	// EventCreateAborted is emitted when a deferred creation finds the player gone.
	EventCreateAborted logging.EventType = "overlay.create_aborted"
	// EventCreateFailed is emitted when opening an overlay fails.
	EventCreateFailed logging.EventType = "overlay.create_failed"
	// EventShown is emitted when a hidden overlay is shown again.
	EventShown logging.EventType = "overlay.shown"
	// EventHidden is emitted when a player hides the overlay.
	EventHidden logging.EventType = "overlay.hidden"
	// EventRemoved is emitted when an overlay is torn down.
	EventRemoved logging.EventType = "overlay.removed"
	// EventRefreshFailed is emitted when rendering a section fails.
	EventRefreshFailed logging.EventType = "overlay.refresh_failed"
)

// CreatedPayload describes a freshly opened overlay.
type CreatedPayload struct {
	Name          string `json:"name"`
	Subscriptions int    `json:"subscriptions"`
}

// AbortedPayload explains why a deferred creation did not run.
type AbortedPayload struct {
	Reason string `json:"reason"`
}

// FailurePayload carries the error text of a failed creation or refresh.
type FailurePayload struct {
	Sections []string `json:"sections,omitempty"`
	Error    string   `json:"error"`
}

// RemovedPayload reports the state the overlay was torn down from.
type RemovedPayload struct {
	From string `json:"from"`
}

func Created(ctx context.Context, pub logging.Publisher, sweep uint64, actor logging.EntityRef, payload CreatedPayload) {
	publish(ctx, pub, sweep, EventCreated, logging.SeverityInfo, actor, payload)
}

func CreateAborted(ctx context.Context, pub logging.Publisher, sweep uint64, actor logging.EntityRef, payload AbortedPayload) {
	publish(ctx, pub, sweep, EventCreateAborted, logging.SeverityDebug, actor, payload)
}

func CreateFailed(ctx context.Context, pub logging.Publisher, sweep uint64, actor logging.EntityRef, payload FailurePayload) {
	publish(ctx, pub, sweep, EventCreateFailed, logging.SeverityError, actor, payload)
}

func Shown(ctx context.Context, pub logging.Publisher, sweep uint64, actor logging.EntityRef) {
	publish(ctx, pub, sweep, EventShown, logging.SeverityInfo, actor, nil)
}

func Hidden(ctx context.Context, pub logging.Publisher, sweep uint64, actor logging.EntityRef) {
	publish(ctx, pub, sweep, EventHidden, logging.SeverityInfo, actor, nil)
}

func Removed(ctx context.Context, pub logging.Publisher, sweep uint64, actor logging.EntityRef, payload RemovedPayload) {
	publish(ctx, pub, sweep, EventRemoved, logging.SeverityInfo, actor, payload)
}

// RefreshFailed publishes a warning; refresh failures never stop the sweep.
func RefreshFailed(ctx context.Context, pub logging.Publisher, sweep uint64, actor logging.EntityRef, payload FailurePayload) {
	publish(ctx, pub, sweep, EventRefreshFailed, logging.SeverityWarn, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, sweep uint64, eventType logging.EventType, severity logging.Severity, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Sweep:    sweep,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryOverlay,
		Payload:  payload,
	})
}
