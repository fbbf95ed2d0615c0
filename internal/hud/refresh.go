package hud

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"betterhud/server/internal/telemetry"
	"betterhud/server/logging"
	overlaylog "betterhud/server/logging/overlay"
)

const (
	metricSweeps          = "hud.sweeps"
	metricRefreshFailures = "hud.refresh_failures"
	metricVisible         = "hud.overlays.visible"
	metricHidden          = "hud.overlays.hidden"
	metricRenderPrefix    = "hud.render."
)

// refresher is the single path every section refresh goes through, whether
// it was triggered by the sweep, a change notification or a command.
type refresher struct {
	clock     logging.Clock
	logger    telemetry.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics

	sweeps atomic.Uint64
}

// render sends sections for e and advances their timestamps to the time the
// render started. Panics inside the handle are turned into errors.
func (r *refresher) render(e *TrackedOverlay, sections []Section) (err error) {
	if e == nil || len(sections) == 0 {
		return nil
	}
	startedAt := r.clock.Now().UnixMilli()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("render panic: %v", recovered)
		}
	}()
	if err := e.handle.Refresh(sections...); err != nil {
		return err
	}
	for _, section := range sections {
		e.markRefreshed(section, startedAt)
		r.metrics.Add(metricRenderPrefix+section.String(), 1)
	}
	return nil
}

// refresh renders and reports a failure. Removed players are expected
// absence and are not reported.
func (r *refresher) refresh(ctx context.Context, e *TrackedOverlay, sections []Section) bool {
	err := r.render(e, sections)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrPlayerRemoved) {
		return false
	}
	r.metrics.Add(metricRefreshFailures, 1)
	r.logger.Printf("[hud] refresh %v for %s failed: %v", sectionNames(sections), e.id, err)
	overlaylog.RefreshFailed(ctx, r.publisher, r.sweeps.Load(), logging.PlayerRef(e.id.String()), overlaylog.FailurePayload{
		Sections: sectionNames(sections),
		Error:    err.Error(),
	})
	return false
}

// dueSections lists the sections of e whose threshold elapsed at nowMs.
func dueSections(cfg Config, e *TrackedOverlay, nowMs int64) []Section {
	var due []Section
	for _, section := range Sections {
		if e.due(section, nowMs, cfg.Threshold(section)) {
			due = append(due, section)
		}
	}
	return due
}
