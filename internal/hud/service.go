package hud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hako/durafmt"

	"betterhud/server/internal/inventory"
	"betterhud/server/internal/telemetry"
	"betterhud/server/logging"
	"betterhud/server/logging/lifecycle"
	overlaylog "betterhud/server/logging/overlay"
)

// State is the lifecycle state of one player's overlay.
type State int

const (
	StateDisconnected State = iota
	StatePendingCreate
	StateVisible
	StateHidden
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StatePendingCreate:
		return "pending_create"
	case StateVisible:
		return "visible"
	case StateHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Deps are the collaborators of the service. Only Overlays is required.
type Deps struct {
	Overlays OverlayHost
	// Lookup finds the shared page of a player for the store patch. When nil
	// and Overlays implements CompositeLookup, Overlays is used.
	Lookup    CompositeLookup
	Catalog   inventory.Catalog
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Clock     logging.Clock
}

// Service drives creation, show, hide and teardown of every player's
// overlay. All methods are safe for concurrent use.
type Service struct {
	cfg       Config
	overlays  OverlayHost
	lookup    CompositeLookup
	renderer  *Renderer
	registry  *Registry
	refresher *refresher
	bridge    *Bridge
	scheduler *Scheduler

	pendingMu sync.Mutex
	pending   map[uuid.UUID]*PendingTask
}

func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Overlays == nil {
		return nil, fmt.Errorf("hud: overlay host is required")
	}
	cfg = cfg.normalized()

	if deps.Logger == nil {
		deps.Logger = telemetry.Discard()
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.WrapMetrics(&logging.Metrics{})
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Catalog == nil {
		deps.Catalog = inventory.DefaultCatalog()
	}
	if deps.Lookup == nil {
		if lookup, ok := deps.Overlays.(CompositeLookup); ok {
			deps.Lookup = lookup
		}
	}

	r := &refresher{
		clock:     deps.Clock,
		logger:    deps.Logger,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
	}
	registry := NewRegistry()
	s := &Service{
		cfg:       cfg,
		overlays:  deps.Overlays,
		lookup:    deps.Lookup,
		renderer:  NewRenderer(deps.Catalog, cfg.AmmoToken),
		registry:  registry,
		refresher: r,
		bridge:    newBridge(context.Background(), r),
		scheduler: newScheduler(cfg, registry, r),
		pending:   make(map[uuid.UUID]*PendingTask),
	}
	s.scheduler.create = s.create
	return s, nil
}

func (s *Service) Registry() *Registry   { return s.registry }
func (s *Service) Scheduler() *Scheduler { return s.scheduler }

// Run blocks running the scheduler until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.refresher.logger.Printf("[hud] sweeping every %s", s.cfg.SweepInterval)
	return s.scheduler.Run(ctx)
}

// Start runs the scheduler on its own goroutine.
func (s *Service) Start(ctx context.Context) {
	go func() {
		_ = s.Run(ctx)
	}()
}

// OnPlayerReady schedules the deferred first open of p's overlay.
func (s *Service) OnPlayerReady(ctx context.Context, p Player) {
	if p == nil {
		return
	}
	id := p.ID()
	lifecycle.PlayerReady(ctx, s.refresher.publisher, logging.PlayerRef(id.String()), lifecycle.PlayerReadyPayload{
		Name: p.DisplayName(),
	})

	// a hidden overlay belongs to the previous session
	if e, ok := s.registry.RemoveHidden(id); ok {
		s.teardown(ctx, e, StateHidden)
	}
	if e, ok := s.registry.GetVisible(id); ok {
		s.refresher.refresh(ctx, e, Sections)
		return
	}

	s.pendingMu.Lock()
	if previous, ok := s.pending[id]; ok {
		previous.Cancel()
	}
	s.pending[id] = s.scheduler.ScheduleCreate(p)
	s.pendingMu.Unlock()
}

// OnPlayerDisconnect cancels a pending creation and tears down the overlay
// of id from whichever collection holds it. Unknown ids are a no-op.
func (s *Service) OnPlayerDisconnect(ctx context.Context, id uuid.UUID, reason string) {
	s.pendingMu.Lock()
	task, pending := s.pending[id]
	delete(s.pending, id)
	s.pendingMu.Unlock()
	if pending {
		task.Cancel()
	}

	e, from := s.removeTracked(id)
	if e == nil && !pending {
		return
	}
	lifecycle.PlayerDisconnected(ctx, s.refresher.publisher, logging.PlayerRef(id.String()), lifecycle.PlayerDisconnectedPayload{
		Reason: reason,
	})
	if e != nil {
		s.teardown(ctx, e, from)
	}
}

// HideOverlay moves the overlay of id to the hidden collection and detaches
// it from the shared page. It returns false when id has no visible overlay.
func (s *Service) HideOverlay(ctx context.Context, id uuid.UUID) bool {
	e, ok := s.registry.MoveToHidden(id)
	if !ok {
		return false
	}
	if err := s.overlays.Detach(e.player, s.cfg.OverlayKey); err != nil {
		s.refresher.logger.Printf("[hud] detach overlay of %s: %v", id, err)
	}
	s.storeGauges()
	overlaylog.Hidden(ctx, s.refresher.publisher, s.scheduler.Sweeps(), logging.PlayerRef(id.String()))
	return true
}

// ShowOverlay moves a hidden overlay back, re-attaches it and refreshes every
// section. It returns false when id has no hidden overlay.
func (s *Service) ShowOverlay(ctx context.Context, id uuid.UUID) bool {
	e, ok := s.registry.MoveToVisible(id, s.refresher.clock.Now())
	if !ok {
		return false
	}
	if err := s.overlays.Attach(e.player, s.cfg.OverlayKey, e.handle); err != nil {
		s.refresher.logger.Printf("[hud] attach overlay of %s: %v", id, err)
	}
	EnsureConcurrentStore(s.lookup, id)
	e.resetRefresh()
	s.refresher.refresh(ctx, e, Sections)
	s.storeGauges()
	overlaylog.Shown(ctx, s.refresher.publisher, s.scheduler.Sweeps(), logging.PlayerRef(id.String()))
	return true
}

// ForceRefresh makes every section of a visible overlay due and renders it
// right away. It returns false when id has no visible overlay.
func (s *Service) ForceRefresh(ctx context.Context, id uuid.UUID) bool {
	e, ok := s.registry.GetVisible(id)
	if !ok {
		return false
	}
	e.resetRefresh()
	return s.refresher.refresh(ctx, e, Sections)
}

// State reports the lifecycle state of id.
func (s *Service) State(id uuid.UUID) State {
	inVisible, inHidden := s.registry.Membership(id)
	switch {
	case inVisible:
		return StateVisible
	case inHidden:
		return StateHidden
	}
	s.pendingMu.Lock()
	_, pending := s.pending[id]
	s.pendingMu.Unlock()
	if pending {
		return StatePendingCreate
	}
	return StateDisconnected
}

// VisibleFor reports how long the overlay of id has been visible.
func (s *Service) VisibleFor(id uuid.UUID) (time.Duration, bool) {
	e, ok := s.registry.GetVisible(id)
	if !ok {
		return 0, false
	}
	return s.refresher.clock.Now().Sub(e.ShownAt()), true
}

// create is the body of the deferred first open. It runs on the scheduler
// goroutine.
func (s *Service) create(ctx context.Context, p Player, task *PendingTask) {
	id := p.ID()
	actor := logging.PlayerRef(id.String())
	defer s.clearPending(id, task)

	if task.Cancelled() || p.Removed() {
		overlaylog.CreateAborted(ctx, s.refresher.publisher, s.scheduler.Sweeps(), actor, overlaylog.AbortedPayload{
			Reason: "player left before the overlay opened",
		})
		return
	}
	if e, ok := s.registry.Get(id); ok {
		if e.Visible() {
			s.refresher.refresh(ctx, e, Sections)
		}
		return
	}

	e, err := s.open(p)
	if err != nil && (task.Cancelled() || p.Removed()) {
		overlaylog.CreateAborted(ctx, s.refresher.publisher, s.scheduler.Sweeps(), actor, overlaylog.AbortedPayload{
			Reason: "player left while the overlay opened",
		})
		return
	}
	if err != nil {
		s.refresher.logger.Printf("[hud] failed to open overlay for %s: %v", p.DisplayName(), err)
		overlaylog.CreateFailed(ctx, s.refresher.publisher, s.scheduler.Sweeps(), actor, overlaylog.FailurePayload{
			Sections: sectionNames(Sections),
			Error:    err.Error(),
		})
		return
	}

	if previous, replaced := s.registry.Upsert(id, e); replaced && previous != e {
		s.teardown(ctx, previous, StateVisible)
	}
	// a disconnect may have raced the publication above
	if task.Cancelled() || p.Removed() {
		if s.registry.RemoveIf(id, e) {
			s.teardown(ctx, e, StateVisible)
		}
		return
	}
	s.storeGauges()
	s.refresher.logger.Printf("[hud] overlay shown for %s", p.DisplayName())
	overlaylog.Created(ctx, s.refresher.publisher, s.scheduler.Sweeps(), actor, overlaylog.CreatedPayload{
		Name:          p.DisplayName(),
		Subscriptions: e.Subscriptions(),
	})
}

// open attaches a new overlay for p, which renders every section in one
// update, and subscribes it to p's containers.
func (s *Service) open(p Player) (e *TrackedOverlay, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("open panic: %v", recovered)
		}
	}()
	inv := p.Inventory()
	armor := inv.Armor()
	handle := NewOverlay(p, armor, s.renderer)
	now := s.refresher.clock.Now()

	if err := s.overlays.Attach(p, s.cfg.OverlayKey, handle); err != nil {
		_ = s.overlays.Detach(p, s.cfg.OverlayKey)
		return nil, fmt.Errorf("attach overlay: %w", err)
	}
	EnsureConcurrentStore(s.lookup, p.ID())
	for _, section := range Sections {
		s.refresher.metrics.Add(metricRenderPrefix+section.String(), 1)
	}

	e = newTrackedOverlay(p, handle, armor, now)
	e.subscriptions = s.bridge.Attach(e, inv)
	return e, nil
}

func (s *Service) clearPending(id uuid.UUID, task *PendingTask) {
	s.pendingMu.Lock()
	if current, ok := s.pending[id]; ok && current == task {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()
}

func (s *Service) removeTracked(id uuid.UUID) (*TrackedOverlay, State) {
	if e, ok := s.registry.RemoveVisible(id); ok {
		return e, StateVisible
	}
	if e, ok := s.registry.RemoveHidden(id); ok {
		return e, StateHidden
	}
	return nil, StateDisconnected
}

// teardown releases everything e holds. e must already be out of the
// registry.
func (s *Service) teardown(ctx context.Context, e *TrackedOverlay, from State) {
	e.release()
	e.visible.Store(false)
	EnsureConcurrentStore(s.lookup, e.id)
	if err := s.overlays.Detach(e.player, s.cfg.OverlayKey); err != nil {
		s.refresher.logger.Printf("[hud] detach overlay of %s: %v", e.id, err)
	}
	s.storeGauges()
	overlaylog.Removed(ctx, s.refresher.publisher, s.scheduler.Sweeps(), logging.PlayerRef(e.id.String()), overlaylog.RemovedPayload{
		From: from.String(),
	})
}

func (s *Service) storeGauges() {
	visible, hidden := s.registry.Counts()
	s.refresher.metrics.Store(metricVisible, uint64(visible))
	s.refresher.metrics.Store(metricHidden, uint64(hidden))
}

// OverlayDiagnostics is the diagnostics view of one tracked overlay.
type OverlayDiagnostics struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	State         string           `json:"state"`
	OpenedAt      int64            `json:"openedAt"`
	VisibleFor    string           `json:"visibleFor,omitempty"`
	Subscriptions int              `json:"subscriptions"`
	LastRefresh   map[string]int64 `json:"lastRefresh"`
}

// Diagnostics summarises the service for the diagnostics endpoint.
type Diagnostics struct {
	Sweeps   uint64               `json:"sweeps"`
	Visible  int                  `json:"visible"`
	Hidden   int                  `json:"hidden"`
	Pending  int                  `json:"pending"`
	Overlays []OverlayDiagnostics `json:"overlays"`
}

func (s *Service) Diagnostics() Diagnostics {
	now := s.refresher.clock.Now()
	visible, hidden := s.registry.Counts()
	s.pendingMu.Lock()
	pending := len(s.pending)
	s.pendingMu.Unlock()

	diag := Diagnostics{
		Sweeps:   s.scheduler.Sweeps(),
		Visible:  visible,
		Hidden:   hidden,
		Pending:  pending,
		Overlays: make([]OverlayDiagnostics, 0, visible+hidden),
	}
	for _, e := range s.registry.All() {
		entry := OverlayDiagnostics{
			ID:            e.id.String(),
			Name:          e.player.DisplayName(),
			State:         StateHidden.String(),
			OpenedAt:      e.CreatedAt().UnixMilli(),
			Subscriptions: e.Subscriptions(),
			LastRefresh:   make(map[string]int64, len(Sections)),
		}
		if e.Visible() {
			entry.State = StateVisible.String()
			entry.VisibleFor = FormatSince(now, e.ShownAt())
		}
		for _, section := range Sections {
			entry.LastRefresh[section.String()] = e.LastRefresh(section)
		}
		diag.Overlays = append(diag.Overlays, entry)
	}
	return diag
}

// FormatSince renders the time elapsed since then, e.g. "2 minutes 5 seconds".
func FormatSince(now, then time.Time) string {
	return FormatDuration(now.Sub(then))
}

// FormatDuration keeps the two most significant units of d.
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Second {
		return "0 seconds"
	}
	return durafmt.Parse(d).LimitFirstN(2).String()
}
