package hud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"betterhud/server/internal/inventory"
	"betterhud/server/internal/overlay"
	"betterhud/server/internal/telemetry"
	"betterhud/server/internal/ui"
	"betterhud/server/logging"
	"betterhud/server/logging/sinks"
)

var errSendFailed = errors.New("send failed")

type fakePlayer struct {
	id      uuid.UUID
	name    string
	inv     *inventory.Inventory
	removed atomic.Bool

	mu      sync.Mutex
	updates []ui.Update
	sendErr error
}

func newFakePlayer(name string) *fakePlayer {
	return &fakePlayer{
		id:   uuid.New(),
		name: name,
		inv:  inventory.New(inventory.DefaultLayout()),
	}
}

func (p *fakePlayer) ID() uuid.UUID                   { return p.id }
func (p *fakePlayer) DisplayName() string             { return p.name }
func (p *fakePlayer) Removed() bool                   { return p.removed.Load() }
func (p *fakePlayer) Inventory() *inventory.Inventory { return p.inv }

func (p *fakePlayer) SendUI(update ui.Update) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.updates = append(p.updates, update)
	return nil
}

func (p *fakePlayer) failSends(err error) {
	p.mu.Lock()
	p.sendErr = err
	p.mu.Unlock()
}

func (p *fakePlayer) updateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

func (p *fakePlayer) lastUpdate(t *testing.T) ui.Update {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.updates) == 0 {
		t.Fatalf("expected %s to have received an update", p.name)
	}
	return p.updates[len(p.updates)-1]
}

type fakeClock struct {
	ms atomic.Int64
}

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.ms.Store(1_700_000_000_000)
	return c
}

func (c *fakeClock) Now() time.Time { return time.UnixMilli(c.ms.Load()) }

func (c *fakeClock) Advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }

// countingHost wraps the overlay registry and counts attach and detach calls.
type countingHost struct {
	*overlay.Registry
	attaches     atomic.Int32
	detaches     atomic.Int32
	beforeAttach func()
	onAttach     func()
}

func (h *countingHost) Attach(viewer overlay.Viewer, key string, handle overlay.Handle) error {
	h.attaches.Add(1)
	if h.beforeAttach != nil {
		h.beforeAttach()
	}
	err := h.Registry.Attach(viewer, key, handle)
	if h.onAttach != nil {
		h.onAttach()
	}
	return err
}

func (h *countingHost) Detach(viewer overlay.Viewer, key string) error {
	h.detaches.Add(1)
	return h.Registry.Detach(viewer, key)
}

type testHarness struct {
	svc     *Service
	clock   *fakeClock
	host    *countingHost
	events  *sinks.MemorySink
	metrics *logging.Metrics

	logMu sync.Mutex
	logs  []string
}

func (h *testHarness) record(format string, args ...any) {
	h.logMu.Lock()
	h.logs = append(h.logs, fmt.Sprintf(format, args...))
	h.logMu.Unlock()
}

func (h *testHarness) logged() []string {
	h.logMu.Lock()
	defer h.logMu.Unlock()
	return append([]string(nil), h.logs...)
}

func newHarness(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Hour
	cfg.CreateDelay = 10 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	h := &testHarness{
		clock:   newFakeClock(),
		host:    &countingHost{Registry: overlay.NewRegistry(Document)},
		events:  sinks.NewMemorySink(),
		metrics: &logging.Metrics{},
	}
	svc, err := NewService(cfg, Deps{
		Overlays:  h.host,
		Catalog:   inventory.DefaultCatalog(),
		Logger:    telemetry.LoggerFunc(h.record),
		Publisher: h.events,
		Metrics:   telemetry.WrapMetrics(h.metrics),
		Clock:     logging.ClockFunc(h.clock.Now),
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	h.svc = svc
	return h
}

// open runs the deferred creation body synchronously.
func (h *testHarness) open(t *testing.T, p *fakePlayer) *TrackedOverlay {
	t.Helper()
	h.svc.create(context.Background(), p, &PendingTask{})
	e, ok := h.svc.registry.GetVisible(p.id)
	if !ok {
		t.Fatalf("expected %s to have a visible overlay", p.name)
	}
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mustSlot(t *testing.T, c *inventory.Container, slot int, stack inventory.ItemStack) {
	t.Helper()
	if err := c.Set(slot, stack); err != nil {
		t.Fatalf("failed to set slot %d: %v", slot, err)
	}
}

func stack(id inventory.ItemType, quantity int, durability, max float64) inventory.ItemStack {
	return inventory.ItemStack{ItemID: id, Quantity: quantity, Durability: durability, MaxDurability: max}
}
