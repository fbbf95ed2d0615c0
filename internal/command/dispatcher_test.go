package command

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"betterhud/server/internal/hud"
)

type fakeOverlays struct {
	state      hud.State
	visibleFor time.Duration
	shows      int
	hides      int
	refreshes  int
}

func (f *fakeOverlays) ShowOverlay(context.Context, uuid.UUID) bool {
	f.shows++
	if f.state != hud.StateHidden {
		return false
	}
	f.state = hud.StateVisible
	return true
}

func (f *fakeOverlays) HideOverlay(context.Context, uuid.UUID) bool {
	f.hides++
	if f.state != hud.StateVisible {
		return false
	}
	f.state = hud.StateHidden
	return true
}

func (f *fakeOverlays) ForceRefresh(context.Context, uuid.UUID) bool {
	f.refreshes++
	return f.state == hud.StateVisible
}

func (f *fakeOverlays) State(uuid.UUID) hud.State { return f.state }

func (f *fakeOverlays) VisibleFor(uuid.UUID) (time.Duration, bool) {
	return f.visibleFor, f.state == hud.StateVisible
}

func newDispatcher(overlays *fakeOverlays, known ...uuid.UUID) *Dispatcher {
	players := PlayersFunc(func(id uuid.UUID) bool {
		for _, candidate := range known {
			if candidate == id {
				return true
			}
		}
		return false
	})
	return NewDispatcher(overlays, players, Config{Interval: time.Millisecond, Burst: 100}, nil)
}

func TestDispatchRoutesSubcommands(t *testing.T) {
	id := uuid.New()
	overlays := &fakeOverlays{state: hud.StateVisible}
	d := newDispatcher(overlays, id)
	sender := Sender{Name: "alice", PlayerID: id, IsPlayer: true}
	ctx := context.Background()

	if reply := d.Dispatch(ctx, sender, "/betterhud hide"); reply != "[BetterHUD] HUD is now hidden." {
		t.Fatalf("unexpected hide reply %q", reply)
	}
	if overlays.state != hud.StateHidden {
		t.Fatalf("expected overlay hidden")
	}
	if reply := d.Dispatch(ctx, sender, "off"); reply != "[BetterHUD] HUD is now hidden." {
		t.Fatalf("unexpected off reply %q", reply)
	}
	if reply := d.Dispatch(ctx, sender, "/betterhud refresh"); reply != "[BetterHUD] HUD is not visible." {
		t.Fatalf("unexpected refresh reply while hidden %q", reply)
	}
	if reply := d.Dispatch(ctx, sender, "/BetterHUD ON"); reply != "[BetterHUD] HUD is now visible." {
		t.Fatalf("unexpected on reply %q", reply)
	}
	if reply := d.Dispatch(ctx, sender, "show"); reply != "[BetterHUD] HUD is now visible." {
		t.Fatalf("unexpected show reply %q", reply)
	}
	if reply := d.Dispatch(ctx, sender, "refresh"); reply != "[BetterHUD] HUD refreshed." {
		t.Fatalf("unexpected refresh reply %q", reply)
	}
	if overlays.hides != 2 || overlays.shows != 2 || overlays.refreshes != 2 {
		t.Fatalf("unexpected call counts %+v", overlays)
	}
}

func TestDispatchStatus(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		state hud.State
		want  string
	}{
		{hud.StateVisible, "[BetterHUD] HUD is visible for 1 minute 5 seconds."},
		{hud.StateHidden, "[BetterHUD] HUD is hidden."},
		{hud.StatePendingCreate, "[BetterHUD] HUD is loading."},
		{hud.StateDisconnected, "[BetterHUD] HUD is not active."},
	}
	for _, tc := range cases {
		t.Run(tc.state.String(), func(t *testing.T) {
			d := newDispatcher(&fakeOverlays{state: tc.state, visibleFor: 65 * time.Second}, id)
			reply := d.Dispatch(context.Background(), Sender{Name: "bob", PlayerID: id, IsPlayer: true}, "status")
			if reply != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, reply)
			}
		})
	}
}

func TestDispatchHelpAndSenderChecks(t *testing.T) {
	id := uuid.New()
	overlays := &fakeOverlays{state: hud.StateVisible}
	d := newDispatcher(overlays, id)
	ctx := context.Background()

	for _, line := range []string{"/betterhud", "", "/betterhud dance"} {
		if reply := d.Dispatch(ctx, Sender{Name: "alice", PlayerID: id, IsPlayer: true}, line); reply != HelpText {
			t.Fatalf("expected help for %q, got %q", line, reply)
		}
	}

	if reply := d.Dispatch(ctx, Sender{Name: "console"}, "hide"); reply != "[BetterHUD] Only players can use this command." {
		t.Fatalf("unexpected console reply %q", reply)
	}
	if reply := d.Dispatch(ctx, Sender{Name: "ghost", PlayerID: uuid.New(), IsPlayer: true}, "hide"); reply != "[BetterHUD] Player not found for this command sender." {
		t.Fatalf("unexpected unknown player reply %q", reply)
	}
	if overlays.hides != 0 {
		t.Fatalf("rejected senders must not reach the overlay service")
	}
}

func TestDispatchThrottlesPerSender(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	overlays := &fakeOverlays{state: hud.StateVisible}
	d := NewDispatcher(overlays, nil, Config{Interval: time.Hour, Burst: 2}, nil)
	ctx := context.Background()
	sender := Sender{Name: "alice", PlayerID: alice, IsPlayer: true}

	d.Dispatch(ctx, sender, "refresh")
	d.Dispatch(ctx, sender, "refresh")
	if reply := d.Dispatch(ctx, sender, "refresh"); reply != "[BetterHUD] Slow down." {
		t.Fatalf("expected third command to be throttled, got %q", reply)
	}
	if reply := d.Dispatch(ctx, Sender{Name: "bob", PlayerID: bob, IsPlayer: true}, "refresh"); reply != "[BetterHUD] HUD refreshed." {
		t.Fatalf("expected other senders to keep their own budget, got %q", reply)
	}

	d.Forget(alice)
	if reply := d.Dispatch(ctx, sender, "refresh"); reply != "[BetterHUD] HUD refreshed." {
		t.Fatalf("expected a fresh budget after forget, got %q", reply)
	}
}
