package hud

import "time"

// Config tunes the refresh engine. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// SweepInterval is the period of the refresh sweep, independent of the
	// per-section thresholds.
	SweepInterval time.Duration
	// CreateDelay defers the first open so the client can finish loading.
	CreateDelay time.Duration

	ArmorThreshold    time.Duration
	AmmoThreshold     time.Duration
	MainHandThreshold time.Duration

	// SweepWorkers bounds how many overlays one sweep refreshes in parallel.
	SweepWorkers int

	// OverlayKey is the key the overlay is attached under in the shared
	// overlay registry.
	OverlayKey string
	// AmmoToken is matched case-insensitively against item ids.
	AmmoToken string
}

func DefaultConfig() Config {
	return Config{
		SweepInterval:     500 * time.Millisecond,
		CreateDelay:       2 * time.Second,
		ArmorThreshold:    5 * time.Second,
		AmmoThreshold:     2 * time.Second,
		MainHandThreshold: time.Second,
		SweepWorkers:      4,
		OverlayKey:        "BetterHUD",
		AmmoToken:         "weapon_arrow",
	}
}

// Threshold returns the minimum age before a sweep refreshes section.
func (c Config) Threshold(section Section) time.Duration {
	switch section {
	case SectionArmor:
		return c.ArmorThreshold
	case SectionAmmo:
		return c.AmmoThreshold
	case SectionMainHand:
		return c.MainHandThreshold
	default:
		return 0
	}
}

func (c Config) normalized() Config {
	defaults := DefaultConfig()
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaults.SweepInterval
	}
	if c.CreateDelay < 0 {
		c.CreateDelay = 0
	}
	if c.SweepWorkers <= 0 {
		c.SweepWorkers = 1
	}
	if c.OverlayKey == "" {
		c.OverlayKey = defaults.OverlayKey
	}
	if c.AmmoToken == "" {
		c.AmmoToken = defaults.AmmoToken
	}
	return c
}
