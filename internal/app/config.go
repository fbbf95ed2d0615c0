package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"betterhud/server/internal/command"
	"betterhud/server/internal/hud"
	"betterhud/server/internal/observability"
	"betterhud/server/internal/telemetry"
	"betterhud/server/logging"
)

type Config struct {
	Addr          string
	ClientDir     string
	HUD           hud.Config
	Commands      command.Config
	Logging       logging.Config
	Logger        telemetry.Logger
	Observability observability.Config
	// ShutdownTimeout bounds how long in-flight requests and sinks get to
	// drain once the context is cancelled.
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		HUD:             hud.DefaultConfig(),
		Commands:        command.DefaultConfig(),
		Logging:         logging.DefaultConfig(),
		ShutdownTimeout: 5 * time.Second,
	}
}

// ConfigFromEnv overlays environment variables onto DefaultConfig. Invalid
// values are reported through logger and ignored.
func ConfigFromEnv(logger telemetry.Logger) Config {
	return LoadConfig(os.Getenv, logger)
}

// LoadConfig is ConfigFromEnv with an injectable lookup.
func LoadConfig(getenv func(string) string, logger telemetry.Logger) Config {
	if logger == nil {
		logger = telemetry.Discard()
	}
	cfg := DefaultConfig()
	cfg.Logger = logger

	if raw := getenv("HTTP_ADDR"); raw != "" {
		cfg.Addr = raw
	}
	if raw := getenv("CLIENT_DIR"); raw != "" {
		cfg.ClientDir = raw
	}

	millis := func(name string, target *time.Duration) {
		raw := getenv(name)
		if raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			logger.Printf("invalid %s=%q: %v", name, raw, err)
			return
		}
		*target = time.Duration(value) * time.Millisecond
	}
	positive := func(name string, target *int) {
		raw := getenv(name)
		if raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			logger.Printf("invalid %s=%q: %v", name, raw, err)
			return
		}
		*target = value
	}

	millis("HUD_SWEEP_INTERVAL_MS", &cfg.HUD.SweepInterval)
	millis("HUD_CREATE_DELAY_MS", &cfg.HUD.CreateDelay)
	millis("HUD_ARMOR_THRESHOLD_MS", &cfg.HUD.ArmorThreshold)
	millis("HUD_AMMO_THRESHOLD_MS", &cfg.HUD.AmmoThreshold)
	millis("HUD_MAIN_HAND_THRESHOLD_MS", &cfg.HUD.MainHandThreshold)
	positive("HUD_SWEEP_WORKERS", &cfg.HUD.SweepWorkers)
	if raw := getenv("HUD_AMMO_TOKEN"); raw != "" {
		cfg.HUD.AmmoToken = strings.ToLower(raw)
	}

	millis("COMMAND_INTERVAL_MS", &cfg.Commands.Interval)
	positive("COMMAND_BURST", &cfg.Commands.Burst)

	if raw := getenv("LOG_SINKS"); raw != "" {
		cfg.Logging.EnabledSinks = logging.ParseSinks(raw)
	}
	if raw := getenv("LOG_JSON_PATH"); raw != "" {
		cfg.Logging.JSON.FilePath = raw
	}
	if raw := getenv("LOG_MIN_SEVERITY"); raw != "" {
		severity, err := logging.ParseSeverity(raw)
		if err != nil {
			logger.Printf("invalid LOG_MIN_SEVERITY=%q: %v", raw, err)
		} else {
			cfg.Logging.MinimumSeverity = severity
		}
	}

	if raw := getenv("ENABLE_PPROF"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Observability.EnablePprof = value
		} else {
			logger.Printf("invalid ENABLE_PPROF=%q: %v", raw, err)
		}
	}
	return cfg
}
