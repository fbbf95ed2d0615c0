package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"betterhud/server/internal/command"
	"betterhud/server/internal/game"
	"betterhud/server/internal/hud"
	servernet "betterhud/server/internal/net"
	"betterhud/server/internal/net/intake"
	"betterhud/server/internal/net/ws"
	"betterhud/server/internal/overlay"
	"betterhud/server/internal/telemetry"
	"betterhud/server/logging"
	loggingSinks "betterhud/server/logging/sinks"
)

// App is the assembled server: world, overlay service, commands and the HTTP
// surface sharing one logging router.
type App struct {
	cfg     Config
	logger  telemetry.Logger
	router  *logging.Router
	metrics *logging.Metrics
	files   []io.Closer

	world    *game.World
	overlays *overlay.Registry
	hud      *hud.Service
	commands *command.Dispatcher
	handler  http.Handler

	ctx    context.Context
	cancel context.CancelFunc
	subs   []*game.Subscription
}

func New(cfg Config) (*App, error) {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}

	a := &App{cfg: cfg, logger: telemetryLogger, metrics: &logging.Metrics{}}
	sinks, err := a.buildSinks(cfg.Logging)
	if err != nil {
		a.closeFiles()
		return nil, err
	}
	a.router = logging.NewRouter(logging.SystemClock{}, cfg.Logging, fallbackLogger, sinks)
	a.ctx, a.cancel = context.WithCancel(context.Background())

	worldCfg := game.DefaultConfig()
	worldCfg.Logger = telemetryLogger
	a.world = game.NewWorld(worldCfg)
	a.overlays = overlay.NewRegistry(hud.Document)

	a.hud, err = hud.NewService(cfg.HUD, hud.Deps{
		Overlays:  a.overlays,
		Catalog:   a.world.Catalog(),
		Logger:    telemetryLogger,
		Publisher: a.router,
		Metrics:   telemetry.WrapMetrics(a.metrics),
	})
	if err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("failed to construct overlay service: %w", err)
	}

	a.commands = command.NewDispatcher(a.hud, command.PlayersFunc(func(id uuid.UUID) bool {
		_, ok := a.world.Player(id)
		return ok
	}), cfg.Commands, telemetryLogger)

	bus := a.world.Bus()
	a.subs = append(a.subs,
		bus.OnReady(func(ctx context.Context, player *game.Player) {
			a.hud.OnPlayerReady(ctx, player)
		}),
		bus.OnDisconnect(func(ctx context.Context, id uuid.UUID, reason string) {
			a.hud.OnPlayerDisconnect(ctx, id, reason)
			a.overlays.Forget(id)
			a.commands.Forget(id)
		}),
	)

	sessions := ws.NewHandler(ws.HandlerConfig{
		Players: a.world,
		Intake: intake.Context{
			World:    a.world,
			Commands: a.commands,
		},
		Logger:    telemetryLogger,
		Context:   a.ctx,
		OnSession: a.resume,
	})

	a.handler = servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
		World:         a.world,
		HUD:           a.hud,
		Metrics:       a.metrics,
		Events:        a.router,
		Commands:      a.commands,
		Sessions:      sessions,
		Observability: cfg.Observability,
		ClientDir:     cfg.ClientDir,
		Logger:        telemetryLogger,
	})
	return a, nil
}

func (a *App) buildSinks(cfg logging.Config) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(os.Stdout, cfg.Console)})
		case "json":
			var w io.Writer = os.Stdout
			if cfg.JSON.FilePath != "" {
				file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return nil, fmt.Errorf("failed to open json log %q: %w", cfg.JSON.FilePath, err)
				}
				a.files = append(a.files, file)
				w = file
			}
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(w, cfg.JSON.FlushInterval)})
		case "memory":
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewMemorySink()})
		default:
			a.logger.Printf("ignoring unknown log sink %q", name)
		}
	}
	return sinks, nil
}

// resume re-renders the shared page for a player whose client reconnected
// while its overlay was already attached.
func (a *App) resume(_ context.Context, player *game.Player) {
	composite, ok := a.overlays.Composite(player.ID())
	if !ok || composite.Store().Len() == 0 {
		return
	}
	if err := composite.Show(player); err != nil {
		a.logger.Printf("failed to resume overlay page for %s: %v", player.DisplayName(), err)
	}
}

func (a *App) Handler() http.Handler         { return a.handler }
func (a *App) World() *game.World            { return a.world }
func (a *App) HUD() *hud.Service             { return a.hud }
func (a *App) Commands() *command.Dispatcher { return a.commands }
func (a *App) Router() *logging.Router       { return a.router }
func (a *App) Metrics() *logging.Metrics     { return a.metrics }
func (a *App) Overlays() *overlay.Registry   { return a.overlays }

// Run serves HTTP and runs the refresh scheduler until ctx is cancelled or
// either fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{Addr: a.cfg.Addr, Handler: a.handler}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.hud.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("overlay scheduler failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the bus subscriptions, flushes the logging router and
// closes log files.
func (a *App) Close(ctx context.Context) error {
	for _, sub := range a.subs {
		sub.Unsubscribe()
	}
	if a.cancel != nil {
		a.cancel()
	}
	var err error
	if a.router != nil {
		if cerr := a.router.Close(ctx); cerr != nil {
			a.logger.Printf("failed to close logging router: %v", cerr)
			err = cerr
		}
	}
	a.closeFiles()
	return err
}

func (a *App) closeFiles() {
	for _, file := range a.files {
		file.Close()
	}
	a.files = nil
}

// Run builds the server from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		a.Close(closeCtx)
	}()
	return a.Run(ctx)
}
