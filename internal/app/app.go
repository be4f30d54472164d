package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/vk/weft/internal/archive"
	"github.com/vk/weft/internal/ctxlog"
	"github.com/vk/weft/internal/emit"
	"github.com/vk/weft/internal/engine"
	"github.com/vk/weft/internal/keymap"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/workspace"
	"github.com/vk/weft/modules"
)

// App encapsulates one editing session: a workspace, its engine, the
// keymap dispatcher and the optional renderer link.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	registry *registry.Registry
	ws       *workspace.Workspace
	engine   *engine.Engine
	emitter  *emit.Emitter
	session  *session

	nowFn func() time.Time // chord-timeout clock, swappable in tests
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, registry
// and workspace.
func NewApp(outW io.Writer, cfg *Config, extra ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	keys, err := keymap.Load(ctx, cfg.KeymapPath)
	if err != nil {
		// A failure to load the keymap is a fatal startup error.
		panic(fmt.Errorf("failed to load keymap: %w", err))
	}
	logger.Debug("Keymap loaded.", "path", cfg.KeymapPath)

	reg := registry.New()
	mods := append(modules.Defaults(), extra...)
	for _, mod := range mods {
		mod.Register(reg)
	}
	logger.Debug("All node-kind modules registered.", "count", len(mods), "kinds", len(reg.Kinds()))

	ws, err := openWorkspace(ctx, reg, cfg.WorkspacePath)
	if err != nil {
		panic(fmt.Errorf("failed to open workspace: %w", err))
	}
	eng := engine.New(ws)

	var emitter *emit.Emitter
	if cfg.EmitURL != "" {
		emitter, err = emit.Dial(ctx, cfg.EmitURL)
		if err != nil {
			panic(fmt.Errorf("failed to dial renderer: %w", err))
		}
	}

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		ws:       ws,
		engine:   eng,
		emitter:  emitter,
		nowFn:    time.Now,
	}
	a.session = newSession(a, keys)
	return a
}

// openWorkspace loads the archive at path, or builds a blank workspace
// with a default view when path is empty or does not exist yet.
func openWorkspace(ctx context.Context, reg *registry.Registry, path string) (*workspace.Workspace, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return archive.Load(ctx, reg, path)
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	ws := workspace.New(reg)
	if err := ws.AddView(defaultView); err != nil {
		return nil, err
	}
	return ws, nil
}

func (a *App) now() time.Time { return a.nowFn() }

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Workspace returns the live workspace. This is primarily for testing.
func (a *App) Workspace() *workspace.Workspace {
	return a.ws
}
