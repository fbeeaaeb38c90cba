// Package app drives the streaming manager from a moving observer.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/OCharnyshevich/voxel-terrain/internal/config"
	"github.com/OCharnyshevich/voxel-terrain/internal/journal"
	"github.com/OCharnyshevich/voxel-terrain/internal/stream"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/terrain"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/volume"
)

// App owns the pipeline, the manager and its listeners.
type App struct {
	log *slog.Logger

	// mu guards cfg and world, which Reconfigure replaces.
	mu    sync.Mutex
	cfg   *config.Config
	world volume.WorldSettings

	manager *stream.Manager
	sink    *RenderSink
	journal *journal.Writer

	angle float64
	ticks int
}

// New builds an App from cfg. The journal, if configured, is created here
// and closed by Run.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	p, world, err := buildPipeline(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		world:   world,
		manager: stream.NewManager(p, cfg.StreamSettings(), log),
		sink:    NewRenderSink(),
	}
	a.manager.AddListener(a.sink)

	if cfg.Journal != "" {
		j, err := journal.Create(cfg.Journal, log)
		if err != nil {
			return nil, err
		}
		a.journal = j
		a.manager.AddListener(j)
	}
	return a, nil
}

func buildPipeline(cfg *config.Config) (*terrain.Pipeline, volume.WorldSettings, error) {
	world, err := cfg.WorldSettings()
	if err != nil {
		return nil, world, fmt.Errorf("world settings: %w", err)
	}
	ns, err := cfg.NoiseSettings()
	if err != nil {
		return nil, world, fmt.Errorf("noise settings: %w", err)
	}
	sel, err := cfg.Selection()
	if err != nil {
		return nil, world, fmt.Errorf("climate settings: %w", err)
	}
	p, err := terrain.NewPipeline(world, ns, sel)
	if err != nil {
		return nil, world, err
	}
	return p, p.Generator().World(), nil
}

// Manager exposes the streaming manager.
func (a *App) Manager() *stream.Manager {
	return a.manager
}

// Sink exposes the render sink.
func (a *App) Sink() *RenderSink {
	return a.sink
}

// Reconfigure swaps in generation, observer and view settings from cfg and
// queues every loaded chunk for regeneration. The journal, stream and tick
// rate settings keep their startup values. Safe to call while Run is active.
func (a *App) Reconfigure(cfg *config.Config) error {
	p, world, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	next := *cfg
	next.Journal = a.cfg.Journal
	next.Stream = a.cfg.Stream
	next.TickRate = a.cfg.TickRate
	a.cfg = &next
	a.world = world
	a.manager.SetBuilder(p)
	a.mu.Unlock()

	n := a.manager.Invalidate()
	a.log.Info("reconfigured terrain", "seed", cfg.Seed, "mode", cfg.World.Mode, "invalidated", n)
	return nil
}

// World returns the world settings chunks are currently placed with.
func (a *App) World() volume.WorldSettings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.world
}

// Observer returns the observer's current world-space position.
func (a *App) Observer() mgl32.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.observer()
}

func (a *App) observer() mgl32.Vec3 {
	r := float64(a.cfg.Orbit.Radius)
	offset := mgl32.Vec3{float32(r * math.Cos(a.angle)), 0, float32(r * math.Sin(a.angle))}
	if a.world.Mode == volume.Flat {
		offset = mgl32.Vec3{offset[0], a.world.GroundLevel, offset[2]}
	}
	return a.world.Center.Add(offset)
}

// Step advances the observer and runs one manager tick.
func (a *App) Step(ctx context.Context) (stream.Stats, error) {
	a.mu.Lock()
	pos := a.observer().Sub(a.world.Offset)
	side := float32(a.world.ChunkSize) * a.world.VoxelSize
	view, speed := a.cfg.ViewDistance, a.cfg.Orbit.Speed
	a.mu.Unlock()

	center := coord.ChunkAt(pos[0], pos[1], pos[2], side)
	a.manager.Observe(center, view)

	st, err := a.manager.Tick(ctx)
	if err != nil {
		return st, err
	}
	if a.journal != nil {
		if err := a.journal.Flush(); err != nil {
			a.log.Error("flush journal", "error", err)
		}
	}
	a.mu.Lock()
	a.angle += float64(speed)
	a.mu.Unlock()
	a.ticks++
	return st, nil
}

// Run ticks at the configured rate until ctx is cancelled or the configured
// tick count is reached.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	a.mu.Lock()
	cfg, world := a.cfg, a.world
	a.mu.Unlock()
	rate := max(cfg.TickRate, 1)

	a.log.Info("terrain started",
		"seed", cfg.Seed,
		"mode", world.Mode,
		"chunkSize", world.ChunkSize,
		"viewDistance", cfg.ViewDistance,
		"tickRate", rate,
	)

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		if _, err := a.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return a.stopped()
			}
			return fmt.Errorf("tick %d: %w", a.ticks, err)
		}
		if limit := a.tickLimit(); limit > 0 && a.ticks >= limit {
			return a.stopped()
		}
		if a.ticks%rate == 0 {
			chunks, tris, uploads := a.sink.Totals()
			a.log.Info("terrain status", "tick", a.ticks, "chunks", chunks, "triangles", tris, "uploads", uploads, "pending", a.manager.Pending())
		}

		select {
		case <-ctx.Done():
			return a.stopped()
		case <-ticker.C:
		}
	}
}

func (a *App) tickLimit() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Ticks
}

func (a *App) stopped() error {
	chunks, tris, uploads := a.sink.Totals()
	a.log.Info("terrain stopped", "ticks", a.ticks, "chunks", chunks, "triangles", tris, "uploads", uploads)
	return nil
}

func (a *App) close() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		a.log.Error("close journal", "error", err)
	}
}
