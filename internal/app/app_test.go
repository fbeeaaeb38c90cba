package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/OCharnyshevich/voxel-terrain/internal/config"
	"github.com/OCharnyshevich/voxel-terrain/internal/journal"
	"github.com/OCharnyshevich/voxel-terrain/internal/stream"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
)

func smallConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.TickRate = 1000
	cfg.Ticks = 3
	cfg.ViewDistance = 1
	cfg.Orbit = config.Orbit{Radius: 40, Speed: 0.1}
	cfg.World.ChunkSize = 8
	cfg.World.PlanetRadius = 40
	cfg.World.Bloat = 3
	cfg.Climate.Elevation.Min = 30
	cfg.Climate.Elevation.Max = 50
	cfg.Stream.Workers = 2
	cfg.Journal = filepath.Join(t.TempDir(), "journal.jsonl.zst")
	return cfg
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunStopsAfterTicks(t *testing.T) {
	cfg := smallConfig(t)
	a, err := New(cfg, discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.ticks != 3 {
		t.Fatalf("ticks = %d", a.ticks)
	}

	chunks, tris, uploads := a.Sink().Totals()
	if chunks == 0 || uploads < chunks {
		t.Fatalf("sink chunks %d uploads %d", chunks, uploads)
	}
	if tris == 0 {
		t.Fatal("observer on the surface should see geometry")
	}
	if chunks != a.Manager().Len() {
		t.Fatalf("sink has %d chunks, manager %d", chunks, a.Manager().Len())
	}

	entries, err := journal.ReadFile(cfg.Journal)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	loaded := 0
	for _, e := range entries {
		if e.To == stream.Loaded {
			loaded++
		}
	}
	if loaded < chunks {
		t.Fatalf("journal has %d loads for %d chunks", loaded, chunks)
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Ticks = 0
	cfg.Journal = ""
	a, err := New(cfg, discard())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.ticks != 0 {
		t.Fatalf("ticks = %d", a.ticks)
	}
}

func TestReconfigureRebuildsLoadedChunks(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Journal = ""
	cfg.Orbit.Speed = 0
	a, err := New(cfg, discard())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := a.Step(ctx); err != nil {
		t.Fatal(err)
	}
	loaded := a.Manager().Len()

	next := *cfg
	next.Seed++
	if err := a.Reconfigure(&next); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	st, err := a.Step(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Rebuilt != loaded {
		t.Fatalf("rebuilt %d of %d chunks", st.Rebuilt, loaded)
	}
	for _, c := range a.Manager().Loaded() {
		if s, _ := a.Manager().State(c); s != stream.MeshReady && s != stream.Loaded {
			t.Fatalf("chunk %v in state %v", c, s)
		}
	}
}

func TestReconfigureMovesChunkGrid(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Journal = ""
	cfg.Orbit.Speed = 0
	a, err := New(cfg, discard())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := a.Step(ctx); err != nil {
		t.Fatal(err)
	}

	next := *cfg
	next.World.ChunkSize = 16
	next.World.Offset = config.Vec3{4, 0, 0}
	if err := a.Reconfigure(&next); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	w := a.World()
	if w.ChunkSize != 16 || w.Offset[0] != 4 {
		t.Fatalf("world after reconfigure = %+v", w)
	}

	if _, err := a.Step(ctx); err != nil {
		t.Fatal(err)
	}
	pos := a.Observer().Sub(w.Offset)
	side := float32(w.ChunkSize) * w.VoxelSize
	center := coord.ChunkAt(pos[0], pos[1], pos[2], side)
	if _, ok := a.Manager().State(center); !ok {
		t.Fatalf("observer chunk %v not tracked after reconfigure", center)
	}
	keep := cfg.ViewDistance + cfg.StreamSettings().Hysteresis
	for _, c := range a.Manager().Loaded() {
		if c.DistSq(center) > keep*keep {
			t.Fatalf("chunk %v outside the reconfigured view around %v", c, center)
		}
	}
}

func TestNewRejectsBadMode(t *testing.T) {
	cfg := smallConfig(t)
	cfg.World.Mode = "hollow"
	if _, err := New(cfg, discard()); err == nil {
		t.Fatal("expected error")
	}
}
