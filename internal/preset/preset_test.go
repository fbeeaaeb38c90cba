package preset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/OCharnyshevich/voxel-terrain/internal/config"
)

func TestLoadLocalPreset(t *testing.T) {
	src := filepath.Join(t.TempDir(), "moon.yaml")
	if err := os.WriteFile(src, []byte("seed: 4242\nworld:\n  planet_radius: 64\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	cfg, err := Load(context.Background(), src, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Seed != 4242 || cfg.World.PlanetRadius != 64 {
		t.Fatalf("cfg = %+v", cfg)
	}

	fi, err := os.Lstat(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		t.Fatal("preset should be copied, not linked")
	}
}

func TestLoadInvalidPreset(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(src, []byte("world:\n  mode: hollow\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(context.Background(), src, t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestFetchMissing(t *testing.T) {
	src := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := Fetch(context.Background(), src, t.TempDir()); err == nil {
		t.Fatal("expected error for a missing preset")
	}
}
