package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/OCharnyshevich/voxel-terrain/internal/app"
	"github.com/OCharnyshevich/voxel-terrain/internal/config"
	"github.com/OCharnyshevich/voxel-terrain/internal/preset"
)

func main() {
	cfg := config.DefaultConfig()

	var (
		configPath  = flag.String("config", "", "YAML config file")
		presetSrc   = flag.String("preset", "", "fetch a YAML preset from a path, URL or git address")
		presetDir   = flag.String("preset-dir", filepath.Join(os.TempDir(), "voxel-terrain"), "where fetched presets are stored")
		writeConfig = flag.String("write-config", "", "write the effective config to this path and exit")
		logLevel    = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "world seed")
	flag.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "ticks per second")
	flag.IntVar(&cfg.Ticks, "ticks", cfg.Ticks, "stop after this many ticks (0 = until interrupted)")
	flag.IntVar(&cfg.ViewDistance, "view-distance", cfg.ViewDistance, "streaming radius in chunks")
	flag.StringVar(&cfg.Journal, "journal", cfg.Journal, "write chunk transitions to this .jsonl.zst file")
	flag.StringVar(&cfg.World.Mode, "mode", cfg.World.Mode, "volume mode: envelope, continuous, layered or flat")
	flag.IntVar(&cfg.Stream.Workers, "workers", cfg.Stream.Workers, "concurrent generation jobs (0 = one per CPU)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	load := func() (*config.Config, error) {
		switch {
		case *presetSrc != "":
			return preset.Load(ctx, *presetSrc, *presetDir, log)
		case *configPath != "":
			return config.Load(*configPath)
		}
		return nil, nil
	}

	fromFile, err := load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if fromFile != nil {
		config.Merge(cfg, fromFile, explicit)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("validate config", "error", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := config.Save(*writeConfig, cfg); err != nil {
			log.Error("write config", "error", err)
			os.Exit(1)
		}
		log.Info("wrote config", "path", *writeConfig)
		return
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("create app", "error", err)
		os.Exit(1)
	}

	// SIGHUP reloads generation settings and rebuilds loaded chunks.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
			}
			fromFile, err := load()
			if err != nil {
				log.Error("reload config", "error", err)
				continue
			}
			if fromFile == nil {
				log.Warn("reload requested without -config or -preset")
				continue
			}
			next := *cfg
			config.Merge(&next, fromFile, explicit)
			if err := next.Validate(); err != nil {
				log.Error("validate config", "error", err)
				continue
			}
			if err := a.Reconfigure(&next); err != nil {
				log.Error("reconfigure", "error", err)
			}
		}
	}()

	if err := a.Run(ctx); err != nil {
		log.Error("terrain error", "error", err)
		os.Exit(1)
	}
}
