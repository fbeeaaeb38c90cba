// Package preset fetches configuration presets from local paths, HTTP,
// git or object storage and loads them.
package preset

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/voxel-terrain/internal/config"
)

// FileName is the name a fetched preset is stored under.
const FileName = "preset.yaml"

// Fetch downloads the single file at src into dir and returns its local
// path. src is any go-getter address, e.g. a path, an https URL or
// "git::https://host/repo.git//presets/moon.yaml".
func Fetch(ctx context.Context, src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}

	getters := maps.Clone(getter.Getters)
	getters["file"] = &getter.FileGetter{Copy: true}

	dst := filepath.Join(dir, FileName)
	client := &getter.Client{
		Ctx:     ctx,
		Src:     src,
		Dst:     dst,
		Pwd:     pwd,
		Mode:    getter.ClientModeFile,
		Getters: getters,
	}
	if err := client.Get(); err != nil {
		return "", fmt.Errorf("fetch preset %s: %w", src, err)
	}
	return dst, nil
}

// Load fetches src into dir and parses it as a config.
func Load(ctx context.Context, src, dir string, log *slog.Logger) (*config.Config, error) {
	path, err := Fetch(ctx, src, dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", src, err)
	}
	log.Info("loaded preset", "source", src, "path", path)
	return cfg, nil
}
