package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/OCharnyshevich/voxel-terrain/internal/stream"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/climate"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/noise"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/volume"
)

// ErrInvalid is returned when a configuration fails schema validation.
var ErrInvalid = errors.New("invalid config")

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "config.schema.json"

// Vec3 is a point written as a three-element list.
type Vec3 [3]float32

func (v Vec3) vec() mgl32.Vec3 { return mgl32.Vec3(v) }

// Config holds the terrain generator configuration.
type Config struct {
	Seed         int64  `yaml:"seed" json:"seed"`
	TickRate     int    `yaml:"tick_rate" json:"tick_rate"`         // ticks per second
	Ticks        int    `yaml:"ticks" json:"ticks"`                 // 0 = run until interrupted
	ViewDistance int    `yaml:"view_distance" json:"view_distance"` // in chunks
	Orbit        Orbit  `yaml:"orbit" json:"orbit"`
	Journal      string `yaml:"journal" json:"journal"` // transition journal path, empty disables

	World   World        `yaml:"world" json:"world"`
	Noise   Noise        `yaml:"noise" json:"noise"`
	Climate Climate      `yaml:"climate" json:"climate"`
	Stream  StreamConfig `yaml:"stream" json:"stream"`
}

// Orbit moves the observer around the planet center.
type Orbit struct {
	Radius float32 `yaml:"radius" json:"radius"`
	// Speed is in radians per tick.
	Speed float32 `yaml:"speed" json:"speed"`
}

// World configures chunk placement and the planet shape.
type World struct {
	Mode         string  `yaml:"mode" json:"mode"`
	ChunkSize    int     `yaml:"chunk_size" json:"chunk_size"`
	VoxelSize    float32 `yaml:"voxel_size" json:"voxel_size"`
	Offset       Vec3    `yaml:"offset" json:"offset"`
	Center       Vec3    `yaml:"center" json:"center"`
	PlanetRadius float32 `yaml:"planet_radius" json:"planet_radius"`
	Bloat        float32 `yaml:"bloat" json:"bloat"`
	MantleRadius float32 `yaml:"mantle_radius" json:"mantle_radius"`
	CrustRadius  float32 `yaml:"crust_radius" json:"crust_radius"`
	LimitRadius  float32 `yaml:"limit_radius" json:"limit_radius"`
	GroundLevel  float32 `yaml:"ground_level" json:"ground_level"`
}

// Noise configures the terrain displacement noise.
type Noise struct {
	Function      string  `yaml:"function" json:"function"`
	Offset        Vec3    `yaml:"offset" json:"offset"`
	Scale         float64 `yaml:"scale" json:"scale"`
	Lacunarity    float64 `yaml:"lacunarity" json:"lacunarity"`
	Persistence   float64 `yaml:"persistence" json:"persistence"`
	Frequency     float64 `yaml:"frequency" json:"frequency"`
	Amplitude     float64 `yaml:"amplitude" json:"amplitude"`
	Octaves       int     `yaml:"octaves" json:"octaves"`
	OctaveOffsets []Vec3  `yaml:"octave_offsets,omitempty" json:"octave_offsets,omitempty"`
}

// Climate configures biome classification.
type Climate struct {
	Planetary   bool          `yaml:"planetary" json:"planetary"`
	Temperature climate.Range `yaml:"temperature" json:"temperature"`
	Humidity    climate.Range `yaml:"humidity" json:"humidity"`
	Stratum     climate.Range `yaml:"stratum" json:"stratum"`
	Latitude    climate.Range `yaml:"latitude" json:"latitude"`
	Elevation   climate.Range `yaml:"elevation" json:"elevation"`
	Entropy     Noise         `yaml:"entropy" json:"entropy"`
}

// StreamConfig configures the chunk streaming manager.
type StreamConfig struct {
	Workers        int `yaml:"workers" json:"workers"` // 0 = one per CPU
	MaxJobsPerTick int `yaml:"max_jobs_per_tick" json:"max_jobs_per_tick"`
	Hysteresis     int `yaml:"hysteresis" json:"hysteresis"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Seed:         1337,
		TickRate:     20,
		ViewDistance: 3,
		Orbit:        Orbit{Radius: 272, Speed: 0.01},
		World: World{
			Mode:         volume.Envelope.String(),
			ChunkSize:    16,
			VoxelSize:    1,
			PlanetRadius: 256,
			Bloat:        12,
			MantleRadius: 320,
			CrustRadius:  256,
			LimitRadius:  160,
		},
		Noise: Noise{
			Function:    noise.Simplex.String(),
			Scale:       48,
			Lacunarity:  2,
			Persistence: 0.5,
			Frequency:   1,
			Amplitude:   1,
			Octaves:     4,
		},
		Climate: Climate{
			Planetary:   true,
			Temperature: climate.Range{Min: -1, Max: 1},
			Humidity:    climate.Range{Min: -1, Max: 1},
			Stratum:     climate.Range{Min: -0.5, Max: 0.5},
			Latitude:    climate.Range{Min: -0.05, Max: 0.05},
			Elevation:   climate.Range{Min: 232, Max: 280},
			Entropy: Noise{
				Function:    noise.OpenSimplex.String(),
				Scale:       128,
				Lacunarity:  2,
				Persistence: 0.5,
				Frequency:   1,
				Amplitude:   1,
				Octaves:     3,
			},
		},
		Stream: StreamConfig{
			MaxJobsPerTick: 64,
			Hysteresis:     1,
		},
	}
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	seed, tickRate, ticks, view := cfg.Seed, cfg.TickRate, cfg.Ticks, cfg.ViewDistance
	journal, mode, workers := cfg.Journal, cfg.World.Mode, cfg.Stream.Workers

	*cfg = *fromFile

	if explicitFlags["seed"] {
		cfg.Seed = seed
	}
	if explicitFlags["tick-rate"] {
		cfg.TickRate = tickRate
	}
	if explicitFlags["ticks"] {
		cfg.Ticks = ticks
	}
	if explicitFlags["view-distance"] {
		cfg.ViewDistance = view
	}
	if explicitFlags["journal"] {
		cfg.Journal = journal
	}
	if explicitFlags["mode"] {
		cfg.World.Mode = mode
	}
	if explicitFlags["workers"] {
		cfg.Stream.Workers = workers
	}
}

// Load reads a YAML config. Fields missing from the file keep their
// defaults. The result is validated.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML config. Unknown keys are rejected.
func Parse(raw []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML atomically using a temp file + rename.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Validate checks cfg against the embedded JSON schema and resolves every
// enumerated name.
func (c *Config) Validate() error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if _, err := volume.ParseMode(c.World.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := noise.ParseFunction(c.Noise.Function); err != nil {
		return fmt.Errorf("%w: noise: %v", ErrInvalid, err)
	}
	if _, err := noise.ParseFunction(c.Climate.Entropy.Function); err != nil {
		return fmt.Errorf("%w: climate entropy: %v", ErrInvalid, err)
	}
	return nil
}

// WorldSettings converts the world section.
func (c *Config) WorldSettings() (volume.WorldSettings, error) {
	mode, err := volume.ParseMode(c.World.Mode)
	if err != nil {
		return volume.WorldSettings{}, err
	}
	w := c.World
	return volume.WorldSettings{
		Offset:       w.Offset.vec(),
		Center:       w.Center.vec(),
		Seed:         c.Seed,
		ChunkSize:    w.ChunkSize,
		VoxelSize:    w.VoxelSize,
		Mode:         mode,
		PlanetRadius: w.PlanetRadius,
		Bloat:        w.Bloat,
		MantleRadius: w.MantleRadius,
		CrustRadius:  w.CrustRadius,
		LimitRadius:  w.LimitRadius,
		GroundLevel:  w.GroundLevel,
	}, nil
}

// NoiseSettings converts the noise section. Size is the sample count per
// chunk side.
func (c *Config) NoiseSettings() (noise.Settings, error) {
	s, err := c.Noise.settings(c.Seed)
	if err != nil {
		return noise.Settings{}, err
	}
	s.Size = c.World.ChunkSize + 1
	return s, nil
}

// Selection converts the climate section into classification parameters.
// The entropy noise is seeded apart from the terrain noise.
func (c *Config) Selection() (climate.SelectionParams, error) {
	e, err := c.Climate.Entropy.settings(c.Seed + 1)
	if err != nil {
		return climate.SelectionParams{}, fmt.Errorf("climate entropy: %w", err)
	}
	cl := c.Climate
	return climate.SelectionParams{
		Climate: climate.Settings{
			Temperature: cl.Temperature,
			Humidity:    cl.Humidity,
			Stratum:     cl.Stratum,
			Latitude:    cl.Latitude,
			Planetary:   cl.Planetary,
			Seed:        c.Seed,
		},
		Entropy: climate.EntropySettings{
			Function:      e.Function,
			OctaveOffsets: e.OctaveOffsets,
			Lacunarity:    e.Lacunarity,
			Persistence:   e.Persistence,
			Scale:         e.Scale,
			Octaves:       e.Octaves,
			Seed:          e.Seed,
		},
		Elevation: cl.Elevation,
	}, nil
}

// StreamSettings converts the stream section. Zero workers selects the
// manager default.
func (c *Config) StreamSettings() stream.Config {
	sc := stream.DefaultConfig()
	if c.Stream.Workers > 0 {
		sc.Workers = c.Stream.Workers
	}
	sc.MaxJobsPerTick = c.Stream.MaxJobsPerTick
	sc.Hysteresis = c.Stream.Hysteresis
	return sc
}

func (n Noise) settings(seed int64) (noise.Settings, error) {
	fn, err := noise.ParseFunction(n.Function)
	if err != nil {
		return noise.Settings{}, err
	}
	var offsets []mgl32.Vec3
	for _, o := range n.OctaveOffsets {
		offsets = append(offsets, o.vec())
	}
	return noise.Settings{
		Offset:        n.Offset.vec(),
		Scale:         n.Scale,
		Lacunarity:    n.Lacunarity,
		Persistence:   n.Persistence,
		Frequency:     n.Frequency,
		Amplitude:     n.Amplitude,
		Seed:          seed,
		Size:          1,
		Octaves:       n.Octaves,
		Function:      fn,
		OctaveOffsets: offsets,
	}, nil
}
