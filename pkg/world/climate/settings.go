package climate

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/noise"
)

// Range is an inclusive float interval.
type Range struct {
	Min float32 `yaml:"min" json:"min"`
	Max float32 `yaml:"max" json:"max"`
}

// Normalize collapses an inverted range onto its minimum.
func (r Range) Normalize() Range {
	if r.Min > r.Max {
		r.Max = r.Min
	}
	return r
}

// Settings holds the variability of each climate attribute.
type Settings struct {
	Temperature Range
	Humidity    Range
	Stratum     Range
	Latitude    Range
	Planetary   bool
	// Seed seeds the deviation generator.
	Seed int64
}

// Normalize fixes inverted ranges.
func (s Settings) Normalize() Settings {
	s.Temperature = s.Temperature.Normalize()
	s.Humidity = s.Humidity.Normalize()
	s.Stratum = s.Stratum.Normalize()
	s.Latitude = s.Latitude.Normalize()
	return s
}

// EntropySettings configures the noise that drives climate variation.
type EntropySettings struct {
	Function      noise.Function
	OctaveOffsets []mgl32.Vec3
	Lacunarity    float64
	Persistence   float64
	Scale         float64
	Octaves       int
	Seed          int64
}

// NoiseSettings converts e into sampler settings.
func (e EntropySettings) NoiseSettings() noise.Settings {
	return noise.Settings{
		Scale:         e.Scale,
		Lacunarity:    e.Lacunarity,
		Persistence:   e.Persistence,
		Frequency:     1,
		Amplitude:     1,
		Seed:          e.Seed,
		Size:          1,
		Octaves:       e.Octaves,
		Function:      e.Function,
		OctaveOffsets: e.OctaveOffsets,
	}
}

// SelectionParams bundles everything needed to classify one point.
type SelectionParams struct {
	Climate Settings
	Entropy EntropySettings
	// Point is the query location. In planetary mode it is relative to the
	// planet center.
	Point mgl32.Vec3
	// Elevation bounds the terrain: a height in flat mode, a radius in
	// planetary mode.
	Elevation Range
}
