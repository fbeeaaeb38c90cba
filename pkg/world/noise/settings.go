package noise

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MinScale is the floor applied to non-positive scales.
	MinScale = 1e-4
	// MaxOctaves bounds the octave count.
	MaxOctaves = 8
)

// Settings configures a fractal noise sampler. Settings are a value type;
// a Sampler keeps its own normalized copy.
type Settings struct {
	Offset      mgl32.Vec3
	Scale       float64
	Lacunarity  float64 // frequency multiplier per octave
	Persistence float64 // amplitude decay per octave
	Frequency   float64
	Amplitude   float64
	Seed        int64
	Size        int // cubic grid size used by bulk sampling
	Octaves     int
	Function    Function

	// OctaveOffsets shifts each octave independently. Missing entries are zero.
	OctaveOffsets []mgl32.Vec3
}

// DefaultSettings returns settings for a single-octave simplex field.
func DefaultSettings() Settings {
	return Settings{
		Scale:       1,
		Lacunarity:  2,
		Persistence: 0.5,
		Frequency:   1,
		Amplitude:   1,
		Size:        16,
		Octaves:     1,
		Function:    Simplex,
	}
}

// Normalize clamps degenerate values into a usable range.
func (s Settings) Normalize() Settings {
	if !(s.Scale > 0) {
		s.Scale = MinScale
	}
	if !(s.Frequency > 0) {
		s.Frequency = MinScale
	}
	if !(s.Lacunarity > 0) {
		s.Lacunarity = 1
	}
	if !(s.Persistence >= 0) {
		s.Persistence = 0
	} else if s.Persistence > 1 {
		s.Persistence = 1
	}
	if s.Octaves < 1 {
		s.Octaves = 1
	} else if s.Octaves > MaxOctaves {
		s.Octaves = MaxOctaves
	}
	if s.Size < 1 {
		s.Size = 1
	}
	if len(s.OctaveOffsets) > 0 {
		s.OctaveOffsets = append([]mgl32.Vec3(nil), s.OctaveOffsets...)
	}
	return s
}

func (s Settings) octaveOffset(i int) mgl32.Vec3 {
	if i < len(s.OctaveOffsets) {
		return s.OctaveOffsets[i]
	}
	return mgl32.Vec3{}
}
