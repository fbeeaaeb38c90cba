package volume

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Mode selects how density is derived from a world-space point.
type Mode int

const (
	// Envelope marks points inside the noise-displaced planet radius -1 and
	// everything else +1.
	Envelope Mode = iota
	// Continuous uses the displaced signed distance to the surface as density.
	Continuous
	// Layered restricts Envelope generation to the annulus between
	// LimitRadius and MantleRadius.
	Layered
	// Flat builds a heightfield-like world around GroundLevel on the Y axis.
	Flat
)

// ErrUnknownMode is returned for a mode name or value outside the known set.
var ErrUnknownMode = errors.New("unknown volume mode")

var modeNames = [...]string{
	Envelope:   "envelope",
	Continuous: "continuous",
	Layered:    "layered",
	Flat:       "flat",
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m >= 0 && int(m) < len(modeNames)
}

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode resolves a case-insensitive mode name.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownMode, name)
}

// WorldSettings positions chunks in world space and shapes the planet.
type WorldSettings struct {
	// Offset is the world-space position of chunk (0,0,0)'s first sample.
	Offset mgl32.Vec3
	// Center is the planet center.
	Center    mgl32.Vec3
	Seed      int64
	ChunkSize int
	VoxelSize float32
	Mode      Mode

	PlanetRadius float32
	// Bloat scales noise displacement at the surface boundary.
	Bloat float32

	MantleRadius float32
	CrustRadius  float32
	LimitRadius  float32

	GroundLevel float32
}

// DefaultWorldSettings describes a small planet.
func DefaultWorldSettings() WorldSettings {
	return WorldSettings{
		ChunkSize:    16,
		VoxelSize:    1,
		Mode:         Envelope,
		PlanetRadius: 256,
		Bloat:        12,
		MantleRadius: 320,
		CrustRadius:  256,
		LimitRadius:  160,
	}
}

// Normalize clamps degenerate values.
func (w WorldSettings) Normalize() WorldSettings {
	if w.ChunkSize < 1 {
		w.ChunkSize = 1
	}
	if !(w.VoxelSize > 0) {
		w.VoxelSize = 1
	}
	if w.PlanetRadius < 0 {
		w.PlanetRadius = 0
	}
	if w.LimitRadius < 0 {
		w.LimitRadius = 0
	}
	if w.MantleRadius < w.LimitRadius {
		w.MantleRadius = w.LimitRadius
	}
	return w
}
