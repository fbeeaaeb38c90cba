package volume

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/climate"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
)

// Field is a dense cube of density samples. Negative values are solid,
// non-negative values are air.
type Field struct {
	Size   int
	Origin mgl32.Vec3
	Step   float32
	Values []float32
	// Climates holds the classification per sample; zero where generation
	// short-circuited. It may be nil for hand-built fields.
	Climates []climate.Climate
}

// NewField allocates a size³ field filled with air.
func NewField(size int, origin mgl32.Vec3, step float32) *Field {
	f := &Field{
		Size:   size,
		Origin: origin,
		Step:   step,
		Values: make([]float32, size*size*size),
	}
	for i := range f.Values {
		f.Values[i] = 1
	}
	return f
}

// Extent returns the flattening used for Values and Climates.
func (f *Field) Extent() coord.Extent {
	return coord.Cube(f.Size)
}

// At returns the density at (x, y, z).
func (f *Field) At(x, y, z int) float32 {
	return f.Values[f.Extent().Flatten(x, y, z)]
}

// Set stores the density at (x, y, z).
func (f *Field) Set(x, y, z int, v float32) {
	f.Values[f.Extent().Flatten(x, y, z)] = v
}

// Position returns the world-space location of sample (x, y, z).
func (f *Field) Position(x, y, z float32) mgl32.Vec3 {
	return f.Origin.Add(mgl32.Vec3{x, y, z}.Mul(f.Step))
}

// Uniform reports whether every sample is on the same side of the surface.
// Such fields produce no geometry.
func (f *Field) Uniform() bool {
	if len(f.Values) == 0 {
		return true
	}
	solid := f.Values[0] < 0
	for _, v := range f.Values[1:] {
		if (v < 0) != solid {
			return false
		}
	}
	return true
}
