package noise

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
)

// Sampler layers octaves of a Primitive into fractal noise. A Sampler is
// immutable after construction and safe for concurrent use.
type Sampler struct {
	settings Settings
	base     Primitive
}

// NewSampler normalizes s and builds its primitive. An unrecognized
// Function fails with ErrUnknownFunction.
func NewSampler(s Settings) (*Sampler, error) {
	s = s.Normalize()
	base, err := NewPrimitive(s.Function, s.Seed)
	if err != nil {
		return nil, fmt.Errorf("new sampler: %w", err)
	}
	return &Sampler{settings: s, base: base}, nil
}

// Settings returns the normalized settings the sampler runs with.
func (s *Sampler) Settings() Settings {
	return s.settings
}

// Sample2 returns the fractal sum at (x, y). The Z offset is ignored.
func (s *Sampler) Sample2(x, y float64) float64 {
	st := &s.settings
	frequency := st.Frequency
	amplitude := st.Amplitude

	var total float64
	for i := range st.Octaves {
		off := st.Offset.Add(st.octaveOffset(i))
		div := st.Scale * frequency
		total += s.base.Eval2((x+float64(off[0]))/div, (y+float64(off[1]))/div) * amplitude
		frequency *= st.Lacunarity
		amplitude *= st.Persistence
	}
	return total
}

// Sample3 returns the fractal sum at p.
func (s *Sampler) Sample3(p mgl32.Vec3) float64 {
	st := &s.settings
	frequency := st.Frequency
	amplitude := st.Amplitude

	var total float64
	for i := range st.Octaves {
		q := p.Add(st.Offset).Add(st.octaveOffset(i))
		div := st.Scale * frequency
		total += s.base.Eval3(float64(q[0])/div, float64(q[1])/div, float64(q[2])/div) * amplitude
		frequency *= st.Lacunarity
		amplitude *= st.Persistence
	}
	return total
}

// Field2 samples a width×height grid starting at origin with the given
// step. The result is row-major with x varying fastest.
func (s *Sampler) Field2(originX, originY float64, width, height int, step float64) []float64 {
	if width <= 0 || height <= 0 {
		return nil
	}
	out := make([]float64, width*height)
	for y := range height {
		fy := originY + float64(y)*step
		row := out[y*width : (y+1)*width]
		for x := range row {
			row[x] = s.Sample2(originX+float64(x)*step, fy)
		}
	}
	return out
}

// Field3 samples a Size³ grid starting at origin with the given step,
// flattened with coord.Cube(Size).
func (s *Sampler) Field3(origin mgl32.Vec3, step float32) []float32 {
	ext := coord.Cube(s.settings.Size)
	out := make([]float32, ext.Len())
	for i := range out {
		x, y, z := ext.Unflatten(i)
		p := origin.Add(mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(step))
		out[i] = float32(s.Sample3(p))
	}
	return out
}
