package noise

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// ErrUnknownFunction is returned for a Function value with no primitive.
var ErrUnknownFunction = errors.New("unknown noise function")

// Function selects the base continuous noise primitive.
type Function int

const (
	Simplex Function = iota
	OpenSimplex
	Perlin
)

var functionNames = [...]string{
	Simplex:     "simplex",
	OpenSimplex: "opensimplex",
	Perlin:      "perlin",
}

func (f Function) String() string {
	if f < 0 || int(f) >= len(functionNames) {
		return fmt.Sprintf("Function(%d)", int(f))
	}
	return functionNames[f]
}

// ParseFunction resolves a case-insensitive function name.
func ParseFunction(name string) (Function, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range functionNames {
		if n == name {
			return Function(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
}

// Primitive is a single-octave continuous noise function with output
// roughly in [-1, 1].
type Primitive interface {
	Eval2(x, y float64) float64
	Eval3(x, y, z float64) float64
}

// NewPrimitive builds the primitive for f seeded with seed.
func NewPrimitive(f Function, seed int64) (Primitive, error) {
	switch f {
	case Simplex:
		return newSimplex(seed), nil
	case OpenSimplex:
		return opensimplex.New(seed), nil
	case Perlin:
		// One octave: the fractal layering happens in Sampler.
		return perlinPrimitive{p: perlin.NewPerlin(2, 2, 1, seed)}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFunction, int(f))
	}
}

type perlinPrimitive struct {
	p *perlin.Perlin
}

func (pp perlinPrimitive) Eval2(x, y float64) float64 {
	return pp.p.Noise2D(x, y)
}

func (pp perlinPrimitive) Eval3(x, y, z float64) float64 {
	return pp.p.Noise3D(x, y, z)
}
