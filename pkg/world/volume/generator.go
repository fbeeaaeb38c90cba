package volume

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/climate"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/noise"
)

// Generator fills chunk density fields. It holds only immutable state and
// may be shared by concurrent Generate calls.
type Generator struct {
	world      WorldSettings
	sampler    *noise.Sampler
	classifier *climate.Classifier
	selection  climate.SelectionParams
	root       *climate.Deviation
	workers    int
}

// NewGenerator builds the samplers for a world. It fails when a noise
// function or the mode is not recognised. The climate deviation is seeded
// from the world seed and then forked by the climate seed.
func NewGenerator(world WorldSettings, ns noise.Settings, sel climate.SelectionParams) (*Generator, error) {
	sampler, err := noise.NewSampler(ns)
	if err != nil {
		return nil, fmt.Errorf("terrain noise: %w", err)
	}
	classifier, err := climate.NewClassifier(sel)
	if err != nil {
		return nil, err
	}
	world = world.Normalize()
	if !world.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(world.Mode))
	}
	return &Generator{
		world:      world,
		sampler:    sampler,
		classifier: classifier,
		selection:  sel,
		root:       climate.NewDeviation(world.Seed).Fork(sel.Climate.Seed),
		workers:    runtime.GOMAXPROCS(0),
	}, nil
}

// World returns the normalized world settings.
func (g *Generator) World() WorldSettings {
	return g.world
}

// Origin returns the world-space position of the first sample of c.
func (g *Generator) Origin(c coord.Chunk) mgl32.Vec3 {
	side := float32(g.world.ChunkSize) * g.world.VoxelSize
	return g.world.Offset.Add(mgl32.Vec3{float32(c.X), float32(c.Y), float32(c.Z)}.Mul(side))
}

// Generate samples ChunkSize+1 points per side for chunk c, so that
// neighbouring chunks share their boundary samples. Each sample draws from a
// Deviation forked by its global grid position, which keeps shared samples
// identical across chunks. The context is only checked before work starts;
// once running, generation completes.
func (g *Generator) Generate(ctx context.Context, c coord.Chunk) (*Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := g.world.ChunkSize + 1
	f := NewField(size, g.Origin(c), g.world.VoxelSize)
	f.Climates = make([]climate.Climate, len(f.Values))
	ext := f.Extent()

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for z := range size {
		eg.Go(func() error {
			gz := int64(c.Z*g.world.ChunkSize + z)
			for y := range size {
				gy := int64(c.Y*g.world.ChunkSize + y)
				for x := range size {
					gx := int64(c.X*g.world.ChunkSize + x)
					i := ext.Flatten(x, y, z)
					p := f.Position(float32(x), float32(y), float32(z))
					f.Values[i], f.Climates[i] = g.Density(p, g.root.Fork(gx, gy, gz))
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// Density returns the density and climate at world-space point p. The
// climate is zero where the layered short-circuit applies.
func (g *Generator) Density(p mgl32.Vec3, dev *climate.Deviation) (float32, climate.Climate) {
	w := &g.world
	rel := p.Sub(w.Center)
	d2 := rel.Dot(rel)

	radius := w.PlanetRadius
	switch w.Mode {
	case Layered:
		if d2 < w.LimitRadius*w.LimitRadius || d2 > w.MantleRadius*w.MantleRadius {
			return -1, 0
		}
		radius = w.CrustRadius
	case Flat:
		cl := g.classify(p, dev)
		n := g.sampler.Sample2(float64(p[0]), float64(p[2]))
		ground := w.GroundLevel + w.Bloat*float32(n)*climate.Relief(cl)
		return p[1] - ground, cl
	}

	cl := g.classify(rel, dev)
	n := g.sampler.Sample3(p)
	surface := max(radius+w.Bloat*float32(n)*climate.Relief(cl), 0)

	if w.Mode == Continuous {
		return float32(math.Sqrt(float64(d2))) - surface, cl
	}
	if d2 < surface*surface {
		return -1, cl
	}
	return 1, cl
}

func (g *Generator) classify(point mgl32.Vec3, dev *climate.Deviation) climate.Climate {
	p := g.selection
	p.Point = point
	return g.classifier.Classify(p, dev)
}
