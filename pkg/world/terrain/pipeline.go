// Package terrain chains field generation and surface extraction into the
// per-chunk job run by the streaming layer.
package terrain

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/climate"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/mesh"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/noise"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/volume"
)

// Mesh is the output of one chunk. Vertices holds unshared triangle
// triples and is nil when the chunk is entirely solid or entirely air.
type Mesh struct {
	Chunk    coord.Chunk
	Vertices []mgl32.Vec3
	// Climate is the most common classification among the chunk's samples.
	Climate climate.Climate
	LOD     int
}

// Empty reports whether the chunk produced no geometry.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Vertices) == 0
}

// Triangles returns the number of triangles in m.
func (m *Mesh) Triangles() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices) / 3
}

// Builder turns a chunk coordinate into a mesh. Implementations must be
// safe for concurrent use.
type Builder interface {
	Build(ctx context.Context, c coord.Chunk) (*Mesh, error)
}

// Pipeline is the default Builder.
type Pipeline struct {
	gen *volume.Generator
	lod int
}

// NewPipeline prepares the generator for the given settings.
func NewPipeline(world volume.WorldSettings, ns noise.Settings, sel climate.SelectionParams) (*Pipeline, error) {
	gen, err := volume.NewGenerator(world, ns, sel)
	if err != nil {
		return nil, fmt.Errorf("new pipeline: %w", err)
	}
	return &Pipeline{gen: gen}, nil
}

// Generator exposes the underlying field generator.
func (p *Pipeline) Generator() *volume.Generator {
	return p.gen
}

// Build generates the density field of c and extracts its surface.
func (p *Pipeline) Build(ctx context.Context, c coord.Chunk) (*Mesh, error) {
	f, err := p.gen.Generate(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("generate chunk %v: %w", c, err)
	}
	m := &Mesh{Chunk: c, LOD: p.lod, Climate: dominant(f.Climates)}
	if f.Uniform() {
		return m, nil
	}
	m.Vertices = mesh.Vertices(f, p.lod)
	return m, nil
}

func dominant(cs []climate.Climate) climate.Climate {
	counts := make(map[climate.Climate]int)
	var best climate.Climate
	for _, c := range cs {
		counts[c]++
		if n := counts[c]; n > counts[best] || (n == counts[best] && c < best) {
			best = c
		}
	}
	return best
}
