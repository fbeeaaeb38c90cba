// Package mesh extracts triangle soups from density fields with marching
// cubes.
package mesh

import (
	"iter"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/volume"
)

// Isolevel is the density of the extracted surface.
const Isolevel float32 = 0

const epsilon = 1e-5

// cornerOffsets lists the cube corners in table order.
var cornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// edgeCorners lists the two corners joined by each cube edge.
var edgeCorners = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// CubeIndex packs the corner signs: bit i is set when corner i is below the
// isolevel.
func CubeIndex(corners [8]float32) uint8 {
	var idx uint8
	for i, v := range corners {
		if v < Isolevel {
			idx |= 1 << i
		}
	}
	return idx
}

// Interpolate returns the point between p0 and p1 where the density crosses
// the isolevel.
func Interpolate(p0, p1 mgl32.Vec3, v0, v1 float32) mgl32.Vec3 {
	switch {
	case mgl32.Abs(Isolevel-v0) < epsilon:
		return p0
	case mgl32.Abs(Isolevel-v1) < epsilon:
		return p1
	case mgl32.Abs(v1-v0) < epsilon:
		return p0
	}
	t := (Isolevel - v0) / (v1 - v0)
	return p0.Add(p1.Sub(p0).Mul(t))
}

// Extract walks the (Size-1)³ cubes of f and yields triangle vertices in
// order; every three consecutive vertices form one triangle. lod is
// accepted for callers that track detail levels and does not change the
// output.
func Extract(f *volume.Field, lod int) iter.Seq[mgl32.Vec3] {
	_ = lod
	return func(yield func(mgl32.Vec3) bool) {
		if f == nil || f.Size < 2 {
			return
		}
		n := f.Size - 1
		var (
			values    [8]float32
			positions [8]mgl32.Vec3
			crossings [12]mgl32.Vec3
		)
		for z := range n {
			for y := range n {
				for x := range n {
					for i, o := range cornerOffsets {
						cx, cy, cz := x+o[0], y+o[1], z+o[2]
						values[i] = f.At(cx, cy, cz)
						positions[i] = f.Position(float32(cx), float32(cy), float32(cz))
					}
					idx := CubeIndex(values)
					edges := edgeTable[idx]
					if edges == 0 {
						continue
					}
					for e, c := range edgeCorners {
						if edges&(1<<e) != 0 {
							crossings[e] = Interpolate(positions[c[0]], positions[c[1]], values[c[0]], values[c[1]])
						}
					}
					for _, e := range triTable[idx] {
						if e < 0 {
							break
						}
						if !yield(crossings[e]) {
							return
						}
					}
				}
			}
		}
	}
}

// Vertices collects Extract into a slice.
func Vertices(f *volume.Field, lod int) []mgl32.Vec3 {
	return slices.Collect(Extract(f, lod))
}

// TriangleCount returns how many triangles Extract would yield for f
// without interpolating any vertex.
func TriangleCount(f *volume.Field) int {
	if f == nil || f.Size < 2 {
		return 0
	}
	n := f.Size - 1
	total := 0
	var values [8]float32
	for z := range n {
		for y := range n {
			for x := range n {
				for i, o := range cornerOffsets {
					values[i] = f.At(x+o[0], y+o[1], z+o[2])
				}
				total += trianglesFor(CubeIndex(values))
			}
		}
	}
	return total
}

func trianglesFor(idx uint8) int {
	row := &triTable[idx]
	n := 0
	for n < len(row) && row[n] >= 0 {
		n++
	}
	return n / 3
}
