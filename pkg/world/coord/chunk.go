package coord

import "fmt"

// Chunk addresses a cubic region of the world on the integer chunk grid.
type Chunk struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (c Chunk) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Add returns c offset by o.
func (c Chunk) Add(o Chunk) Chunk {
	return Chunk{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

// DistSq returns the squared grid distance between c and o.
func (c Chunk) DistSq(o Chunk) int {
	dx, dy, dz := c.X-o.X, c.Y-o.Y, c.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

// Less orders chunks by X, then Y, then Z.
func (c Chunk) Less(o Chunk) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

var faceOffsets = [6]Chunk{
	{X: -1}, {X: 1},
	{Y: -1}, {Y: 1},
	{Z: -1}, {Z: 1},
}

// Neighbors returns the six face-adjacent chunks.
func (c Chunk) Neighbors() [6]Chunk {
	var out [6]Chunk
	for i, o := range faceOffsets {
		out[i] = c.Add(o)
	}
	return out
}

// ChunkAt returns the chunk containing the world-space point (x, y, z) for
// chunks of the given side length in world units.
func ChunkAt(x, y, z, side float32) Chunk {
	return Chunk{X: floorDiv(x, side), Y: floorDiv(y, side), Z: floorDiv(z, side)}
}

func floorDiv(v, side float32) int {
	q := v / side
	i := int(q)
	if q < float32(i) {
		i--
	}
	return i
}
