package coord

// Extent describes a dense 3D grid flattened with x varying fastest:
// index = x + y*Width + z*Width*Height.
type Extent struct {
	Width, Height, Depth int
}

// Cube returns the extent of a size×size×size grid.
func Cube(size int) Extent {
	return Extent{Width: size, Height: size, Depth: size}
}

// Len returns the number of cells in the grid.
func (e Extent) Len() int {
	return e.Width * e.Height * e.Depth
}

// Contains reports whether (x, y, z) lies inside the grid.
func (e Extent) Contains(x, y, z int) bool {
	return x >= 0 && x < e.Width &&
		y >= 0 && y < e.Height &&
		z >= 0 && z < e.Depth
}

// Flatten maps (x, y, z) to its flat index. Callers must keep the
// coordinate in bounds.
func (e Extent) Flatten(x, y, z int) int {
	return x + y*e.Width + z*e.Width*e.Height
}

// Unflatten is the inverse of Flatten.
func (e Extent) Unflatten(i int) (x, y, z int) {
	plane := e.Width * e.Height
	z = i / plane
	i -= z * plane
	y = i / e.Width
	x = i - y*e.Width
	return x, y, z
}
