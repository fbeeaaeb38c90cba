package noise

// simplex is the in-repo simplex primitive. It needs no allocation per
// sample and its permutation table is derived from the seed only.
type simplex struct {
	perm [512]uint8
}

var gradients = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

const (
	skew2   = 0.36602540378443864676 // (sqrt(3) - 1) / 2
	unskew2 = 0.21132486540518711775 // (3 - sqrt(3)) / 6
	skew3   = 1.0 / 3.0
	unskew3 = 1.0 / 6.0
)

func newSimplex(seed int64) *simplex {
	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}

	// Fisher-Yates driven by the same LCG the deviation generator uses.
	state := uint64(seed)
	for i := 255; i > 0; i-- {
		state = lcgNext(state)
		j := int((state >> 33) % uint64(i+1))
		p[i], p[j] = p[j], p[i]
	}

	s := &simplex{}
	for i := range s.perm {
		s.perm[i] = p[i&255]
	}
	return s
}

func lcgNext(state uint64) uint64 {
	return state*6364136223846793005 + 1442695040888963407
}

func (s *simplex) grad(i int) *[3]float64 {
	return &gradients[int(s.perm[i])%12]
}

func (s *simplex) Eval2(x, y float64) float64 {
	k := (x + y) * skew2
	i := floor(x + k)
	j := floor(y + k)

	t := float64(i+j) * unskew2
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)

	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}

	x1 := x0 - float64(i1) + unskew2
	y1 := y0 - float64(j1) + unskew2
	x2 := x0 - 1 + 2*unskew2
	y2 := y0 - 1 + 2*unskew2

	ii, jj := i&255, j&255
	sum := corner2(s.grad(ii+int(s.perm[jj])), x0, y0) +
		corner2(s.grad(ii+i1+int(s.perm[jj+j1])), x1, y1) +
		corner2(s.grad(ii+1+int(s.perm[jj+1])), x2, y2)
	return 70 * sum
}

func (s *simplex) Eval3(x, y, z float64) float64 {
	k := (x + y + z) * skew3
	i := floor(x + k)
	j := floor(y + k)
	l := floor(z + k)

	t := float64(i+j+l) * unskew3
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)
	z0 := z - (float64(l) - t)

	var i1, j1, k1, i2, j2, k2 int
	switch {
	case x0 >= y0 && y0 >= z0:
		i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 1, 0
	case x0 >= y0 && x0 >= z0:
		i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 0, 1
	case x0 >= y0:
		i1, j1, k1, i2, j2, k2 = 0, 0, 1, 1, 0, 1
	case y0 < z0:
		i1, j1, k1, i2, j2, k2 = 0, 0, 1, 0, 1, 1
	case x0 < z0:
		i1, j1, k1, i2, j2, k2 = 0, 1, 0, 0, 1, 1
	default:
		i1, j1, k1, i2, j2, k2 = 0, 1, 0, 1, 1, 0
	}

	x1 := x0 - float64(i1) + unskew3
	y1 := y0 - float64(j1) + unskew3
	z1 := z0 - float64(k1) + unskew3
	x2 := x0 - float64(i2) + 2*unskew3
	y2 := y0 - float64(j2) + 2*unskew3
	z2 := z0 - float64(k2) + 2*unskew3
	x3 := x0 - 1 + 3*unskew3
	y3 := y0 - 1 + 3*unskew3
	z3 := z0 - 1 + 3*unskew3

	ii, jj, ll := i&255, j&255, l&255
	p := &s.perm
	sum := corner3(s.grad(ii+int(p[jj+int(p[ll])])), x0, y0, z0) +
		corner3(s.grad(ii+i1+int(p[jj+j1+int(p[ll+k1])])), x1, y1, z1) +
		corner3(s.grad(ii+i2+int(p[jj+j2+int(p[ll+k2])])), x2, y2, z2) +
		corner3(s.grad(ii+1+int(p[jj+1+int(p[ll+1])])), x3, y3, z3)
	return 32 * sum
}

func corner2(g *[3]float64, x, y float64) float64 {
	t := 0.5 - x*x - y*y
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (g[0]*x + g[1]*y)
}

func corner3(g *[3]float64, x, y, z float64) float64 {
	t := 0.6 - x*x - y*y - z*z
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (g[0]*x + g[1]*y + g[2]*z)
}

func floor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}
