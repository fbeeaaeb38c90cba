package climate

// Deviation is a small seeded generator for per-sample climate jitter. It
// is sequential: every draw advances its state. Parallel callers must Fork
// their own copy.
type Deviation struct {
	state uint64
}

// NewDeviation seeds a generator.
func NewDeviation(seed int64) *Deviation {
	return &Deviation{state: mix64(uint64(seed))}
}

// Fork derives an independent generator from d's seed state and keys
// without advancing d.
func (d *Deviation) Fork(keys ...int64) *Deviation {
	s := d.state
	for _, k := range keys {
		s = mix64(s ^ (uint64(k) * 0x9e3779b97f4a7c15))
	}
	return &Deviation{state: s}
}

// Float returns the next value in [0, 1).
func (d *Deviation) Float() float32 {
	d.state = d.state*6364136223846793005 + 1442695040888963407
	return float32(mix64(d.state)>>40) / (1 << 24)
}

// Between returns the next value in [r.Min, r.Max]. An inverted range is
// collapsed first.
func (d *Deviation) Between(r Range) float32 {
	r = r.Normalize()
	return r.Min + (r.Max-r.Min)*d.Float()
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
