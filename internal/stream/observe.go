package stream

import (
	"slices"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
)

// Observe requests every chunk within radius of center, nearest first, and
// unloads loaded or queued chunks farther than radius plus the configured
// hysteresis. It returns how many loads and unloads were queued.
func (m *Manager) Observe(center coord.Chunk, radius int) (requested, released int) {
	radius = max(radius, 0)
	r2 := radius * radius

	var want []coord.Chunk
	for dz := -radius; dz <= radius; dz++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				c := center.Add(coord.Chunk{X: dx, Y: dy, Z: dz})
				if center.DistSq(c) <= r2 {
					want = append(want, c)
				}
			}
		}
	}
	for _, c := range sortedByDistance(center, want) {
		if m.RequestLoad(c) {
			requested++
		}
	}

	keep := radius + m.cfg.Hysteresis
	keep2 := keep * keep

	m.mu.Lock()
	var far []coord.Chunk
	for c := range m.registry {
		if center.DistSq(c) > keep2 {
			far = append(far, c)
		}
	}
	for c := range m.loads.set {
		if center.DistSq(c) > keep2 {
			far = append(far, c)
		}
	}
	for c := range m.inFlight {
		if center.DistSq(c) > keep2 {
			far = append(far, c)
		}
	}
	m.mu.Unlock()

	for _, c := range sortedByDistance(center, far) {
		if m.RequestUnload(c) {
			released++
		}
	}
	return requested, released
}

// sortedByDistance sorts cs in place by distance to center, ties broken by
// X, Y, Z order, and returns it.
func sortedByDistance(center coord.Chunk, cs []coord.Chunk) []coord.Chunk {
	slices.SortFunc(cs, func(a, b coord.Chunk) int {
		da, db := center.DistSq(a), center.DistSq(b)
		if da != db {
			return da - db
		}
		return compareChunks(a, b)
	})
	return cs
}
