package stream

import "github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"

// queue is a FIFO of unique chunks. Removal is lazy: the chunk leaves the
// set immediately and its slot is skipped on the next pop.
type queue struct {
	order []coord.Chunk
	set   map[coord.Chunk]struct{}
}

func newQueue() *queue {
	return &queue{set: make(map[coord.Chunk]struct{})}
}

func (q *queue) push(c coord.Chunk) bool {
	if _, ok := q.set[c]; ok {
		return false
	}
	q.set[c] = struct{}{}
	q.order = append(q.order, c)
	return true
}

func (q *queue) remove(c coord.Chunk) bool {
	if _, ok := q.set[c]; !ok {
		return false
	}
	delete(q.set, c)
	return true
}

func (q *queue) has(c coord.Chunk) bool {
	_, ok := q.set[c]
	return ok
}

func (q *queue) len() int {
	return len(q.set)
}

// pop removes and returns up to limit chunks in insertion order.
func (q *queue) pop(limit int) []coord.Chunk {
	var out []coord.Chunk
	i := 0
	for ; i < len(q.order) && len(out) < limit; i++ {
		c := q.order[i]
		if _, ok := q.set[c]; !ok {
			continue
		}
		delete(q.set, c)
		out = append(out, c)
	}
	q.order = q.order[i:]
	if len(q.set) == 0 {
		q.order = nil
	}
	return out
}
