package app

import (
	"sync"

	"github.com/google/uuid"

	"github.com/OCharnyshevich/voxel-terrain/internal/stream"
)

// RenderSink stands in for the renderer: it keeps the triangle count of
// every live chunk handle.
type RenderSink struct {
	mu        sync.Mutex
	triangles map[uuid.UUID]int
	uploads   int
}

// NewRenderSink returns an empty sink.
func NewRenderSink() *RenderSink {
	return &RenderSink{triangles: make(map[uuid.UUID]int)}
}

// OnTransition uploads or releases geometry.
func (s *RenderSink) OnTransition(t stream.Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t.To {
	case stream.Loaded, stream.MeshReady:
		s.triangles[t.Handle] = t.Mesh.Triangles()
		s.uploads++
	case stream.MarkedForDelete:
		delete(s.triangles, t.Handle)
	}
}

// Totals returns the live chunk count, their triangle total and the number
// of uploads so far.
func (s *RenderSink) Totals() (chunks, triangles, uploads int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.triangles {
		triangles += n
	}
	return len(s.triangles), triangles, s.uploads
}
