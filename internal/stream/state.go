package stream

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/terrain"
)

// State is the lifecycle stage of a chunk.
type State uint8

const (
	// Created is a chunk that has been requested but not generated.
	Created State = iota
	// Loaded is a chunk whose first mesh is registered.
	Loaded
	// Dirty is a registered chunk waiting for regeneration.
	Dirty
	// MeshReady is a chunk whose regenerated mesh is registered.
	MeshReady
	// MarkedForDelete is a chunk being released.
	MarkedForDelete
)

var stateNames = [...]string{
	Created:         "created",
	Loaded:          "loaded",
	Dirty:           "dirty",
	MeshReady:       "mesh_ready",
	MarkedForDelete: "marked_for_delete",
}

func (s State) String() string {
	if int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", uint8(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition describes one state change of a chunk.
type Transition struct {
	Chunk  coord.Chunk
	From   State
	To     State
	Handle uuid.UUID
	// Mesh is set on transitions into Loaded and MeshReady.
	Mesh *terrain.Mesh
}

// Listener receives transitions on the goroutine that calls Tick.
type Listener interface {
	OnTransition(Transition)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Transition)

// OnTransition calls f(t).
func (f ListenerFunc) OnTransition(t Transition) { f(t) }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown chunk state %q", b)
}
