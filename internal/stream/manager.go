// Package stream schedules chunk generation around an observer. A single
// coordinator goroutine calls Tick; any goroutine may queue requests.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/terrain"
)

// Config tunes the manager.
type Config struct {
	// Workers bounds concurrently running generation jobs.
	Workers int
	// MaxJobsPerTick bounds jobs started per Tick. Zero means no limit.
	MaxJobsPerTick int
	// Hysteresis is the extra radius, in chunks, before Observe unloads.
	Hysteresis int
}

// DefaultConfig returns a Config sized for the current machine.
func DefaultConfig() Config {
	return Config{
		Workers:        runtime.NumCPU(),
		MaxJobsPerTick: 64,
		Hysteresis:     1,
	}
}

// Stats summarises one Tick.
type Stats struct {
	Loaded   int
	Rebuilt  int
	Unloaded int
	// Failed counts jobs whose build returned an error other than the
	// tick's cancellation.
	Failed int
	// Requeued counts jobs skipped by a cancelled tick and queued again.
	Requeued int
	// Pending counts loads and rebuilds still queued after the tick.
	Pending int
}

type entry struct {
	handle uuid.UUID
	state  State
	mesh   *terrain.Mesh
}

type jobKind uint8

const (
	jobLoad jobKind = iota
	jobRebuild
)

type result struct {
	mesh *terrain.Mesh
	err  error
}

type job struct {
	chunk coord.Chunk
	kind  jobKind
	res   result
}

// Manager owns the load, unload and rebuild queues and the registry of
// loaded chunks. The registry is only changed by Tick, after every job of
// the batch has been joined.
type Manager struct {
	cfg Config
	log *slog.Logger

	tickMu sync.Mutex

	mu        sync.Mutex
	builder   terrain.Builder
	loads     *queue
	unloads   *queue
	dirty     *queue
	inFlight  map[coord.Chunk]struct{}
	registry  map[coord.Chunk]*entry
	listeners []Listener
	newHandle func() uuid.UUID
}

// NewManager creates a manager that builds chunks with b.
func NewManager(b terrain.Builder, cfg Config, log *slog.Logger) *Manager {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Hysteresis < 0 {
		cfg.Hysteresis = 0
	}
	return &Manager{
		cfg:       cfg,
		log:       log,
		builder:   b,
		loads:     newQueue(),
		unloads:   newQueue(),
		dirty:     newQueue(),
		inFlight:  make(map[coord.Chunk]struct{}),
		registry:  make(map[coord.Chunk]*entry),
		newHandle: uuid.New,
	}
}

// AddListener registers l for every later transition.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// SetBuilder replaces the builder used by jobs started after the call.
// Call Invalidate to rebuild chunks made with the previous one.
func (m *Manager) SetBuilder(b terrain.Builder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builder = b
}

// RequestLoad queues c for generation. It returns false when c is already
// queued, in flight or loaded. A pending unload of c is cancelled.
func (m *Manager) RequestLoad(c coord.Chunk) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unloads.remove(c) {
		return true
	}
	if _, ok := m.registry[c]; ok {
		return false
	}
	if _, ok := m.inFlight[c]; ok {
		return false
	}
	return m.loads.push(c)
}

// RequestUnload queues c for release. A chunk still waiting in the load
// queue is simply dropped. A chunk being generated is released once its
// job has been joined.
func (m *Manager) RequestUnload(c coord.Chunk) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loads.remove(c) {
		return true
	}
	_, loaded := m.registry[c]
	_, running := m.inFlight[c]
	if !loaded && !running {
		return false
	}
	return m.unloads.push(c)
}

// MarkDirty queues a loaded chunk for regeneration.
func (m *Manager) MarkDirty(c coord.Chunk) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markDirty(c)
}

func (m *Manager) markDirty(c coord.Chunk) bool {
	if _, ok := m.registry[c]; !ok || m.unloads.has(c) {
		return false
	}
	return m.dirty.push(c)
}

// MarkNeighborsDirty queues the loaded face neighbours of c and returns how
// many were queued.
func (m *Manager) MarkNeighborsDirty(c coord.Chunk) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, nb := range c.Neighbors() {
		if m.markDirty(nb) {
			n++
		}
	}
	return n
}

// Invalidate queues every loaded chunk for regeneration, nearest to the
// grid origin first.
func (m *Manager) Invalidate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range sortedByDistance(coord.Chunk{}, keys(m.registry)) {
		if m.markDirty(c) {
			n++
		}
	}
	return n
}

// Tick runs one scheduling round: it starts up to MaxJobsPerTick loads and
// rebuilds, waits for all of them, registers their meshes in dequeue order,
// then releases chunks queued for unload. Tick returns early with the
// context's error only when ctx is already done on entry.
func (m *Manager) Tick(ctx context.Context) (Stats, error) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	start := time.Now()

	m.mu.Lock()
	builder := m.builder
	jobs, events := m.dequeue()
	m.mu.Unlock()
	m.emit(events)

	m.run(ctx, builder, jobs)

	var st Stats
	m.mu.Lock()
	events = m.apply(ctx, jobs, &st)
	events = append(events, m.release(&st)...)
	st.Pending = m.loads.len() + m.dirty.len()
	m.mu.Unlock()
	m.emit(events)

	if len(jobs) > 0 || st.Unloaded > 0 {
		m.log.Debug("stream tick",
			"jobs", len(jobs),
			"loaded", st.Loaded,
			"rebuilt", st.Rebuilt,
			"unloaded", st.Unloaded,
			"failed", st.Failed,
			"requeued", st.Requeued,
			"pending", st.Pending,
			"elapsed", time.Since(start),
		)
	}
	return st, nil
}

// dequeue moves queued work into the in-flight set. Loads are taken before
// rebuilds. m.mu must be held.
func (m *Manager) dequeue() ([]*job, []Transition) {
	budget := m.cfg.MaxJobsPerTick
	if budget <= 0 {
		budget = math.MaxInt
	}

	var jobs []*job
	for _, c := range m.loads.pop(budget) {
		m.inFlight[c] = struct{}{}
		jobs = append(jobs, &job{chunk: c, kind: jobLoad})
	}

	var events []Transition
	for _, c := range m.dirty.pop(budget - len(jobs)) {
		e, ok := m.registry[c]
		if !ok || m.unloads.has(c) {
			continue
		}
		if e.state != Dirty {
			events = append(events, Transition{Chunk: c, From: e.state, To: Dirty, Handle: e.handle})
			e.state = Dirty
		}
		m.inFlight[c] = struct{}{}
		jobs = append(jobs, &job{chunk: c, kind: jobRebuild})
	}
	return jobs, events
}

// run starts one goroutine per job, at most Workers at a time, and joins
// them all. Each job keeps its own result, so one failure never hides
// another.
func (m *Manager) run(ctx context.Context, b terrain.Builder, jobs []*job) {
	var eg errgroup.Group
	eg.SetLimit(m.cfg.Workers)
	for _, j := range jobs {
		eg.Go(func() error {
			mesh, err := b.Build(ctx, j.chunk)
			j.res = result{mesh: mesh, err: err}
			return nil
		})
	}
	_ = eg.Wait()
}

// apply registers joined results in dequeue order. m.mu must be held.
func (m *Manager) apply(ctx context.Context, jobs []*job, st *Stats) []Transition {
	var events []Transition
	for _, j := range jobs {
		c := j.chunk
		delete(m.inFlight, c)

		if err := j.res.err; err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				m.requeue(j, st)
				continue
			}
			st.Failed++
			m.log.Error("generate chunk", "chunk", c, "error", err)
			if t, ok := m.drop(c); ok {
				events = append(events, t)
			}
			continue
		}

		switch j.kind {
		case jobLoad:
			e := &entry{handle: m.newHandle(), state: Loaded, mesh: j.res.mesh}
			m.registry[c] = e
			events = append(events, Transition{Chunk: c, From: Created, To: Loaded, Handle: e.handle, Mesh: e.mesh})
			st.Loaded++
		case jobRebuild:
			e, ok := m.registry[c]
			if !ok {
				continue
			}
			e.mesh = j.res.mesh
			e.state = MeshReady
			events = append(events, Transition{Chunk: c, From: Dirty, To: MeshReady, Handle: e.handle, Mesh: e.mesh})
			st.Rebuilt++
		}
	}
	return events
}

// requeue puts a job that a cancelled tick never ran back in its queue,
// unless the chunk was asked to unload meanwhile. A load with a pending
// unload is dropped together with the unload; a rebuild is left to release.
// m.mu must be held.
func (m *Manager) requeue(j *job, st *Stats) {
	c := j.chunk
	if j.kind == jobLoad {
		if m.unloads.remove(c) {
			return
		}
		m.loads.push(c)
	} else {
		if m.unloads.has(c) {
			return
		}
		m.dirty.push(c)
	}
	st.Requeued++
}

// drop releases the registry entry of a chunk whose rebuild failed, so a
// later request loads it afresh. m.mu must be held.
func (m *Manager) drop(c coord.Chunk) (Transition, bool) {
	e, ok := m.registry[c]
	if !ok {
		return Transition{}, false
	}
	delete(m.registry, c)
	m.unloads.remove(c)
	m.dirty.remove(c)
	e.mesh = nil
	return Transition{Chunk: c, From: e.state, To: MarkedForDelete, Handle: e.handle}, true
}

// release drains the unload queue. m.mu must be held.
func (m *Manager) release(st *Stats) []Transition {
	var events []Transition
	for _, c := range m.unloads.pop(math.MaxInt) {
		m.loads.remove(c)
		e, ok := m.registry[c]
		if !ok {
			continue
		}
		events = append(events, Transition{Chunk: c, From: e.state, To: MarkedForDelete, Handle: e.handle})
		delete(m.registry, c)
		m.dirty.remove(c)
		e.mesh = nil
		st.Unloaded++
	}
	return events
}

func (m *Manager) emit(events []Transition) {
	if len(events) == 0 {
		return
	}
	m.mu.Lock()
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()
	for _, t := range events {
		for _, l := range listeners {
			l.OnTransition(t)
		}
	}
}

// State reports the lifecycle stage of c. Queued and in-flight loads are
// Created; unknown chunks report false.
func (m *Manager) State(c coord.Chunk) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.registry[c]; ok {
		return e.state, true
	}
	if _, ok := m.inFlight[c]; ok || m.loads.has(c) {
		return Created, true
	}
	return 0, false
}

// Handle returns the registry handle of a loaded chunk.
func (m *Manager) Handle(c coord.Chunk) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.registry[c]
	if !ok {
		return uuid.Nil, false
	}
	return e.handle, true
}

// Mesh returns the current mesh of a loaded chunk, or nil.
func (m *Manager) Mesh(c coord.Chunk) *terrain.Mesh {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.registry[c]; ok {
		return e.mesh
	}
	return nil
}

// Loaded returns the registered chunks in X, Y, Z order.
func (m *Manager) Loaded() []coord.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := keys(m.registry)
	slices.SortFunc(out, compareChunks)
	return out
}

// Len returns the number of registered chunks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registry)
}

// Pending returns the number of queued loads and rebuilds.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads.len() + m.dirty.len()
}

func keys[V any](m map[coord.Chunk]V) []coord.Chunk {
	out := make([]coord.Chunk, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	return out
}

func compareChunks(a, b coord.Chunk) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
