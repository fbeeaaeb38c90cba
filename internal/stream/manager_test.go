package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/climate"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/noise"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/terrain"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/volume"
)

type fakeBuilder struct {
	mu    sync.Mutex
	calls map[coord.Chunk]int
	fail  map[coord.Chunk]error
	delay func(coord.Chunk) time.Duration
	// onBuild runs once the build has passed its context check.
	onBuild func(coord.Chunk)

	// gate, when set, blocks every build until it is closed.
	gate    chan struct{}
	started chan coord.Chunk

	running    atomic.Int32
	maxRunning atomic.Int32
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{
		calls: make(map[coord.Chunk]int),
		fail:  make(map[coord.Chunk]error),
	}
}

func (b *fakeBuilder) Build(ctx context.Context, c coord.Chunk) (*terrain.Mesh, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.onBuild != nil {
		b.onBuild(c)
	}
	n := b.running.Add(1)
	defer b.running.Add(-1)
	for {
		cur := b.maxRunning.Load()
		if n <= cur || b.maxRunning.CompareAndSwap(cur, n) {
			break
		}
	}

	if b.started != nil {
		b.started <- c
	}
	if b.gate != nil {
		<-b.gate
	}
	if b.delay != nil {
		time.Sleep(b.delay(c))
	}

	b.mu.Lock()
	b.calls[c]++
	calls := b.calls[c]
	err := b.fail[c]
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &terrain.Mesh{Chunk: c, Vertices: make([]mgl32.Vec3, 3*calls)}, nil
}

func (b *fakeBuilder) callCount(c coord.Chunk) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[c]
}

type recorder struct {
	mu     sync.Mutex
	events []Transition
}

func (r *recorder) OnTransition(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, t)
}

func (r *recorder) take() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(b terrain.Builder, cfg Config) (*Manager, *recorder) {
	m := NewManager(b, cfg, discardLogger())
	rec := &recorder{}
	m.AddListener(rec)
	return m, rec
}

func mustTick(t *testing.T, m *Manager) Stats {
	t.Helper()
	st, err := m.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return st
}

func TestLoadLifecycle(t *testing.T) {
	b := newFakeBuilder()
	m, rec := newTestManager(b, Config{Workers: 2})
	c := coord.Chunk{X: 1, Y: 2, Z: 3}

	if !m.RequestLoad(c) {
		t.Fatal("first RequestLoad should queue")
	}
	if m.RequestLoad(c) {
		t.Fatal("duplicate RequestLoad should be absorbed")
	}
	if s, ok := m.State(c); !ok || s != Created {
		t.Fatalf("state = %v, %v; want created", s, ok)
	}
	if _, ok := m.Handle(c); ok {
		t.Fatal("queued chunk should have no handle")
	}

	st := mustTick(t, m)
	if st.Loaded != 1 || st.Pending != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if s, _ := m.State(c); s != Loaded {
		t.Fatalf("state = %v, want loaded", s)
	}
	h, ok := m.Handle(c)
	if !ok || h == uuid.Nil {
		t.Fatalf("handle = %v, %v", h, ok)
	}
	if m.Mesh(c).Triangles() != 1 {
		t.Fatalf("mesh triangles = %d", m.Mesh(c).Triangles())
	}

	events := rec.take()
	if len(events) != 1 {
		t.Fatalf("events = %v", events)
	}
	if e := events[0]; e.From != Created || e.To != Loaded || e.Handle != h || e.Mesh == nil {
		t.Fatalf("event = %+v", e)
	}

	if m.RequestLoad(c) {
		t.Fatal("RequestLoad of a loaded chunk should be absorbed")
	}
	mustTick(t, m)
	if b.callCount(c) != 1 {
		t.Fatalf("built %d times, want 1", b.callCount(c))
	}
}

func TestHandlesAreUnique(t *testing.T) {
	m, _ := newTestManager(newFakeBuilder(), Config{Workers: 4})
	for x := range 10 {
		m.RequestLoad(coord.Chunk{X: x})
	}
	mustTick(t, m)
	seen := make(map[uuid.UUID]bool)
	for _, c := range m.Loaded() {
		h, _ := m.Handle(c)
		if seen[h] {
			t.Fatalf("duplicate handle %v", h)
		}
		seen[h] = true
	}
	if len(seen) != 10 {
		t.Fatalf("handles = %d", len(seen))
	}
}

func TestResultsAppliedInDequeueOrder(t *testing.T) {
	b := newFakeBuilder()
	// Later chunks finish first.
	b.delay = func(c coord.Chunk) time.Duration { return time.Duration(8-c.X) * time.Millisecond }
	m, rec := newTestManager(b, Config{Workers: 8})

	var want []coord.Chunk
	for x := range 8 {
		c := coord.Chunk{X: x}
		m.RequestLoad(c)
		want = append(want, c)
	}
	mustTick(t, m)

	var got []coord.Chunk
	for _, e := range rec.take() {
		got = append(got, e.Chunk)
	}
	if !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestWorkersBoundConcurrency(t *testing.T) {
	b := newFakeBuilder()
	b.delay = func(coord.Chunk) time.Duration { return 2 * time.Millisecond }
	m, _ := newTestManager(b, Config{Workers: 3})
	for x := range 12 {
		m.RequestLoad(coord.Chunk{X: x})
	}
	mustTick(t, m)
	if n := b.maxRunning.Load(); n > 3 {
		t.Fatalf("max concurrent builds = %d, want <= 3", n)
	}
	if m.Len() != 12 {
		t.Fatalf("loaded = %d", m.Len())
	}
}

func TestMaxJobsPerTick(t *testing.T) {
	m, _ := newTestManager(newFakeBuilder(), Config{Workers: 2, MaxJobsPerTick: 2})
	for x := range 5 {
		m.RequestLoad(coord.Chunk{X: x})
	}
	st := mustTick(t, m)
	if st.Loaded != 2 || st.Pending != 3 {
		t.Fatalf("first tick = %+v", st)
	}
	mustTick(t, m)
	st = mustTick(t, m)
	if st.Loaded != 1 || st.Pending != 0 || m.Len() != 5 {
		t.Fatalf("third tick = %+v, loaded %d", st, m.Len())
	}
}

func TestInFlightDedupeAndUnloadWaits(t *testing.T) {
	b := newFakeBuilder()
	b.gate = make(chan struct{})
	b.started = make(chan coord.Chunk, 1)
	m, rec := newTestManager(b, Config{Workers: 1})
	c := coord.Chunk{Z: -4}
	m.RequestLoad(c)

	done := make(chan Stats)
	go func() {
		st, _ := m.Tick(context.Background())
		done <- st
	}()
	<-b.started

	if m.RequestLoad(c) {
		t.Fatal("RequestLoad of an in-flight chunk should be absorbed")
	}
	if s, ok := m.State(c); !ok || s != Created {
		t.Fatalf("in-flight state = %v, %v", s, ok)
	}
	if !m.RequestUnload(c) {
		t.Fatal("RequestUnload of an in-flight chunk should queue")
	}

	close(b.gate)
	st := <-done
	if st.Loaded != 1 || st.Unloaded != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if _, ok := m.State(c); ok {
		t.Fatal("chunk should be gone after unload")
	}

	events := rec.take()
	if len(events) != 2 || events[0].To != Loaded || events[1].From != Loaded || events[1].To != MarkedForDelete {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Handle != events[1].Handle {
		t.Fatal("unload should carry the loaded handle")
	}
	if b.callCount(c) != 1 {
		t.Fatalf("built %d times", b.callCount(c))
	}
}

func TestUnloadQueuedLoadSkipsGeneration(t *testing.T) {
	b := newFakeBuilder()
	m, rec := newTestManager(b, Config{Workers: 1})
	c := coord.Chunk{Y: 9}
	m.RequestLoad(c)
	if !m.RequestUnload(c) {
		t.Fatal("RequestUnload of a queued chunk should succeed")
	}
	st := mustTick(t, m)
	if st != (Stats{}) || b.callCount(c) != 0 || len(rec.take()) != 0 {
		t.Fatalf("stats %+v calls %d", st, b.callCount(c))
	}
	if m.RequestUnload(c) {
		t.Fatal("RequestUnload of an unknown chunk should report false")
	}
}

func TestRequestLoadCancelsPendingUnload(t *testing.T) {
	m, _ := newTestManager(newFakeBuilder(), Config{Workers: 1})
	c := coord.Chunk{X: 2}
	m.RequestLoad(c)
	mustTick(t, m)

	m.RequestUnload(c)
	if !m.RequestLoad(c) {
		t.Fatal("RequestLoad should cancel the pending unload")
	}
	mustTick(t, m)
	if s, ok := m.State(c); !ok || s != Loaded {
		t.Fatalf("state = %v, %v; want loaded", s, ok)
	}
}

func TestDirtyRebuild(t *testing.T) {
	b := newFakeBuilder()
	m, rec := newTestManager(b, Config{Workers: 2})
	c := coord.Chunk{}
	if m.MarkDirty(c) {
		t.Fatal("MarkDirty of an unknown chunk should report false")
	}
	m.RequestLoad(c)
	mustTick(t, m)
	h, _ := m.Handle(c)
	rec.take()

	if !m.MarkDirty(c) || m.MarkDirty(c) {
		t.Fatal("MarkDirty should queue once")
	}
	st := mustTick(t, m)
	if st.Rebuilt != 1 {
		t.Fatalf("stats = %+v", st)
	}

	events := rec.take()
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].From != Loaded || events[0].To != Dirty {
		t.Fatalf("first event = %+v", events[0])
	}
	if events[1].From != Dirty || events[1].To != MeshReady || events[1].Handle != h {
		t.Fatalf("second event = %+v", events[1])
	}
	if s, _ := m.State(c); s != MeshReady {
		t.Fatalf("state = %v", s)
	}
	if m.Mesh(c).Triangles() != 2 {
		t.Fatal("mesh was not replaced by the rebuild")
	}
}

func TestMarkNeighborsDirtyAndInvalidate(t *testing.T) {
	m, _ := newTestManager(newFakeBuilder(), Config{Workers: 4})
	center := coord.Chunk{X: 5}
	for _, c := range []coord.Chunk{center, {X: 4}, {X: 6}, {X: 5, Y: 3}} {
		m.RequestLoad(c)
	}
	mustTick(t, m)

	if n := m.MarkNeighborsDirty(center); n != 2 {
		t.Fatalf("neighbors marked = %d, want 2", n)
	}
	if n := m.Invalidate(); n != 2 {
		t.Fatalf("invalidated = %d, want the 2 chunks not already queued", n)
	}
	st := mustTick(t, m)
	if st.Rebuilt != 4 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestFailedLoadIsDropped(t *testing.T) {
	b := newFakeBuilder()
	bad := coord.Chunk{X: -1}
	b.fail[bad] = errors.New("boom")
	m, rec := newTestManager(b, Config{Workers: 2})
	m.RequestLoad(bad)
	m.RequestLoad(coord.Chunk{X: 1})

	st := mustTick(t, m)
	if st.Failed != 1 || st.Loaded != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if _, ok := m.State(bad); ok {
		t.Fatal("failed chunk should not be registered")
	}
	if events := rec.take(); len(events) != 1 || events[0].Chunk != (coord.Chunk{X: 1}) {
		t.Fatalf("events = %+v", events)
	}
}

func TestTickCancelledContext(t *testing.T) {
	b := newFakeBuilder()
	m, _ := newTestManager(b, Config{Workers: 1})
	m.RequestLoad(coord.Chunk{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Tick(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if m.Pending() != 1 {
		t.Fatalf("pending = %d, want the request kept", m.Pending())
	}
}

func TestCancelledTickRequeuesUnstartedJobs(t *testing.T) {
	b := newFakeBuilder()
	m, _ := newTestManager(b, Config{Workers: 1})
	first, second := coord.Chunk{X: 0}, coord.Chunk{X: 1}
	m.RequestLoad(first)
	m.RequestLoad(second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.onBuild = func(c coord.Chunk) {
		if c == first {
			cancel()
		}
	}

	st, err := m.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if st.Loaded != 1 || st.Requeued != 1 || st.Failed != 0 || st.Pending != 1 {
		t.Fatalf("stats = %+v", st)
	}

	b.onBuild = nil
	st = mustTick(t, m)
	if st.Loaded != 1 || m.Len() != 2 {
		t.Fatalf("retry stats = %+v, loaded %d", st, m.Len())
	}
}

func TestCancelledTickKeepsUnloadOfUnstartedLoad(t *testing.T) {
	b := newFakeBuilder()
	m, rec := newTestManager(b, Config{Workers: 1})
	first, second := coord.Chunk{X: 0}, coord.Chunk{X: 1}
	m.RequestLoad(first)
	m.RequestLoad(second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.onBuild = func(c coord.Chunk) {
		if c != first {
			return
		}
		if !m.RequestUnload(second) {
			t.Error("RequestUnload of an in-flight chunk should queue")
		}
		cancel()
	}

	st, err := m.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if st.Loaded != 1 || st.Requeued != 0 || st.Pending != 0 {
		t.Fatalf("stats = %+v", st)
	}

	b.onBuild = nil
	mustTick(t, m)
	if got := m.Loaded(); len(got) != 1 || got[0] != first {
		t.Fatalf("loaded = %v, want only %v", got, first)
	}
	if _, ok := m.State(second); ok {
		t.Fatal("unloaded chunk came back")
	}
	if b.callCount(second) != 0 {
		t.Fatalf("unloaded chunk built %d times", b.callCount(second))
	}
	for _, e := range rec.take() {
		if e.Chunk == second {
			t.Fatalf("unexpected transition %+v", e)
		}
	}
}

func TestCancelledTickLeavesRebuildToUnload(t *testing.T) {
	b := newFakeBuilder()
	m, _ := newTestManager(b, Config{Workers: 1})
	first, second := coord.Chunk{X: 0}, coord.Chunk{X: 1}
	m.RequestLoad(first)
	m.RequestLoad(second)
	mustTick(t, m)

	m.MarkDirty(first)
	m.MarkDirty(second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.onBuild = func(c coord.Chunk) {
		if c == first {
			m.RequestUnload(second)
			cancel()
		}
	}

	st, err := m.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if st.Rebuilt != 1 || st.Unloaded != 1 || st.Requeued != 0 || st.Pending != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if _, ok := m.State(second); ok {
		t.Fatal("chunk queued for unload is still registered")
	}
}

func TestFailedRebuildDropsEntry(t *testing.T) {
	b := newFakeBuilder()
	m, rec := newTestManager(b, Config{Workers: 1})
	c := coord.Chunk{Z: 2}
	m.RequestLoad(c)
	mustTick(t, m)
	h, _ := m.Handle(c)
	rec.take()

	b.mu.Lock()
	b.fail[c] = errors.New("boom")
	b.mu.Unlock()
	m.MarkDirty(c)
	st := mustTick(t, m)
	if st.Failed != 1 || st.Rebuilt != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if _, ok := m.State(c); ok {
		t.Fatal("chunk with a failed rebuild should not stay registered")
	}
	events := rec.take()
	if len(events) != 2 || events[0].To != Dirty || events[1].From != Dirty ||
		events[1].To != MarkedForDelete || events[1].Handle != h {
		t.Fatalf("events = %+v", events)
	}

	b.mu.Lock()
	delete(b.fail, c)
	b.mu.Unlock()
	if !m.RequestLoad(c) {
		t.Fatal("dropped chunk should be loadable again")
	}
	mustTick(t, m)
	if h2, ok := m.Handle(c); !ok || h2 == h {
		t.Fatalf("reload handle = %v, %v", h2, ok)
	}
}

func TestObserve(t *testing.T) {
	m, _ := newTestManager(newFakeBuilder(), Config{Workers: 4, Hysteresis: 1})

	requested, released := m.Observe(coord.Chunk{}, 1)
	if requested != 7 || released != 0 {
		t.Fatalf("requested %d released %d", requested, released)
	}
	mustTick(t, m)
	if m.Len() != 7 {
		t.Fatalf("loaded = %d", m.Len())
	}

	// Within hysteresis nothing is released.
	if _, released = m.Observe(coord.Chunk{X: 1}, 1); released != 0 {
		t.Fatalf("released %d inside hysteresis", released)
	}

	_, released = m.Observe(coord.Chunk{X: 10}, 1)
	// Seven loaded chunks plus the five loads queued by the previous call.
	if released != 7+5 {
		t.Fatalf("released = %d, want 12", released)
	}
	st := mustTick(t, m)
	if st.Unloaded != 7 {
		t.Fatalf("stats = %+v", st)
	}
	for _, c := range m.Loaded() {
		if c.DistSq(coord.Chunk{X: 10}) > 1 {
			t.Fatalf("far chunk %v still loaded", c)
		}
	}
}

func TestObserveNearestFirst(t *testing.T) {
	m, rec := newTestManager(newFakeBuilder(), Config{Workers: 1, MaxJobsPerTick: 1})
	m.Observe(coord.Chunk{Y: 2}, 2)
	mustTick(t, m)
	events := rec.take()
	if len(events) != 1 || events[0].Chunk != (coord.Chunk{Y: 2}) {
		t.Fatalf("first load = %+v, want the observer's chunk", events)
	}
}

func TestPipelineBuilder(t *testing.T) {
	p := newPipeline(t)
	m, _ := newTestManager(p, DefaultConfig())
	for _, c := range []coord.Chunk{{}, {X: 2}} {
		m.RequestLoad(c)
	}
	mustTick(t, m)
	if !m.Mesh(coord.Chunk{}).Empty() {
		t.Fatal("chunk at the planet core should be empty")
	}
	if m.Mesh(coord.Chunk{X: 2}).Empty() {
		t.Fatal("surface chunk should have geometry")
	}
}

func newPipeline(t *testing.T) *terrain.Pipeline {
	t.Helper()
	world := volume.DefaultWorldSettings()
	world.PlanetRadius = 40
	world.Bloat = 4

	ns := noise.DefaultSettings()
	ns.Scale = 16

	sel := climate.SelectionParams{
		Climate: climate.Settings{Planetary: true},
		Entropy: climate.EntropySettings{
			Lacunarity:  2,
			Persistence: 0.5,
			Scale:       32,
			Octaves:     1,
		},
		Elevation: climate.Range{Min: 30, Max: 50},
	}
	p, err := terrain.NewPipeline(world, ns, sel)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}
