package noise

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSimplexDeterministic(t *testing.T) {
	a := newSimplex(12345)
	b := newSimplex(12345)

	for i := 0; i < 100; i++ {
		x := float64(i) * 0.15
		y := float64(i) * 0.25
		z := float64(i) * 0.35
		if a.Eval2(x, y) != b.Eval2(x, y) {
			t.Fatalf("Eval2 not deterministic at (%f, %f)", x, y)
		}
		if a.Eval3(x, y, z) != b.Eval3(x, y, z) {
			t.Fatalf("Eval3 not deterministic at (%f, %f, %f)", x, y, z)
		}
	}
}

func TestSimplexRange(t *testing.T) {
	s := newSimplex(42)

	for i := 0; i < 10000; i++ {
		x := float64(i)*0.37 - 500
		y := float64(i)*0.53 - 500
		z := float64(i)*0.71 - 500
		if v := s.Eval2(x, y); v < -1 || v > 1 {
			t.Fatalf("Eval2(%f, %f) = %f, out of [-1,1]", x, y, v)
		}
		if v := s.Eval3(x, y, z); v < -1 || v > 1 {
			t.Fatalf("Eval3(%f, %f, %f) = %f, out of [-1,1]", x, y, z, v)
		}
	}
}

func TestDifferentSeedsDifferentNoise(t *testing.T) {
	for _, f := range []Function{Simplex, OpenSimplex, Perlin} {
		a, err := NewPrimitive(f, 1)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		b, err := NewPrimitive(f, 2)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}

		different := false
		for i := 0; i < 100; i++ {
			x := float64(i)*0.13 + 0.05
			y := float64(i)*0.29 + 0.07
			z := float64(i)*0.41 + 0.11
			if a.Eval3(x, y, z) != b.Eval3(x, y, z) {
				different = true
				break
			}
		}
		if !different {
			t.Errorf("%s: different seeds should produce different noise", f)
		}
	}
}

func TestNewSamplerUnknownFunction(t *testing.T) {
	s := DefaultSettings()
	s.Function = Function(99)

	_, err := NewSampler(s)
	if !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("NewSampler error = %v, want ErrUnknownFunction", err)
	}
}

func TestParseFunction(t *testing.T) {
	tests := []struct {
		in   string
		want Function
	}{
		{"simplex", Simplex},
		{" OpenSimplex ", OpenSimplex},
		{"PERLIN", Perlin},
	}
	for _, tt := range tests {
		got, err := ParseFunction(tt.in)
		if err != nil {
			t.Fatalf("ParseFunction(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFunction(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFunction("worley"); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("ParseFunction(worley) error = %v, want ErrUnknownFunction", err)
	}
}

func TestNormalizeClampsDegenerateSettings(t *testing.T) {
	s := Settings{Scale: -3, Frequency: 0, Lacunarity: 0, Persistence: 4, Octaves: 0, Size: -1}.Normalize()

	if s.Scale != MinScale {
		t.Errorf("Scale = %g, want %g", s.Scale, MinScale)
	}
	if s.Frequency != MinScale {
		t.Errorf("Frequency = %g, want %g", s.Frequency, MinScale)
	}
	if s.Lacunarity != 1 {
		t.Errorf("Lacunarity = %g, want 1", s.Lacunarity)
	}
	if s.Persistence != 1 {
		t.Errorf("Persistence = %g, want 1", s.Persistence)
	}
	if s.Octaves != 1 || s.Size != 1 {
		t.Errorf("Octaves, Size = %d, %d, want 1, 1", s.Octaves, s.Size)
	}

	if o := (Settings{Octaves: 40}).Normalize().Octaves; o != MaxOctaves {
		t.Errorf("Octaves = %d, want %d", o, MaxOctaves)
	}
}

func TestSamplerSumsOctaves(t *testing.T) {
	base := newSimplex(7)
	s := &Sampler{
		settings: Settings{
			Scale:       10,
			Frequency:   1,
			Amplitude:   1,
			Lacunarity:  2,
			Persistence: 0.5,
			Octaves:     3,
			Size:        1,
		},
		base: base,
	}

	p := mgl32.Vec3{3.5, -1.25, 8}
	var want float64
	frequency, amplitude := 1.0, 1.0
	for range 3 {
		div := 10 * frequency
		want += base.Eval3(float64(p[0])/div, float64(p[1])/div, float64(p[2])/div) * amplitude
		frequency *= 2
		amplitude *= 0.5
	}

	if got := s.Sample3(p); math.Abs(got-want) > 1e-12 {
		t.Fatalf("Sample3 = %f, want summed octaves %f", got, want)
	}
}

func TestSamplerOctaveOffsets(t *testing.T) {
	st := DefaultSettings()
	st.Scale = 4
	plain, err := NewSampler(st)
	if err != nil {
		t.Fatal(err)
	}

	st.OctaveOffsets = []mgl32.Vec3{{0.5, 1.5, 2.5}}
	shifted, err := NewSampler(st)
	if err != nil {
		t.Fatal(err)
	}

	p := mgl32.Vec3{1, 2, 3}
	if got, want := shifted.Sample3(p), plain.Sample3(p.Add(mgl32.Vec3{0.5, 1.5, 2.5})); got != want {
		t.Fatalf("octave offset not applied: got %f, want %f", got, want)
	}
}

func TestSamplerDeterministicField(t *testing.T) {
	st := Settings{Scale: 10, Octaves: 1, Lacunarity: 2, Persistence: 0.5, Size: 2, Frequency: 1, Amplitude: 1, Seed: 1337}

	a, err := NewSampler(st)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSampler(st)
	if err != nil {
		t.Fatal(err)
	}

	fa := a.Field3(mgl32.Vec3{0.25, 0.5, 0.75}, 1)
	fb := b.Field3(mgl32.Vec3{0.25, 0.5, 0.75}, 1)
	if len(fa) != 8 {
		t.Fatalf("Field3 length = %d, want 8", len(fa))
	}
	for i := range fa {
		if fa[i] != fb[i] {
			t.Fatalf("field differs at %d: %f vs %f", i, fa[i], fb[i])
		}
	}
}

func TestField2MatchesPointSamples(t *testing.T) {
	st := DefaultSettings()
	st.Octaves = 4
	st.Scale = 32
	s, err := NewSampler(st)
	if err != nil {
		t.Fatal(err)
	}

	f := s.Field2(-3, 5, 4, 3, 0.5)
	if len(f) != 12 {
		t.Fatalf("Field2 length = %d, want 12", len(f))
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			want := s.Sample2(-3+float64(x)*0.5, 5+float64(y)*0.5)
			if f[y*4+x] != want {
				t.Fatalf("Field2[%d,%d] = %f, want %f", x, y, f[y*4+x], want)
			}
		}
	}
	if s.Field2(0, 0, 0, 3, 1) != nil {
		t.Error("empty Field2 should be nil")
	}
}

func TestSample2Smoothness(t *testing.T) {
	st := DefaultSettings()
	st.Octaves = 4
	s, err := NewSampler(st)
	if err != nil {
		t.Fatal(err)
	}

	prev := s.Sample2(0, 0)
	for i := 1; i < 1000; i++ {
		curr := s.Sample2(float64(i)*0.01, 0)
		if diff := math.Abs(curr - prev); diff > 0.1 {
			t.Fatalf("noise changed too rapidly at x=%f: diff=%f", float64(i)*0.01, diff)
		}
		prev = curr
	}
}
