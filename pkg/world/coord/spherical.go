package coord

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Spherical is a point in spherical space. Longitude is the polar angle
// measured from +Z in [0, π]; Latitude is the azimuth around Z in (-π, π].
type Spherical struct {
	Radius    float32
	Longitude float32
	Latitude  float32
}

// CartesianToSpherical converts v to spherical coordinates.
// The origin has no defined angles and returns the zero Spherical.
func CartesianToSpherical(v mgl32.Vec3) Spherical {
	x, y, z := float64(v[0]), float64(v[1]), float64(v[2])
	r := math.Sqrt(x*x + y*y + z*z)
	if r == 0 {
		return Spherical{}
	}

	// Rounding can push z/r just past ±1.
	c := z / r
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}

	return Spherical{
		Radius:    float32(r),
		Longitude: float32(math.Acos(c)),
		Latitude:  float32(math.Atan2(y, x)),
	}
}

// SphericalToCartesian converts s back to cartesian coordinates.
func SphericalToCartesian(s Spherical) mgl32.Vec3 {
	r := float64(s.Radius)
	sinLong, cosLong := math.Sincos(float64(s.Longitude))
	sinLat, cosLat := math.Sincos(float64(s.Latitude))

	return mgl32.Vec3{
		float32(r * sinLong * cosLat),
		float32(r * sinLong * sinLat),
		float32(r * cosLong),
	}
}

// EquatorDistance returns how far the polar angle is from the equator,
// normalized so the equator is 0 and either pole is 1.
func (s Spherical) EquatorDistance() float32 {
	d := math.Abs(float64(s.Longitude) - math.Pi/2)
	return float32(d / (math.Pi / 2))
}
