package climate

import "math"

const maxBias = 3

// ClimateBias maps a stratum linearly onto [-3, 0]: Abyss is -3, Nival 0.
// Lower strata skew temperature toward Polar.
func ClimateBias(s Stratum) float32 {
	if s > Nival {
		s = Nival
	}
	return -maxBias + maxBias*float32(s)/float32(Nival)
}

// Relief scales terrain displacement for a classified point. High, dry
// ground is rougher than low, wet ground.
func Relief(c Climate) float32 {
	elevation := 1 + ClimateBias(c.Stratum())/(maxBias+1)
	aridity := 1 + float32(SuperHumid-c.Humidity())/(2*float32(SuperHumid))
	return elevation * aridity
}

// remap maps v from [inMin, inMax] onto [outMin, outMax] without clamping.
// A degenerate input range maps everything to outMin.
func remap(v, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	return outMin + (v-inMin)*(outMax-outMin)/(inMax-inMin)
}

// level floors v and clamps it to [0, Levels-1]. NaN maps to 0.
func level(v float64) uint8 {
	if !(v >= 0) {
		return 0
	}
	f := math.Floor(v)
	if f > Levels-1 {
		return Levels - 1
	}
	return uint8(f)
}
