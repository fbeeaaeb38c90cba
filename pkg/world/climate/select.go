package climate

import (
	"fmt"
	"math"

	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/noise"
)

// Classifier selects climates for points sharing one SelectionParams
// template. It is safe for concurrent use as long as each goroutine passes
// its own Deviation.
type Classifier struct {
	settings  Settings
	elevation Range
	variation *noise.Sampler
	strata    *noise.Sampler
}

// NewClassifier builds the noise samplers described by p.Entropy. The
// Point of p is ignored.
func NewClassifier(p SelectionParams) (*Classifier, error) {
	ns := p.Entropy.NoiseSettings()
	variation, err := noise.NewSampler(ns)
	if err != nil {
		return nil, fmt.Errorf("climate variation: %w", err)
	}

	ns.Seed++
	strata, err := noise.NewSampler(ns)
	if err != nil {
		return nil, fmt.Errorf("climate strata: %w", err)
	}

	return &Classifier{
		settings:  p.Climate.Normalize(),
		elevation: p.Elevation,
		variation: variation,
		strata:    strata,
	}, nil
}

// Select classifies p.Point in one call. Prefer a Classifier when
// classifying many points.
func Select(p SelectionParams, dev *Deviation) (Climate, error) {
	c, err := NewClassifier(p)
	if err != nil {
		return 0, err
	}
	return c.Classify(p, dev), nil
}

// Classify returns the climate at p.Point. Only p.Point and p.Elevation
// are read; the classifier's own settings are used for everything else.
func (c *Classifier) Classify(p SelectionParams, dev *Deviation) Climate {
	elev := p.Elevation
	if elev == (Range{}) {
		elev = c.elevation
	}
	if c.settings.Planetary {
		return c.planetary(p, elev, dev)
	}
	return c.flat(p, elev, dev)
}

func (c *Classifier) flat(p SelectionParams, elev Range, dev *Deviation) Climate {
	n := c.variation.Sample2(float64(p.Point[0]), float64(p.Point[2]))

	tDev := n * float64(dev.Between(c.settings.Temperature))
	hDev := n * float64(dev.Between(c.settings.Humidity))
	sDev := n * float64(dev.Between(c.settings.Stratum))

	stratum := Stratum(level(stratumLevel(float64(p.Point[1]), elev) + sDev))
	bias := float64(ClimateBias(stratum))

	base := remap(n, -1, 1, 0, Levels)
	temperature := Temperature(level(base + tDev - bias))
	humidity := Humidity(level(Levels - 1 - base + hDev + bias))

	return New(temperature, humidity, stratum)
}

func (c *Classifier) planetary(p SelectionParams, elev Range, dev *Deviation) Climate {
	sph := coord.CartesianToSpherical(p.Point)
	n := c.variation.Sample3(p.Point)
	ns := c.strata.Sample3(p.Point)

	sDev := ns * float64(dev.Between(c.settings.Stratum))
	stratum := Stratum(level(stratumLevel(float64(sph.Radius), elev) + sDev))
	bias := float64(ClimateBias(stratum))

	latDev := n * float64(dev.Between(c.settings.Latitude))
	angle := math.Abs(float64(sph.EquatorDistance()) + latDev)
	temperature := level(angle*Levels - bias)

	hDev := n * float64(dev.Between(c.settings.Humidity))
	humidity := level(float64(temperature) + hDev + bias)

	return New(Temperature(temperature), Humidity(humidity), stratum)
}

func stratumLevel(elevation float64, elev Range) float64 {
	elev = elev.Normalize()
	return remap(elevation, float64(elev.Min), float64(elev.Max), 0, Levels)
}
