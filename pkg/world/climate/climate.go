// Package climate classifies points of a world into packed
// temperature/humidity/stratum triples.
package climate

import "fmt"

// Climate packs three 4-bit fields into 16 bits:
//
//	bits 0-3   Temperature
//	bits 4-7   Humidity
//	bits 8-11  Stratum
//	bits 12-15 reserved, always zero
type Climate uint16

const (
	fieldBits = 4
	fieldMask = 1<<fieldBits - 1

	temperatureShift = 0
	humidityShift    = 4
	stratumShift     = 8

	// Levels is the number of ordered levels per field.
	Levels = 8
)

// Temperature runs from hottest to coldest.
type Temperature uint8

const (
	Tropical Temperature = iota
	Subtropical
	Warm
	Temperate
	Cool
	Boreal
	Subpolar
	Polar
)

// Humidity runs from driest to wettest.
type Humidity uint8

const (
	SuperArid Humidity = iota
	PerArid
	Arid
	SemiArid
	SubHumid
	Humid
	PerHumid
	SuperHumid
)

// Stratum is a discretized elevation band, lowest first.
type Stratum uint8

const (
	Abyss Stratum = iota
	Bathyal
	Littoral
	Lowland
	Colline
	Montane
	Alpine
	Nival
)

var (
	temperatureNames = [Levels]string{"Tropical", "Subtropical", "Warm", "Temperate", "Cool", "Boreal", "Subpolar", "Polar"}
	humidityNames    = [Levels]string{"SuperArid", "PerArid", "Arid", "SemiArid", "SubHumid", "Humid", "PerHumid", "SuperHumid"}
	stratumNames     = [Levels]string{"Abyss", "Bathyal", "Littoral", "Lowland", "Colline", "Montane", "Alpine", "Nival"}
)

func (t Temperature) String() string { return levelName(temperatureNames, uint8(t)) }
func (h Humidity) String() string    { return levelName(humidityNames, uint8(h)) }
func (s Stratum) String() string     { return levelName(stratumNames, uint8(s)) }

func levelName(names [Levels]string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("Level(%d)", v)
}

// New packs the three fields into a Climate.
func New(t Temperature, h Humidity, s Stratum) Climate {
	return Climate(0).WithTemperature(t).WithHumidity(h).WithStratum(s)
}

func (c Climate) field(shift uint) uint8 {
	return uint8(uint16(c) >> shift & fieldMask)
}

func (c Climate) withField(shift uint, v uint8) Climate {
	cleared := uint16(c) &^ (fieldMask << shift)
	return Climate(cleared | (uint16(v)&fieldMask)<<shift)
}

func (c Climate) Temperature() Temperature { return Temperature(c.field(temperatureShift)) }
func (c Climate) Humidity() Humidity       { return Humidity(c.field(humidityShift)) }
func (c Climate) Stratum() Stratum         { return Stratum(c.field(stratumShift)) }

// WithTemperature returns c with its temperature replaced.
func (c Climate) WithTemperature(t Temperature) Climate {
	return c.withField(temperatureShift, uint8(t))
}

// WithHumidity returns c with its humidity replaced.
func (c Climate) WithHumidity(h Humidity) Climate {
	return c.withField(humidityShift, uint8(h))
}

// WithStratum returns c with its stratum replaced.
func (c Climate) WithStratum(s Stratum) Climate {
	return c.withField(stratumShift, uint8(s))
}

// Decompose unpacks c.
func (c Climate) Decompose() (Temperature, Humidity, Stratum) {
	return c.Temperature(), c.Humidity(), c.Stratum()
}

func (c Climate) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Temperature(), c.Humidity(), c.Stratum())
}
