// Package telemetry generates plausible industrial sensor readings for
// placeholder screens, the simulator and sample upload payloads.
package telemetry

import (
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"carbonseed.io/console/pkg/api"
)

// Generator produces correlated readings for one device. It is not safe for
// concurrent use; give every device loop its own Generator.
type Generator struct {
	faker            *gofakeit.Faker
	deviceID         int
	baselineTemp     float64
	baselineGas      float64
	baselineVib      float64
	baselineHumidity float64
	baselinePressure float64
	basePower        float64
	noise            float64
	wear             float64
	lastPressure     float64
}

// NewGenerator creates a generator for deviceID. A zero seed picks a random one.
func NewGenerator(deviceID int, seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	f := gofakeit.New(seed)

	g := &Generator{
		faker:            f,
		deviceID:         deviceID,
		baselineTemp:     f.Float64Range(780, 870),   // furnace band, °C
		baselineGas:      f.Float64Range(180, 300),   // gas index
		baselineVib:      f.Float64Range(1.5, 3.5),   // mm/s
		baselineHumidity: f.Float64Range(40, 60),     // %
		baselinePressure: f.Float64Range(1005, 1020), // hPa
		basePower:        f.Float64Range(25, 60),     // kW
		noise:            f.Float64Range(2, 8),
	}
	g.lastPressure = g.baselinePressure
	return g
}

// DeviceID returns the numeric device id readings are tagged with.
func (g *Generator) DeviceID() int {
	return g.deviceID
}

// Temperature follows a shift cycle peaking mid-afternoon with rare spikes
// above the 900 °C critical line.
func (g *Generator) Temperature(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	cycle := 25 * math.Sin((hour-8)*math.Pi/12)
	noise := (g.faker.Float64() - 0.5) * g.noise

	spike := 0.0
	if g.faker.Float64() < 0.03 {
		spike = g.faker.Float64Range(60, 110)
	}

	return g.baselineTemp + cycle + noise + spike
}

// GasIndex rises with furnace temperature; leaks are rare large jumps.
func (g *Generator) GasIndex(temperature float64) float64 {
	correlated := (temperature - g.baselineTemp) * 0.8
	noise := (g.faker.Float64() - 0.5) * 20

	leak := 0.0
	if g.faker.Float64() < 0.02 {
		leak = g.faker.Float64Range(120, 220)
	}

	return math.Max(0, g.baselineGas+correlated+noise+leak)
}

// Vibration returns the three axes. Bearings wear slowly, so every call
// nudges the baseline upwards.
func (g *Generator) Vibration() (x, y, z float64) {
	g.wear += 0.0005
	base := g.baselineVib + g.wear

	axis := func(scale float64) float64 {
		return math.Max(0, base*scale+(g.faker.Float64()-0.5)*0.6)
	}
	x, y, z = axis(1.0), axis(0.8), axis(1.2)

	if g.faker.Float64() < 0.02 {
		z += g.faker.Float64Range(4, 9)
	}
	return x, y, z
}

// Humidity drops as the furnace heats the hall.
func (g *Generator) Humidity(temperature float64) float64 {
	effect := -(temperature - g.baselineTemp) * 0.05
	noise := (g.faker.Float64() - 0.5) * 2
	return math.Max(15, math.Min(90, g.baselineHumidity+effect+noise))
}

// Pressure random-walks around its baseline.
func (g *Generator) Pressure() float64 {
	step := (g.faker.Float64() - 0.5) * 0.6
	next := g.baselinePressure + (g.lastPressure-g.baselinePressure)*0.8 + step
	g.lastPressure = math.Max(980, math.Min(1040, next))
	return g.lastPressure
}

// Power tracks furnace load.
func (g *Generator) Power(temperature float64) float64 {
	load := (temperature - 700) / 200
	noise := (g.faker.Float64() - 0.5) * 3
	return math.Max(0, g.basePower*(0.7+0.3*load)+noise)
}

// Reading generates one correlated sample at t.
func (g *Generator) Reading(t time.Time) api.Reading {
	temperature := g.Temperature(t)
	vx, vy, vz := g.Vibration()

	return api.Reading{
		DeviceID:         g.deviceID,
		Timestamp:        api.At(t),
		Temperature:      api.Float(round(temperature, 2)),
		GasIndex:         api.Float(round(g.GasIndex(temperature), 2)),
		VibrationX:       api.Float(round(vx, 3)),
		VibrationY:       api.Float(round(vy, 3)),
		VibrationZ:       api.Float(round(vz, 3)),
		Humidity:         api.Float(round(g.Humidity(temperature), 2)),
		Pressure:         api.Float(round(g.Pressure(), 2)),
		PowerConsumption: api.Float(round(g.Power(temperature), 2)),
	}
}

// Series generates n readings spaced by step, ending at end, oldest first.
func (g *Generator) Series(end time.Time, n int, step time.Duration) []api.Reading {
	if n <= 0 {
		return nil
	}
	out := make([]api.Reading, 0, n)
	start := end.Add(-time.Duration(n-1) * step)
	for i := range n {
		out = append(out, g.Reading(start.Add(time.Duration(i)*step)))
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
