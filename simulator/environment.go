package simulator

import (
	"math"

	"github.com/landyrev/simple-nmea-simulator/sentence"
)

// Environment is the sensor state that drifts between ticks.
type Environment struct {
	WindDirection float64 `json:"wind_direction"` // degrees
	WindSpeed     float64 `json:"wind_speed"`     // knots
	WaterTemp     float64 `json:"water_temp"`     // celsius
	Depth         float64 `json:"depth"`          // meters
	EngineRPM     float64 `json:"engine_rpm"`
	EnginePitch   float64 `json:"engine_pitch"`
}

// DefaultEnvironment returns the initial sensor readings.
func DefaultEnvironment() Environment {
	return Environment{
		WindDirection: 255.1,
		WindSpeed:     27.8,
		WaterTemp:     6.7,
		Depth:         2.2,
		EngineRPM:     612,
		EnginePitch:   10.5,
	}
}

// Step advances every field by an independent bounded random walk.
func (e *Environment) Step(src sentence.Source) {
	e.WindDirection = math.Mod(e.WindDirection+uniform(src, -2, 2), 360)
	if e.WindDirection < 0 {
		e.WindDirection += 360
	}
	e.WindSpeed = math.Max(0, e.WindSpeed+uniform(src, -1, 1))
	e.WaterTemp = math.Max(0, e.WaterTemp+uniform(src, -0.2, 0.2))
	e.Depth = math.Max(0.1, e.Depth+uniform(src, -0.1, 0.1))
	e.EngineRPM = math.Max(0, e.EngineRPM+uniform(src, -5, 5))
	e.EnginePitch = math.Max(0, e.EnginePitch+uniform(src, -0.5, 0.5))
}

func uniform(src sentence.Source, lo, hi float64) float64 {
	return lo + (hi-lo)*src.Float64()
}
