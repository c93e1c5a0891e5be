package telemetry

import "time"

// TelemetrySample is one timestamped measurement row from an inverter extract.
type TelemetrySample struct {
	Timestamp     time.Time
	Irradiance    float64 // W/m²
	ModuleTemp    float64 // °C
	DCVoltage     float64 // V
	DCCurrent     float64 // A
	ActualACPower float64 // W
}

// WeatherSample is one row of an external weather-station series.
type WeatherSample struct {
	Timestamp  time.Time
	Irradiance float64
	ModuleTemp float64
	WindSpeed  float64
}

// Metadata is a free-form plant descriptor record. It is passed through to
// report headers verbatim and never enters any computation.
type Metadata map[string]string
