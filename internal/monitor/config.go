package monitor

import "time"

// Threshold and sizing configuration for the query monitor. Any zero
// field falls back to its documented default, so partial configuration
// never fails construction.
type Config struct {
	SlowQueryMs          float64       // Default: 500
	VerySlowQueryMs      float64       // Default: 2000
	HighCPUPercent       float64       // Default: 80
	HighMemoryPercent    float64       // Default: 85
	MaxConcurrentQueries int           // Default: 100
	HistorySize          int           // Default: 1000
	AnomalyMinSamples    int           // Default: 10
	AnomalyWindow        int           // Default: 50
	AnomalyZScore        float64       // Default: 3.0
	DetectEvery          int           // Run anomaly detection every N completions. Default: 1
	AlertCooldown        time.Duration // Default: 5 minutes
	MaxInFlightAge       time.Duration // Default: 5 minutes
}

func (c Config) withDefaults() Config {
	if c.SlowQueryMs <= 0 {
		c.SlowQueryMs = 500
	}
	if c.VerySlowQueryMs <= 0 {
		c.VerySlowQueryMs = 2000
	}
	if c.HighCPUPercent <= 0 {
		c.HighCPUPercent = 80
	}
	if c.HighMemoryPercent <= 0 {
		c.HighMemoryPercent = 85
	}
	if c.MaxConcurrentQueries <= 0 {
		c.MaxConcurrentQueries = 100
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 1000
	}
	if c.AnomalyMinSamples <= 0 {
		c.AnomalyMinSamples = 10
	}
	if c.AnomalyWindow <= 0 {
		c.AnomalyWindow = 50
	}
	if c.AnomalyZScore <= 0 {
		c.AnomalyZScore = 3.0
	}
	if c.DetectEvery <= 0 {
		c.DetectEvery = 1
	}
	if c.AlertCooldown <= 0 {
		c.AlertCooldown = 5 * time.Minute
	}
	if c.MaxInFlightAge <= 0 {
		c.MaxInFlightAge = 5 * time.Minute
	}
	return c
}
