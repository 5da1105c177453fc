package ratelimit

import (
	"fmt"
	"time"
)

// Window unit for a rate limit policy
type WindowUnit string

const (
	WindowSecond WindowUnit = "second"
	WindowMinute WindowUnit = "minute"
	WindowHour   WindowUnit = "hour"
	WindowDay    WindowUnit = "day"
)

// Returns the window length; unknown units fall back to one minute
func (w WindowUnit) Duration() time.Duration {
	switch w {
	case WindowSecond:
		return time.Second
	case WindowMinute:
		return time.Minute
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

func (w WindowUnit) Valid() bool {
	switch w {
	case WindowSecond, WindowMinute, WindowHour, WindowDay:
		return true
	}
	return false
}

// Base quota for one endpoint, before tier and load adjustments
type Policy struct {
	Endpoint string     `json:"endpoint"`
	Capacity int        `json:"capacity"`
	Window   WindowUnit `json:"window"`
}

// Effective quota for a caller after tier and load adjustments
type LimitSpec struct {
	Capacity int        `json:"capacity"`
	Window   WindowUnit `json:"window"`
}

func (s LimitSpec) String() string {
	return fmt.Sprintf("%d per %s", s.Capacity, s.Window)
}

// Result of a rate limit check
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Limit     int    `json:"limit,omitempty"`
	Remaining int    `json:"remaining"`
	Window    string `json:"window,omitempty"`
}

// Controls load-based elasticity of effective limits
type AdaptiveConfig struct {
	LowLoadThreshold  int           // Requests in LoadWindow below which limits are boosted. Default: 100
	HighLoadThreshold int           // Requests in LoadWindow at/above which limits are shed. Default: 1000
	BoostFactor       float64       // Default: 1.5
	ShedFactor        float64       // Default: 0.5
	LoadWindow        time.Duration // Default: 60 seconds
}
