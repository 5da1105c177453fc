package monitor

import (
	"time"

	"github.com/google/uuid"
)

// Rolling aggregate for one collection. Never reset except by process
// restart; AvgTimeMs is always TotalTimeMs / TotalQueries.
type CollectionStats struct {
	TotalQueries int64     `json:"total_queries"`
	TotalTimeMs  float64   `json:"total_time_ms"`
	AvgTimeMs    float64   `json:"avg_time_ms"`
	MinTimeMs    float64   `json:"min_time_ms"`
	MaxTimeMs    float64   `json:"max_time_ms"`
	ErrorCount   int64     `json:"error_count"`
	SlowQueries  int64     `json:"slow_queries"`
	LastQuery    time.Time `json:"last_query"`
}

func (s *CollectionStats) record(elapsedMs float64, failed bool, now time.Time) {
	s.TotalQueries++
	s.TotalTimeMs += elapsedMs
	s.AvgTimeMs = s.TotalTimeMs / float64(s.TotalQueries)
	if s.TotalQueries == 1 || elapsedMs < s.MinTimeMs {
		s.MinTimeMs = elapsedMs
	}
	if elapsedMs > s.MaxTimeMs {
		s.MaxTimeMs = elapsedMs
	}
	if failed {
		s.ErrorCount++
	}
	s.LastQuery = now
}

// One completed query's outcome, retained in the bounded history
type ExecutionRecord struct {
	ID              uuid.UUID `json:"id"`
	QueryID         string    `json:"query_id"`
	Collection      string    `json:"collection"`
	ExecutionTimeMs float64   `json:"execution_time_ms"`
	Timestamp       time.Time `json:"timestamp"`
	Details         string    `json:"details,omitempty"`
	ResultCount     int       `json:"result_count"`
	Failed          bool      `json:"failed,omitempty"`
}

// A record whose execution time sits far outside its collection's recent
// baseline. Deviation is the z-score against that baseline.
type Anomaly struct {
	Record     ExecutionRecord `json:"record"`
	Deviation  float64         `json:"deviation"`
	DetectedAt time.Time       `json:"detected_at"`
}

// A query currently being timed
type InFlightQuery struct {
	QueryID    string    `json:"query_id"`
	Collection string    `json:"collection"`
	Details    string    `json:"details,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}
