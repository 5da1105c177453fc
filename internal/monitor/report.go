package monitor

import "fmt"

// Point-in-time snapshot for operational dashboards
type Report struct {
	MonitoringStatus string                     `json:"monitoring_status"`
	SystemMetrics    SystemMetrics              `json:"system_metrics"`
	QueryPerformance map[string]CollectionStats `json:"query_performance"`
	RecentQueries    []ExecutionRecord          `json:"recent_queries"`
	Alerts           []Alert                    `json:"alerts"`
	Anomalies        []Anomaly                  `json:"anomalies"`
	Summary          Summary                    `json:"summary"`
}

type SystemMetrics struct {
	CPUPercent    []MetricSample `json:"cpu_percent"`
	MemoryPercent []MetricSample `json:"memory_percent"`
}

type Summary struct {
	// Entries currently retained in the bounded history, not a
	// lifetime total
	TotalQueriesMonitored int      `json:"total_queries_monitored"`
	ActiveAlerts          int      `json:"active_alerts"`
	Collections           int      `json:"collections"`
	InFlightQueries       int      `json:"in_flight_queries"`
	Recommendations       []string `json:"recommendations"`
}

const recentQueriesCap = 20

// Report compiles the current monitoring snapshot
func (m *Monitor) Report() Report {
	if m == nil {
		return Report{MonitoringStatus: "inactive"}
	}

	m.mu.Lock()

	status := "inactive"
	var cpuSamples, memSamples []MetricSample
	if m.sampler != nil {
		cpuSamples, memSamples = m.sampler.Samples()
		if m.sampler.Running() {
			status = "active"
		}
	}

	performance := make(map[string]CollectionStats, len(m.stats))
	for collection, stats := range m.stats {
		performance[collection] = *stats
	}

	recent := m.history
	if len(recent) > recentQueriesCap {
		recent = recent[len(recent)-recentQueriesCap:]
	}
	recentCopy := make([]ExecutionRecord, len(recent))
	copy(recentCopy, recent)

	anomalies := make([]Anomaly, len(m.anomalies))
	copy(anomalies, m.anomalies)

	historySize := len(m.history)
	inFlight := len(m.inflight)

	m.mu.Unlock()

	alerts := m.alerts.Alerts(true)

	return Report{
		MonitoringStatus: status,
		SystemMetrics: SystemMetrics{
			CPUPercent:    cpuSamples,
			MemoryPercent: memSamples,
		},
		QueryPerformance: performance,
		RecentQueries:    recentCopy,
		Alerts:           alerts,
		Anomalies:        anomalies,
		Summary: Summary{
			TotalQueriesMonitored: historySize,
			ActiveAlerts:          m.alerts.ActiveCount(),
			Collections:           len(performance),
			InFlightQueries:       inFlight,
			Recommendations:       m.recommendations(performance),
		},
	}
}

// Simple rule-based suggestions derived from per-collection stats
func (m *Monitor) recommendations(performance map[string]CollectionStats) []string {
	recommendations := make([]string, 0)

	for collection, stats := range performance {
		if stats.TotalQueries == 0 {
			continue
		}

		errorRate := float64(stats.ErrorCount) / float64(stats.TotalQueries) * 100
		if errorRate > 10 {
			recommendations = append(recommendations,
				fmt.Sprintf("Collection %s has an elevated error rate (%.0f%%); inspect recent failed queries", collection, errorRate))
		}

		if stats.AvgTimeMs >= m.cfg.SlowQueryMs {
			recommendations = append(recommendations,
				fmt.Sprintf("Collection %s averages %.0fms per query, above the %.0fms slow-query threshold; consider adding an index", collection, stats.AvgTimeMs, m.cfg.SlowQueryMs))
		}

		slowRate := float64(stats.SlowQueries) / float64(stats.TotalQueries) * 100
		if slowRate > 20 {
			recommendations = append(recommendations,
				fmt.Sprintf("Over %.0f%% of queries on %s are slow; review query patterns or reduce result set sizes", slowRate, collection))
		}
	}

	return recommendations
}
