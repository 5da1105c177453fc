package monitor

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Profiles data-access operations: times individual queries, keeps
// rolling per-collection statistics and a bounded execution history,
// raises threshold alerts and flags statistical outliers.
//
// All state is in-process; mutation is serialized behind one mutex. The
// system sampler runs on its own schedule and only feeds back through
// handleSample. A nil *Monitor is a valid no-op receiver so callers can
// run unmonitored.
type Monitor struct {
	mu          sync.Mutex
	cfg         Config
	inflight    map[string]InFlightQuery
	stats       map[string]*CollectionStats
	history     []ExecutionRecord
	anomalies   []Anomaly
	flagged     map[uuid.UUID]struct{}
	completions int

	alerts  *AlertManager
	sampler *SystemSampler

	now func() time.Time
}

const maxRetainedAnomalies = 100

func New(cfg Config) *Monitor {
	cfg = cfg.withDefaults()

	return &Monitor{
		cfg:      cfg,
		inflight: make(map[string]InFlightQuery),
		stats:    make(map[string]*CollectionStats),
		flagged:  make(map[uuid.UUID]struct{}),
		alerts:   NewAlertManager(cfg.AlertCooldown),
		now:      time.Now,
	}
}

// Track records the start of a query. The id must be unique among
// queries currently in flight; the caller is responsible for pairing it
// with a later Complete.
func (m *Monitor) Track(queryID, collection, details string) {
	if m == nil {
		return
	}

	m.mu.Lock()
	inFlight := len(m.inflight)
	m.inflight[queryID] = InFlightQuery{
		QueryID:    queryID,
		Collection: collection,
		Details:    details,
		StartedAt:  m.now(),
	}
	m.mu.Unlock()

	if inFlight+1 > m.cfg.MaxConcurrentQueries {
		m.alerts.Raise(AlertHighConcurrency, SeverityWarning, "", "",
			fmt.Sprintf("%d queries in flight, above the configured maximum of %d", inFlight+1, m.cfg.MaxConcurrentQueries))
	}
}

// Complete finishes a tracked query: updates the collection's rolling
// stats, appends to the bounded history and raises slow-query alerts.
// An unknown id is a caller bug, logged and otherwise ignored.
func (m *Monitor) Complete(queryID string, resultCount int, queryErr error) {
	if m == nil {
		return
	}

	m.mu.Lock()

	query, ok := m.inflight[queryID]
	if !ok {
		m.mu.Unlock()
		log.Printf("Warning: complete called for untracked query %q", queryID)
		return
	}
	delete(m.inflight, queryID)

	now := m.now()
	elapsedMs := float64(now.Sub(query.StartedAt)) / float64(time.Millisecond)

	stats, ok := m.stats[query.Collection]
	if !ok {
		stats = &CollectionStats{}
		m.stats[query.Collection] = stats
	}
	stats.record(elapsedMs, queryErr != nil, now)

	record := ExecutionRecord{
		ID:              uuid.New(),
		QueryID:         queryID,
		Collection:      query.Collection,
		ExecutionTimeMs: elapsedMs,
		Timestamp:       now,
		Details:         query.Details,
		ResultCount:     resultCount,
		Failed:          queryErr != nil,
	}
	m.history = append(m.history, record)
	if len(m.history) > m.cfg.HistorySize {
		evicted := m.history[0]
		m.history = m.history[1:]
		delete(m.flagged, evicted.ID)
	}

	slow := elapsedMs >= m.cfg.SlowQueryMs
	verySlow := elapsedMs >= m.cfg.VerySlowQueryMs
	if slow {
		stats.SlowQueries++
	}

	m.completions++
	if m.completions%m.cfg.DetectEvery == 0 {
		m.detectAnomalies()
	}

	m.mu.Unlock()

	switch {
	case verySlow:
		m.alerts.Raise(AlertSlowQuery, SeverityCritical, query.Collection, "",
			fmt.Sprintf("Very slow query on %s: %.0fms (threshold %.0fms)", query.Collection, elapsedMs, m.cfg.VerySlowQueryMs))
	case slow:
		m.alerts.Raise(AlertSlowQuery, SeverityWarning, query.Collection, "",
			fmt.Sprintf("Slow query on %s: %.0fms (threshold %.0fms)", query.Collection, elapsedMs, m.cfg.SlowQueryMs))
	}
}

// Returns the number of queries currently in flight
func (m *Monitor) InFlightCount() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// SweepStale evicts in-flight entries older than the configured maximum
// age. Such entries mean a caller never invoked Complete; left alone
// they would accumulate forever.
func (m *Monitor) SweepStale() {
	if m == nil {
		return
	}

	m.mu.Lock()
	now := m.now()
	var stale []InFlightQuery
	for id, query := range m.inflight {
		if now.Sub(query.StartedAt) > m.cfg.MaxInFlightAge {
			stale = append(stale, query)
			delete(m.inflight, id)
		}
	}
	m.mu.Unlock()

	for _, query := range stale {
		m.alerts.Raise(AlertStaleQuery, SeverityWarning, query.Collection, query.QueryID,
			fmt.Sprintf("Query %s on %s never completed (started %v ago)", query.QueryID, query.Collection, now.Sub(query.StartedAt).Round(time.Second)))
	}
}

// Scans recent history per collection for order-of-magnitude outliers.
// A record is flagged at most once, so repeated passes never re-alert on
// the same outlier. Caller must hold m.mu.
func (m *Monitor) detectAnomalies() {
	byCollection := make(map[string][]ExecutionRecord)
	for _, record := range m.history {
		byCollection[record.Collection] = append(byCollection[record.Collection], record)
	}

	now := m.now()
	for collection, records := range byCollection {
		if len(records) > m.cfg.AnomalyWindow {
			records = records[len(records)-m.cfg.AnomalyWindow:]
		}
		if len(records) < m.cfg.AnomalyMinSamples {
			continue
		}

		mean, stddev := meanStddev(records)
		if stddev == 0 {
			continue
		}

		for _, record := range records {
			if _, seen := m.flagged[record.ID]; seen {
				continue
			}

			z := (record.ExecutionTimeMs - mean) / stddev
			// The 2x-mean guard stops tightly clustered timings from
			// producing spurious flags
			if z < m.cfg.AnomalyZScore || record.ExecutionTimeMs < 2*mean {
				continue
			}

			m.flagged[record.ID] = struct{}{}
			m.anomalies = append(m.anomalies, Anomaly{
				Record:     record,
				Deviation:  z,
				DetectedAt: now,
			})
			if len(m.anomalies) > maxRetainedAnomalies {
				m.anomalies = m.anomalies[len(m.anomalies)-maxRetainedAnomalies:]
			}

			m.alerts.Raise(AlertAnomaly, SeverityWarning, collection, record.ID.String(),
				fmt.Sprintf("Anomalous query on %s: %.0fms against a %.0fms baseline (z=%.1f)", collection, record.ExecutionTimeMs, mean, z))
		}
	}
}

func meanStddev(records []ExecutionRecord) (float64, float64) {
	var sum float64
	for _, record := range records {
		sum += record.ExecutionTimeMs
	}
	mean := sum / float64(len(records))

	var variance float64
	for _, record := range records {
		diff := record.ExecutionTimeMs - mean
		variance += diff * diff
	}
	variance /= float64(len(records))

	return mean, math.Sqrt(variance)
}

// Returns the alert manager, for handlers that list or resolve alerts
func (m *Monitor) Alerts() *AlertManager {
	if m == nil {
		return nil
	}
	return m.alerts
}

// StartSampler attaches and starts the periodic system metrics sampler.
// Each sample checks the CPU and memory thresholds and triggers a sweep
// of stale in-flight queries.
func (m *Monitor) StartSampler(source MetricsSource, interval time.Duration, maxSamples int) {
	if m == nil {
		return
	}

	m.mu.Lock()
	if m.sampler != nil {
		m.mu.Unlock()
		return
	}
	sampler := NewSystemSampler(source, interval, maxSamples, m.handleSample)
	m.sampler = sampler
	m.mu.Unlock()

	sampler.Start()
}

// StopSampler stops the background sampler if one is running
func (m *Monitor) StopSampler() {
	if m == nil {
		return
	}

	m.mu.Lock()
	sampler := m.sampler
	m.mu.Unlock()

	if sampler != nil {
		sampler.Stop()
	}
}

func (m *Monitor) handleSample(cpuPercent, memPercent float64) {
	if cpuPercent >= m.cfg.HighCPUPercent {
		m.alerts.Raise(AlertHighCPU, SeverityCritical, "", "",
			fmt.Sprintf("CPU at %.1f%%, above the %.0f%% threshold", cpuPercent, m.cfg.HighCPUPercent))
	}
	if memPercent >= m.cfg.HighMemoryPercent {
		m.alerts.Raise(AlertHighMemory, SeverityCritical, "", "",
			fmt.Sprintf("Memory at %.1f%%, above the %.0f%% threshold", memPercent, m.cfg.HighMemoryPercent))
	}

	// With DetectEvery above 1, completions between cadence points
	// would go unexamined during a lull; the sampler tick backstops them
	m.mu.Lock()
	m.detectAnomalies()
	m.mu.Unlock()

	m.SweepStale()
}
