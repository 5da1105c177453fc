package monitor

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertSlowQuery       AlertType = "slow_query"
	AlertAnomaly         AlertType = "anomaly"
	AlertHighCPU         AlertType = "high_cpu"
	AlertHighMemory      AlertType = "high_memory"
	AlertHighConcurrency AlertType = "high_concurrency"
	AlertStaleQuery      AlertType = "stale_query"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Alert struct {
	ID         uuid.UUID  `json:"id"`
	Type       AlertType  `json:"type"`
	Severity   Severity   `json:"severity"`
	Collection string     `json:"collection,omitempty"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

const maxRetainedAlerts = 200

// Raises and tracks alerts. The same condition (type + collection +
// dedup key) fires at most once per cool-down window.
type AlertManager struct {
	mu         sync.Mutex
	alerts     []Alert
	lastRaised map[string]time.Time
	cooldown   time.Duration
	now        func() time.Time
}

func NewAlertManager(cooldown time.Duration) *AlertManager {
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &AlertManager{
		lastRaised: make(map[string]time.Time),
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// Raise creates a new alert unless the same condition fired within the
// cool-down window. Returns true if an alert was created.
func (m *AlertManager) Raise(alertType AlertType, severity Severity, collection, dedupKey, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := string(alertType) + "|" + collection + "|" + dedupKey

	if last, ok := m.lastRaised[key]; ok && now.Sub(last) < m.cooldown {
		return false
	}
	m.lastRaised[key] = now

	alert := Alert{
		ID:         uuid.New(),
		Type:       alertType,
		Severity:   severity,
		Collection: collection,
		Message:    message,
		CreatedAt:  now,
	}
	m.alerts = append(m.alerts, alert)
	if len(m.alerts) > maxRetainedAlerts {
		m.alerts = m.alerts[len(m.alerts)-maxRetainedAlerts:]
	}

	log.Printf("ALERT [%s/%s] %s", alertType, severity, message)
	return true
}

// Marks an alert resolved; returns false if the id is unknown
func (m *AlertManager) Resolve(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id && !m.alerts[i].Resolved {
			now := m.now()
			m.alerts[i].Resolved = true
			m.alerts[i].ResolvedAt = &now
			return true
		}
	}
	return false
}

// Returns a copy of the retained alerts, optionally without resolved ones
func (m *AlertManager) Alerts(includeResolved bool) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := make([]Alert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		if !includeResolved && alert.Resolved {
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts
}

func (m *AlertManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, alert := range m.alerts {
		if !alert.Resolved {
			count++
		}
	}
	return count
}
