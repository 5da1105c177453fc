package monitor

import (
	"log"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// One CPU or memory reading
type MetricSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Source of point-in-time system readings. The gopsutil-backed
// SystemSource is used in production; tests substitute a fake.
type MetricsSource interface {
	Sample() (cpuPercent, memPercent float64, err error)
}

// Reads host CPU and memory utilization
type SystemSource struct{}

func (SystemSource) Sample() (float64, float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, err
	}
	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}

	return cpuPercent, vm.UsedPercent, nil
}

// Periodically samples system metrics into bounded buffers, independent
// of request handling. It only writes to its own buffers; threshold
// checks happen in the supplied callback.
type SystemSampler struct {
	mu         sync.RWMutex
	source     MetricsSource
	interval   time.Duration
	maxSamples int
	cpuSamples []MetricSample
	memSamples []MetricSample
	onSample   func(cpuPercent, memPercent float64)
	stopChan   chan struct{}
	running    bool
}

func NewSystemSampler(source MetricsSource, interval time.Duration, maxSamples int, onSample func(cpuPercent, memPercent float64)) *SystemSampler {
	if source == nil {
		source = SystemSource{}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxSamples <= 0 {
		maxSamples = 120
	}

	return &SystemSampler{
		source:     source,
		interval:   interval,
		maxSamples: maxSamples,
		onSample:   onSample,
		stopChan:   make(chan struct{}),
	}
}

// Begins periodic sampling. A stopped sampler can be started again.
func (s *SystemSampler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	// A fresh channel per run; the previous one is closed and would
	// stop the new goroutine immediately
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	log.Printf("Starting system metrics sampler (interval: %v)", s.interval)

	// Take an initial reading immediately
	s.sampleOnce()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sampleOnce()
			case <-stop:
				return
			}
		}
	}()
}

// Stops the sampler
func (s *SystemSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopChan)
		s.running = false
		log.Printf("System metrics sampler stopped")
	}
}

func (s *SystemSampler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *SystemSampler) sampleOnce() {
	cpuPercent, memPercent, err := s.source.Sample()
	if err != nil {
		log.Printf("System metrics sample failed: %v", err)
		return
	}

	now := time.Now()

	s.mu.Lock()
	s.cpuSamples = appendBounded(s.cpuSamples, MetricSample{Timestamp: now, Value: cpuPercent}, s.maxSamples)
	s.memSamples = appendBounded(s.memSamples, MetricSample{Timestamp: now, Value: memPercent}, s.maxSamples)
	onSample := s.onSample
	s.mu.Unlock()

	if onSample != nil {
		onSample(cpuPercent, memPercent)
	}
}

// Returns copies of the retained CPU and memory samples
func (s *SystemSampler) Samples() (cpuSamples, memSamples []MetricSample) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cpuSamples = make([]MetricSample, len(s.cpuSamples))
	copy(cpuSamples, s.cpuSamples)
	memSamples = make([]MetricSample, len(s.memSamples))
	copy(memSamples, s.memSamples)

	return cpuSamples, memSamples
}

func appendBounded(samples []MetricSample, sample MetricSample, max int) []MetricSample {
	samples = append(samples, sample)
	if len(samples) > max {
		samples = samples[len(samples)-max:]
	}
	return samples
}
