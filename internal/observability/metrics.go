package observability

import (
	"strconv"
	"sync"
	"time"
)

type routeStat struct {
	count       int64
	totalMillis int64
}

// Metrics keeps in-memory request and error counters per route.
type Metrics struct {
	mu         sync.Mutex
	requests   map[string]*routeStat
	errorCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requests:   make(map[string]*routeStat),
		errorCount: make(map[string]int64),
	}
}

// RecordRequest counts a request and accumulates its latency.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	stat, ok := m.requests[key]
	if !ok {
		stat = &routeStat{}
		m.requests[key] = stat
	}
	stat.count++
	stat.totalMillis += duration.Milliseconds()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
