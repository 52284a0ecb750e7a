// Package metrics collects request outcomes for the load generator and
// exposes the live rolling statistics the stage scheduler and console
// reporter consume.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine aggregates per-request latencies and outcomes.
//
// Latencies go into HDR histograms (1 microsecond to 1 hour, 3 significant
// figures) keyed by request display name plus one overall histogram; counts
// use atomics so the hot path stays cheap under many concurrent virtual
// users.
//
// Engine is safe for concurrent use.
type Engine struct {
	histMu  sync.Mutex
	overall *hdrhistogram.Histogram

	requestsMu sync.RWMutex
	requests   map[string]*requestStats

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	totalBytes      atomic.Int64
	totalLatencyUs  atomic.Int64

	activeVUs atomic.Int32
	startTime time.Time
}

type requestStats struct {
	hist     *hdrhistogram.Histogram
	count    int64
	failures int64
}

const (
	histogramMin     = 1
	histogramMax     = 3600000000 // 1 hour in microseconds
	histogramSigFigs = 3
)

// NewEngine creates an empty metrics engine.
func NewEngine() *Engine {
	return &Engine{
		overall:   hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
		requests:  make(map[string]*requestStats),
		startTime: time.Now(),
	}
}

// Record registers one completed request. It implements the pipeline's
// Recorder interface.
func (e *Engine) Record(name string, duration time.Duration, success bool, bytes int64) {
	micros := duration.Microseconds()
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}

	e.histMu.Lock()
	e.overall.RecordValue(micros)
	e.histMu.Unlock()

	if name != "" {
		e.recordRequest(name, micros, success)
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(bytes)
	e.totalLatencyUs.Add(micros)
	if success {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}
}

func (e *Engine) recordRequest(name string, micros int64, success bool) {
	e.requestsMu.Lock()
	defer e.requestsMu.Unlock()

	stats, ok := e.requests[name]
	if !ok {
		stats = &requestStats{hist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)}
		e.requests[name] = stats
	}
	stats.hist.RecordValue(micros)
	stats.count++
	if !success {
		stats.failures++
	}
}

// AvgResponseTime returns the rolling mean latency over every recorded
// request. The second return value is false until the first sample arrives;
// the scheduler falls back to its warm-up default in that case.
func (e *Engine) AvgResponseTime() (time.Duration, bool) {
	total := e.totalRequests.Load()
	if total == 0 {
		return 0, false
	}
	return time.Duration(e.totalLatencyUs.Load()/total) * time.Microsecond, true
}

// SetActiveVUs updates the active virtual-user gauge.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
}

// ActiveVUs returns the current virtual-user gauge.
func (e *Engine) ActiveVUs() int {
	return int(e.activeVUs.Load())
}

// LatencyStats summarizes one latency distribution.
type LatencyStats struct {
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
	Count int64
}

// RequestStats summarizes one request name's outcomes.
type RequestStats struct {
	Name     string
	Count    int64
	Failures int64
	Latency  LatencyStats
}

// Snapshot is a point-in-time view of every aggregate the reporter prints.
type Snapshot struct {
	StartTime       time.Time
	Elapsed         time.Duration
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalBytes      int64
	ErrorRate       float64
	RPS             float64
	ActiveVUs       int
	Latency         LatencyStats
}

// GetSnapshot captures the current aggregates.
func (e *Engine) GetSnapshot() *Snapshot {
	e.histMu.Lock()
	latency := statsFromHistogram(e.overall)
	e.histMu.Unlock()

	elapsed := time.Since(e.startTime)
	total := e.totalRequests.Load()
	failed := e.failedRequests.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(total) / elapsed.Seconds()
	}
	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return &Snapshot{
		StartTime:       e.startTime,
		Elapsed:         elapsed,
		TotalRequests:   total,
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  failed,
		TotalBytes:      e.totalBytes.Load(),
		ErrorRate:       errorRate,
		RPS:             rps,
		ActiveVUs:       e.ActiveVUs(),
		Latency:         latency,
	}
}

// GetRequestStats returns per-request-name statistics sorted by name.
func (e *Engine) GetRequestStats() []RequestStats {
	e.requestsMu.RLock()
	defer e.requestsMu.RUnlock()

	result := make([]RequestStats, 0, len(e.requests))
	for name, stats := range e.requests {
		result = append(result, RequestStats{
			Name:     name,
			Count:    stats.count,
			Failures: stats.failures,
			Latency:  statsFromHistogram(stats.hist),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func statsFromHistogram(hist *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:   time.Duration(hist.Min()) * time.Microsecond,
		Max:   time.Duration(hist.Max()) * time.Microsecond,
		Mean:  time.Duration(hist.Mean()) * time.Microsecond,
		P50:   time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
		P90:   time.Duration(hist.ValueAtQuantile(90)) * time.Microsecond,
		P95:   time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond,
		Count: hist.TotalCount(),
	}
}
