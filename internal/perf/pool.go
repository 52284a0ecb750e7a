package perf

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Blodie/locust-stages/internal/perf/metrics"
)

// HTTPClientConfig tunes the shared HTTP client all virtual users issue
// requests through.
type HTTPClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool
	DisableCompression  bool
}

// DefaultHTTPClientConfig returns defaults sized for load generation.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient builds an HTTP client from cfg.
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			MaxConnsPerHost:     cfg.MaxConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
			DisableKeepAlives:   cfg.DisableKeepAlives,
			DisableCompression:  cfg.DisableCompression,
		},
	}
}

// Pool owns the live virtual users. The controller scales it toward the
// shape scheduler's target; excess VUs are stopped newest-first so the
// longest-lived users keep running through a down-ramp.
type Pool struct {
	tasks   *TaskSet
	metrics *metrics.Engine

	vusMu sync.Mutex
	vus   []*VirtualUser

	nextID     atomic.Int32
	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// NewPool creates an empty pool whose VUs draw from tasks and report the
// active-VU gauge to m.
func NewPool(tasks *TaskSet, m *metrics.Engine) *Pool {
	return &Pool{
		tasks:      tasks,
		metrics:    m,
		shutdownCh: make(chan struct{}),
	}
}

// ActiveCount returns the number of VUs the pool currently runs.
func (p *Pool) ActiveCount() int {
	p.vusMu.Lock()
	defer p.vusMu.Unlock()
	return len(p.vus)
}

// Scale adjusts the pool to target VUs, spawning or stopping as needed.
// Negative targets are treated as zero; the pool cannot run a negative
// user count. Returns the resulting count.
func (p *Pool) Scale(ctx context.Context, target int) int {
	if target < 0 {
		target = 0
	}

	p.vusMu.Lock()
	current := len(p.vus)
	if target > current {
		for i := current; i < target; i++ {
			vu := NewVirtualUser(int(p.nextID.Add(1)), p.tasks)
			p.vus = append(p.vus, vu)
			p.wg.Add(1)
			go p.runVU(ctx, vu)
		}
	} else if target < current {
		for i := current - 1; i >= target; i-- {
			p.vus[i].RequestStop()
		}
		p.vus = p.vus[:target]
	}
	count := len(p.vus)
	p.vusMu.Unlock()

	if p.metrics != nil {
		p.metrics.SetActiveVUs(count)
	}
	return count
}

// runVU iterates a VU until it is stopped or the context ends.
func (p *Pool) runVU(ctx context.Context, vu *VirtualUser) {
	defer p.wg.Done()
	defer vu.MarkStopped()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdownCh:
			return
		default:
		}

		state := vu.GetState()
		if state == VUStateStopping || state == VUStateStopped {
			return
		}

		if err := vu.RunIteration(ctx); err != nil {
			if ctx.Err() != nil || vu.GetState() == VUStateStopping {
				return
			}
			// Transport failures were already recorded against the request
			// name; the VU keeps iterating.
		}
	}
}

// StopAll requests every VU to stop after its current iteration.
func (p *Pool) StopAll() {
	p.vusMu.Lock()
	for _, vu := range p.vus {
		vu.RequestStop()
	}
	p.vus = p.vus[:0]
	p.vusMu.Unlock()

	if p.metrics != nil {
		p.metrics.SetActiveVUs(0)
	}
}

// Shutdown stops every VU and waits up to timeout for their goroutines to
// exit. It reports whether all VUs stopped in time.
func (p *Pool) Shutdown(timeout time.Duration) bool {
	select {
	case <-p.shutdownCh:
	default:
		close(p.shutdownCh)
	}
	p.StopAll()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
