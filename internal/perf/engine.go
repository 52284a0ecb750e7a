package perf

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Blodie/locust-stages/internal/perf/metrics"
	"github.com/Blodie/locust-stages/internal/pipeline"
	"github.com/Blodie/locust-stages/internal/shape"
	"github.com/Blodie/locust-stages/internal/tpo"
)

// DefaultStatsInterval is how often the reporter is handed a progress
// snapshot during a run.
const DefaultStatsInterval = 10 * time.Second

// shutdownGrace bounds how long the engine waits for in-flight iterations
// after the last stage completes.
const shutdownGrace = 30 * time.Second

// Reporter receives progress snapshots during the run and the final summary
// after it. The console reporter implements it; a nil reporter is allowed.
type Reporter interface {
	Progress(snapshot *metrics.Snapshot, requests []metrics.RequestStats, stageIndex, stageCount int)
	Summary(snapshot *metrics.Snapshot, requests []metrics.RequestStats)
}

// Options configures one load-test run.
type Options struct {
	Environment tpo.Environment
	Stages      []shape.Stage

	// RampRate caps how fast the pool moves toward the scheduler's target,
	// in users per second.
	RampRate float64

	Weights         Weights
	ReleaseWait     time.Duration
	UseGlobalTokens bool
	LogResponses    bool
	LogWriter       io.Writer

	StatsInterval time.Duration
	HTTPClient    HTTPClientConfig

	// BaseURLs optionally overrides the per-environment base URLs.
	BaseURLs map[tpo.Environment]string

	// Catalog optionally replaces the built-in vendor catalog.
	Catalog *tpo.Catalog
}

// Engine wires the full run together: vendor catalog, request builder and
// sender, release queue, metrics, shape scheduler, VU pool and controller.
type Engine struct {
	opts      Options
	metrics   *metrics.Engine
	scheduler *shape.Scheduler
	pool      *Pool
	reporter  Reporter
}

// NewEngine validates opts and assembles a ready-to-run engine.
func NewEngine(opts Options, reporter Reporter) (*Engine, error) {
	if len(opts.Stages) == 0 {
		return nil, errors.New("at least one stage is required")
	}
	if opts.RampRate <= 0 {
		return nil, errors.New("ramp rate must be > 0")
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}
	if opts.HTTPClient == (HTTPClientConfig{}) {
		opts.HTTPClient = DefaultHTTPClientConfig()
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = tpo.DefaultCatalog()
	}

	var builderOpts []tpo.BuilderOption
	if len(opts.BaseURLs) > 0 {
		builderOpts = append(builderOpts, tpo.WithBaseURLs(opts.BaseURLs))
	}
	builder := tpo.NewBuilder(opts.Environment, catalog, builderOpts...)

	m := metrics.NewEngine()
	sender := pipeline.NewSender(NewHTTPClient(opts.HTTPClient), builder, pipeline.Config{
		Environment:     opts.Environment,
		UseGlobalTokens: opts.UseGlobalTokens,
	}, m)

	tasks, err := NewTaskSet(builder, sender, pipeline.NewReleaseQueue(), TaskConfig{
		Weights:      opts.Weights,
		ReleaseWait:  opts.ReleaseWait,
		LogResponses: opts.LogResponses,
		LogWriter:    opts.LogWriter,
	})
	if err != nil {
		return nil, err
	}

	scheduler, err := shape.NewScheduler(opts.Stages, m, opts.RampRate)
	if err != nil {
		return nil, err
	}

	return &Engine{
		opts:      opts,
		metrics:   m,
		scheduler: scheduler,
		pool:      NewPool(tasks, m),
		reporter:  reporter,
	}, nil
}

// Metrics exposes the run's metrics engine.
func (e *Engine) Metrics() *metrics.Engine {
	return e.metrics
}

// Run executes the stage plan to completion. It returns nil when the last
// stage finishes, or the context error when cancelled early; either way the
// pool is drained and the final summary is reported before returning.
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		// The controller finishing, for any reason, ends the stats loop too.
		defer cancel()
		return NewController(e.scheduler, e.pool).Run(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(e.opts.StatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				e.reportProgress()
			}
		}
	})

	err := g.Wait()
	e.pool.Shutdown(shutdownGrace)
	e.reportSummary()

	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	// The controller's context error from its own cancel is not a failure;
	// a completed stage plan is a clean exit.
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) reportProgress() {
	if e.reporter == nil {
		return
	}
	e.reporter.Progress(e.metrics.GetSnapshot(), e.metrics.GetRequestStats(),
		e.scheduler.StageIndex(), e.scheduler.StageCount())
}

func (e *Engine) reportSummary() {
	if e.reporter == nil {
		return
	}
	e.reporter.Summary(e.metrics.GetSnapshot(), e.metrics.GetRequestStats())
}
