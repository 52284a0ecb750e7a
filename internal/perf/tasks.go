// Package perf is the virtual-user harness: the weighted task table, VU
// lifecycle and pool, the once-per-second shape controller, and the engine
// that wires them together for one run.
package perf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/Blodie/locust-stages/internal/pipeline"
	"github.com/Blodie/locust-stages/internal/tpo"
)

// DefaultReleaseWait is how long an order must age before its release call
// may be sent.
const DefaultReleaseWait = 180 * time.Second

// Weights assigns an integer weight to each task. A zero weight disables the
// task entirely; weights need not be uniform.
type Weights struct {
	TokenGeneration int
	GetMenu         int
	Order           int
	Release         int
}

// DefaultWeights runs the order/release pair and leaves the standalone token
// and menu probes disabled.
func DefaultWeights() Weights {
	return Weights{TokenGeneration: 0, GetMenu: 0, Order: 1, Release: 1}
}

// TaskConfig carries the task table's knobs.
type TaskConfig struct {
	Weights      Weights
	ReleaseWait  time.Duration
	LogResponses bool
	LogWriter    io.Writer
}

type weightedTask struct {
	name   string
	weight int
	run    func(ctx context.Context) error
}

// TaskSet is the weighted table of tasks a virtual user draws from. All VUs
// share one TaskSet; the sender and release queue inside it are safe for
// concurrent use.
type TaskSet struct {
	builder *tpo.Builder
	sender  *pipeline.Sender
	queue   *pipeline.ReleaseQueue

	releaseWait  time.Duration
	logResponses bool
	logWriter    io.Writer

	tasks       []weightedTask
	totalWeight int
}

// NewTaskSet builds the task table from cfg. At least one task must carry a
// positive weight.
func NewTaskSet(builder *tpo.Builder, sender *pipeline.Sender, queue *pipeline.ReleaseQueue, cfg TaskConfig) (*TaskSet, error) {
	if cfg.ReleaseWait <= 0 {
		cfg.ReleaseWait = DefaultReleaseWait
	}
	if cfg.LogWriter == nil {
		cfg.LogWriter = io.Discard
	}

	ts := &TaskSet{
		builder:      builder,
		sender:       sender,
		queue:        queue,
		releaseWait:  cfg.ReleaseWait,
		logResponses: cfg.LogResponses,
		logWriter:    cfg.LogWriter,
	}

	for _, t := range []weightedTask{
		{name: tpo.KindTokenGeneration.String(), weight: cfg.Weights.TokenGeneration, run: ts.tokenGeneration},
		{name: tpo.KindGetMenu.String(), weight: cfg.Weights.GetMenu, run: ts.getMenu},
		{name: tpo.KindOrder.String(), weight: cfg.Weights.Order, run: ts.order},
		{name: tpo.KindRelease.String(), weight: cfg.Weights.Release, run: ts.release},
	} {
		if t.weight < 0 {
			return nil, fmt.Errorf("task %s: weight must be >= 0", t.name)
		}
		if t.weight == 0 {
			continue
		}
		ts.tasks = append(ts.tasks, t)
		ts.totalWeight += t.weight
	}
	if ts.totalWeight == 0 {
		return nil, errors.New("at least one task must have a positive weight")
	}
	return ts, nil
}

// RunOne picks one task by weight using rng and executes it. The returned
// error covers transport breakdowns only; classified request failures are
// already recorded by the sender and are not errors here.
func (ts *TaskSet) RunOne(ctx context.Context, rng *rand.Rand) error {
	pick := rng.Intn(ts.totalWeight)
	for _, t := range ts.tasks {
		pick -= t.weight
		if pick < 0 {
			return t.run(ctx)
		}
	}
	// Unreachable: the weights sum to totalWeight.
	return ts.tasks[len(ts.tasks)-1].run(ctx)
}

func (ts *TaskSet) tokenGeneration(ctx context.Context) error {
	spec, err := ts.builder.Build(tpo.KindTokenGeneration)
	if err != nil {
		return err
	}
	body, err := ts.sender.Send(ctx, spec)
	if err != nil {
		return err
	}
	ts.logBody(spec.Name, body)
	return nil
}

func (ts *TaskSet) getMenu(ctx context.Context) error {
	spec, err := ts.builder.Build(tpo.KindGetMenu)
	if err != nil {
		return err
	}
	body, err := ts.sender.Send(ctx, spec)
	if err != nil {
		return err
	}
	ts.logBody(spec.Name, body)
	return nil
}

// order submits an order and, regardless of its outcome, enqueues the
// matching release request (same vendor, store and order ids) for the
// release task to pick up once the wait threshold has passed.
func (ts *TaskSet) order(ctx context.Context) error {
	orderSpec, err := ts.builder.Build(tpo.KindOrder)
	if err != nil {
		return err
	}
	body, sendErr := ts.sender.Send(ctx, orderSpec)

	releaseSpec, err := ts.builder.Build(tpo.KindRelease,
		tpo.WithVendor(orderSpec.Vendor),
		tpo.WithStoreID(orderSpec.StoreID),
		tpo.WithOrderID(orderSpec.OrderID),
	)
	if err != nil {
		return err
	}
	ts.queue.Enqueue(releaseSpec, time.Now())

	if sendErr != nil {
		return sendErr
	}
	ts.logBody(orderSpec.Name, body)
	return nil
}

// release peeks at the oldest deferred order and sends its release call only
// once the wait threshold has elapsed. An empty queue or a too-young head
// entry is a no-op; the entry stays put for a later invocation.
func (ts *TaskSet) release(ctx context.Context) error {
	enqueuedAt, ok := ts.queue.Peek()
	if !ok || time.Since(enqueuedAt) < ts.releaseWait {
		ts.logBody("release", pipeline.Body{"note": "no release request ready"})
		return nil
	}

	spec, ok := ts.queue.Dequeue()
	if !ok {
		// Another consumer won the race; nothing to do.
		return nil
	}
	body, err := ts.sender.Send(ctx, spec)
	if err != nil {
		return err
	}
	ts.logBody(spec.Name, body)
	return nil
}

func (ts *TaskSet) logBody(name string, body pipeline.Body) {
	if ts.logResponses {
		fmt.Fprintf(ts.logWriter, "%s: %v\n", name, body)
	}
}

// Queue exposes the shared release queue, mainly for the engine's shutdown
// accounting and for tests.
func (ts *TaskSet) Queue() *pipeline.ReleaseQueue {
	return ts.queue
}
