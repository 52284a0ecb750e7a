package perf

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"
)

// VUState is the lifecycle state of a virtual user.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently iterating.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is executing a task.
	VUStateRunning
	// VUStateStopping indicates the VU has been asked to stop.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is one simulated client. Each iteration draws a weighted task
// from the shared TaskSet and executes it; VUs are otherwise independent and
// only interact through the sender, queue and metrics inside the TaskSet.
type VirtualUser struct {
	ID int

	tasks *TaskSet
	rng   *rand.Rand

	state     atomic.Int32
	stopCh    chan struct{}
	doneCh    chan struct{}
	iteration atomic.Int64
}

// NewVirtualUser creates a virtual user drawing tasks from tasks. Each VU
// gets its own rand source so task selection does not contend on a shared
// lock.
func NewVirtualUser(id int, tasks *TaskSet) *VirtualUser {
	return &VirtualUser{
		ID:     id,
		tasks:  tasks,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano() + int64(id))),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// GetState returns the current lifecycle state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of iterations started so far.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// RunIteration executes one weighted task draw.
func (vu *VirtualUser) RunIteration(ctx context.Context) error {
	state := vu.GetState()
	if state == VUStateStopping || state == VUStateStopped {
		return fmt.Errorf("vu %d is stopping or stopped", vu.ID)
	}

	vu.state.Store(int32(VUStateRunning))
	vu.iteration.Add(1)

	err := vu.tasks.RunOne(ctx, vu.rng)

	if vu.GetState() == VUStateRunning {
		vu.state.Store(int32(VUStateIdle))
	}
	return err
}

// RequestStop signals the VU to stop after its current iteration.
func (vu *VirtualUser) RequestStop() {
	if VUState(vu.state.Load()) == VUStateStopped {
		return
	}
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// WaitForStop blocks until the VU has fully stopped or the timeout expires.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	select {
	case <-vu.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// MarkStopped records that the VU's goroutine has exited. Called by the pool.
func (vu *VirtualUser) MarkStopped() {
	vu.state.Store(int32(VUStateStopped))
	select {
	case <-vu.doneCh:
	default:
		close(vu.doneCh)
	}
}
