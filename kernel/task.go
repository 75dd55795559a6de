package kernel

import (
	"context"
	"errors"
	"runtime/trace"
	"sync/atomic"

	"github.com/webriots/coro"
)

const (
	taskNameLen = 16

	// DefaultStackSize is the scratch stack region given to a task
	// whose TaskConfig does not specify one.
	DefaultStackSize = 1024

	stackFill     = 0xA5
	stackGuardLen = 16

	taskTraceTaskType   = "kernel-task"
	taskTraceRegionType = "kernel-region"
	taskTraceCategory   = "kernel"
)

// TaskConfig declares one entry of the task table. The table is fixed
// at Start; tasks are never created or destroyed at runtime.
type TaskConfig struct {
	// Name is a diagnostic label, truncated to 16 bytes.
	Name string

	// Priority is the task's static priority.
	Priority Priority

	// StackSize sizes the task's scratch stack region when Stack is
	// nil. Zero means DefaultStackSize.
	StackSize int

	// Stack optionally supplies the stack region. The task owns it
	// exclusively for its lifetime.
	Stack []byte
}

// Task is the per-task control block. The kernel owns its scheduling
// fields; the task body receives the *Task handle and uses it for
// every kernel call.
type Task struct {
	k       *Kernel
	id      TaskID
	name    [taskNameLen]byte
	nameLen int
	base    Priority
	state   TaskState

	// wakeAt is meaningful only while the task sits in the delayed
	// heap; wakeGen invalidates stale heap entries.
	wakeAt  Ticks
	wakeGen uint32
	cause   wakeCause
	arrival uint64

	owned     []*Mutex  // held mutexes, for priority inheritance
	waitingOn *waitList // set while blocked on a primitive
	blockedOn *Mutex    // set while blocked specifically on a mutex
	notifying bool      // set while blocked in Wait
	effMark   bool      // cycle guard for eff()

	pending atomic.Uint64 // notification word, flag bit 32 + value

	stack    []byte
	minFree  int
	readyPri Priority // ready-queue index while StateReady

	resume  func(wakeCause) (struct{}, bool)
	cancel  func()
	suspend func() wakeCause

	tctx   context.Context
	tracer *trace.Task
}

func newTask(k *Kernel, id TaskID, cfg TaskConfig, fn func(*Task)) *Task {
	t := &Task{
		k:     k,
		id:    id,
		base:  cfg.Priority,
		state: StateReady,
	}
	t.nameLen = copy(t.name[:], cfg.Name)

	stack := cfg.Stack
	if stack == nil {
		size := cfg.StackSize
		if size <= 0 {
			size = DefaultStackSize
		}
		stack = make([]byte, size)
	}
	t.stack = stack
	for i := range t.stack {
		t.stack[i] = stackFill
	}
	t.minFree = len(t.stack) - stackGuardLen

	t.tctx, t.tracer = trace.NewTask(context.Background(), taskTraceTaskType)

	resume, cancel := coro.New(
		func(yield func(struct{}) wakeCause, suspend func() wakeCause) (z struct{}) {
			// coro cancel injects an ErrCanceled panic at the
			// suspension point; the body must absorb it so cancel
			// returns cleanly. Anything else keeps propagating.
			defer func() {
				if p := recover(); p != nil {
					if err, ok := p.(error); ok && errors.Is(err, coro.ErrCanceled) {
						return
					}
					panic(p)
				}
			}()
			_ = yield
			t.suspend = suspend

			region := trace.StartRegion(t.tctx, taskTraceRegionType)
			defer region.End()

			fn(t)
			return
		},
	)

	t.resume = resume
	t.cancel = cancel
	return t
}

// ID returns the task's identity.
func (t *Task) ID() TaskID { return t.id }

// Name returns the task's diagnostic name.
func (t *Task) Name() string { return string(t.name[:t.nameLen]) }

// Priority returns the task's static base priority. Inheritance never
// changes it; see EffectivePriority.
func (t *Task) Priority() Priority { return t.base }

// EffectivePriority returns the priority the scheduler actually uses:
// the base priority raised to the highest-priority waiter across all
// mutexes the task holds.
func (t *Task) EffectivePriority() Priority { return t.eff() }

// State returns the task's current scheduling state.
func (t *Task) State() TaskState { return t.state }

// Stack returns the task's scratch stack region, excluding the guard
// bytes checked at context switches.
func (t *Task) Stack() []byte { return t.stack[stackGuardLen:] }

// StackHighWater returns the smallest number of untouched stack bytes
// observed at any context switch, a proxy for worst-case stack use.
func (t *Task) StackHighWater() int { return t.minFree }

// eff recomputes the effective priority as a derived value rather
// than mutating the base, so restoration under nested ownership is
// exact. The mark breaks recursion if the application built a lock
// cycle.
func (t *Task) eff() Priority {
	if t.effMark {
		return t.base
	}
	t.effMark = true
	p := t.base
	for _, m := range t.owned {
		if hp, ok := m.waiters.highest(); ok && hp > p {
			p = hp
		}
	}
	t.effMark = false
	return p
}

// guardIntact reports whether the stack guard pattern is undamaged.
func (t *Task) guardIntact() bool {
	for _, b := range t.stack[:stackGuardLen] {
		if b != stackFill {
			return false
		}
	}
	return true
}

// updateHighWater rescans the scratch region for the untouched
// watermark. Called at context switches.
func (t *Task) updateHighWater() {
	free := 0
	for _, b := range t.stack[stackGuardLen:] {
		if b != stackFill {
			break
		}
		free++
	}
	if free < t.minFree {
		t.minFree = free
	}
}

// Yield gives up the CPU without blocking. The task stays ready and
// runs again after its equal-priority peers.
func (t *Task) Yield() {
	t.k.yield(t)
}

// Delay moves the task to the delayed state for the given number of
// ticks. A zero delay degenerates to Yield.
func (t *Task) Delay(ticks Ticks) error {
	return t.k.delay(t, ticks)
}

// Suspend takes the task off the scheduler until Resume. Only the
// running task may suspend itself.
func (t *Task) Suspend() error {
	return t.k.suspendTask(t)
}
