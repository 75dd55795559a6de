package kernel

import (
	"container/heap"
	"context"
)

// Tick advances the time base by one period, wakes delayed tasks and
// timed-out waiters whose deadline has arrived, and forces a
// rescheduling decision if a newly-ready task outranks the running
// one. The platform tick source calls this once per tick interrupt.
//
// Under correct configuration Tick cannot fail; an error here means
// the kernel detected internal inconsistency and has halted.
func (k *Kernel) Tick() error {
	if !k.started {
		return ErrNotInitialized
	}
	if k.halted {
		return ErrInvalidState
	}

	k.now++
	if err := k.wakeExpired(); err != nil {
		return err
	}
	k.maybePreempt(k.current)
	return nil
}

// Step runs one scheduling decision: drain pending interrupt work,
// elect the highest-priority ready task, context switch to it and run
// it to its next suspension point. It reports whether a task ran.
func (k *Kernel) Step() bool {
	if !k.started || k.halted {
		return false
	}
	k.drainISR()
	if k.halted {
		return false
	}

	t := k.selectNext()
	if t == nil {
		return false
	}
	k.dispatch(t)
	return true
}

// Run drives the kernel until ctx is cancelled or a fatal condition
// halts it. When no task is ready it enters the tickless idle path.
func (k *Kernel) Run(ctx context.Context) error {
	if !k.started {
		return ErrNotInitialized
	}

	for {
		if k.halted {
			return k.fatalErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if k.Step() {
			continue
		}
		if err := k.idleOnce(ctx); err != nil {
			return err
		}
	}
}

// selectNext elects the highest-priority ready task, round-robin
// among equals in arrival order.
func (k *Kernel) selectNext() *Task {
	for p := int(PriorityMax); p >= 0; p-- {
		if k.ready[p].Len() == 0 {
			continue
		}
		t := k.ready[p].PopFront()
		if t.state != StateReady {
			k.fatal(t, ErrUnknown)
			return nil
		}
		return t
	}
	return nil
}

// dispatch context switches to t and resumes it until it suspends or
// terminates. The stack guard is checked on both edges of the switch;
// a damaged guard is kernel-fatal.
func (k *Kernel) dispatch(t *Task) {
	if !t.guardIntact() {
		k.fatal(t, ErrStackOverflow)
		return
	}
	if hook := k.cfg.SwitchHook; hook != nil {
		hook(k.prev, t)
	}

	k.stats.switches++
	k.prev = t
	k.current = t
	t.state = StateRunning
	t.Log("RUN")

	cause := t.cause
	t.cause = wakeNone
	alive, completed := k.resumeTask(t, cause)
	if !completed {
		// A panic escaped the task body; the switch back never
		// completed cleanly.
		k.current = nil
		t.state = StateTerminated
		t.tracer.End()
		k.fatal(t, ErrContextSwitch)
		return
	}

	k.current = nil
	t.updateHighWater()
	if !t.guardIntact() {
		k.fatal(t, ErrStackOverflow)
		return
	}
	if !alive {
		t.state = StateTerminated
		t.tracer.End()
	}
}

// resumeTask runs t to its next suspension point, containing any panic
// from the task body. completed is false when a panic was recovered.
func (k *Kernel) resumeTask(t *Task, cause wakeCause) (alive, completed bool) {
	defer func() {
		if r := recover(); r != nil {
			alive, completed = false, false
		}
	}()
	_, alive = t.resume(cause)
	return alive, true
}

func (k *Kernel) enqueueReady(t *Task) {
	t.state = StateReady
	t.readyPri = t.eff()
	k.ready[t.readyPri].PushBack(t)
}

// requeueReady repositions a ready task whose effective priority
// changed, e.g. when it inherits from a new waiter.
func (k *Kernel) requeueReady(t *Task) {
	q := &k.ready[t.readyPri]
	for i := 0; i < q.Len(); i++ {
		if q.At(i) == t {
			q.Remove(i)
			break
		}
	}
	k.enqueueReady(t)
}

func (k *Kernel) highestReady() (Priority, bool) {
	for p := int(PriorityMax); p >= 0; p-- {
		if k.ready[p].Len() > 0 {
			return Priority(p), true
		}
	}
	return 0, false
}

// blockOn suspends the running task on wl until a wake or, when timed
// is set, the absolute deadline. It returns the wake cause once the
// task is next dispatched.
func (k *Kernel) blockOn(t *Task, wl *waitList, deadline Ticks, timed bool) wakeCause {
	t.state = StateBlocked
	t.arrival = k.nextSeq()
	wl.insert(t)
	if timed {
		k.armWake(t, deadline)
	}
	return k.switchOut(t)
}

// switchOut suspends the running task back into the scheduler loop.
// Runs on the task's coroutine.
func (k *Kernel) switchOut(t *Task) wakeCause {
	t.updateHighWater()
	if !t.guardIntact() {
		k.fatal(t, ErrStackOverflow)
	}
	return t.suspend()
}

// wake makes a waiting task ready, cancelling any pending deadline.
// Callers are responsible for the follow-up preemption check.
func (k *Kernel) wake(t *Task, cause wakeCause) {
	if t.waitingOn != nil {
		t.waitingOn.remove(t)
	}
	t.blockedOn = nil
	t.notifying = false
	t.wakeGen++
	t.cause = cause
	t.Log("WAKE")
	k.enqueueReady(t)
}

// maybePreempt suspends the running task if a strictly
// higher-priority task became ready. The preempted task stays ready
// and continues once it is next elected.
func (k *Kernel) maybePreempt(cur *Task) {
	if cur == nil || k.current != cur {
		return
	}
	hp, ok := k.highestReady()
	if !ok || hp <= cur.eff() {
		return
	}

	k.stats.preemptions++
	cur.state = StateReady
	cur.readyPri = cur.eff()
	k.ready[cur.readyPri].PushBack(cur)
	k.switchOut(cur)
}

// armWake registers an absolute deadline for t. A later wake from any
// source invalidates the entry via the generation counter.
func (k *Kernel) armWake(t *Task, deadline Ticks) {
	t.wakeAt = deadline
	t.wakeGen++
	heap.Push(&k.delayed, delayEntry{deadline: deadline, gen: t.wakeGen, task: t})
}

func (k *Kernel) wakeExpired() error {
	for {
		e, ok := k.delayed.peek()
		if !ok || e.deadline > k.now {
			return nil
		}
		heap.Pop(&k.delayed)

		t := e.task
		if e.gen != t.wakeGen {
			continue // superseded wake
		}
		switch t.state {
		case StateDelayed, StateBlocked:
			k.wake(t, wakeTimeout)
		default:
			k.fatal(t, ErrUnknown)
			return ErrUnknown
		}
	}
}

// yield re-enters the scheduling decision without blocking.
func (k *Kernel) yield(t *Task) {
	if k.current != t {
		return
	}
	t.state = StateReady
	t.readyPri = t.eff()
	k.ready[t.readyPri].PushBack(t)
	k.switchOut(t)
}

func (k *Kernel) delay(t *Task, ticks Ticks) error {
	if !k.started {
		return ErrNotInitialized
	}
	if k.current != t || ticks == Forever {
		return ErrInvalidState
	}
	if ticks == 0 {
		k.yield(t)
		return nil
	}

	t.state = StateDelayed
	k.armWake(t, k.now+ticks)
	if cause := k.switchOut(t); cause != wakeTimeout {
		return ErrInvalidState
	}
	return nil
}

func (k *Kernel) suspendTask(t *Task) error {
	if !k.started {
		return ErrNotInitialized
	}
	if k.current != t {
		return ErrInvalidState
	}

	t.state = StateSuspended
	k.switchOut(t)
	return nil
}

// Resume makes a suspended task ready again. Callable from another
// task or from the driving loop between steps.
func (k *Kernel) Resume(t *Task) error {
	if !k.started {
		return ErrNotInitialized
	}
	if t.state != StateSuspended {
		return ErrInvalidState
	}

	t.cause = wakeNone
	k.enqueueReady(t)
	k.maybePreempt(k.current)
	return nil
}

// delayEntry is one pending deadline in the delayed-task heap.
type delayEntry struct {
	deadline Ticks
	gen      uint32
	task     *Task
}

// delayHeap is a min-heap over wake deadlines.
type delayHeap []delayEntry

func (h delayHeap) Len() int           { return len(h) }
func (h delayHeap) Less(i, j int) bool { return h[i].deadline < h[j].deadline }
func (h delayHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *delayHeap) Push(x any) {
	*h = append(*h, x.(delayEntry))
}

func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

func (h delayHeap) peek() (delayEntry, bool) {
	if len(h) == 0 {
		return delayEntry{}, false
	}
	return h[0], true
}
