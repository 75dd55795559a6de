package kernel

// Mutex provides mutual exclusion between tasks with priority
// inheritance: while a higher-priority task waits, the holder runs at
// the waiter's priority, bounding priority inversion. Ownership is
// handed directly to the front waiter on unlock.
//
// The mutex is not recursive. A re-lock by the owner fails with
// ErrDeadlock instead of deadlocking silently.
type Mutex struct {
	noCopy  noCopy
	k       *Kernel
	owner   *Task
	waiters waitList
}

// NewMutex creates a mutex bound to the kernel.
func (k *Kernel) NewMutex() *Mutex {
	return &Mutex{k: k}
}

// Lock acquires the mutex for the running task, waiting up to timeout
// ticks. A NoWait timeout fails immediately with ErrTimeout when the
// mutex is held.
func (m *Mutex) Lock(t *Task, timeout Ticks) error {
	k := m.k
	if !k.started {
		return ErrNotInitialized
	}
	if k.current != t {
		return ErrInvalidState
	}

	if m.owner == nil {
		m.owner = t
		t.owned = append(t.owned, m)
		return nil
	}
	if m.owner == t {
		return ErrDeadlock
	}
	if timeout == NoWait {
		return ErrTimeout
	}

	t.Log("MUTEX BLOCK")

	deadline := k.now + timeout
	t.state = StateBlocked
	t.arrival = k.nextSeq()
	m.waiters.insert(t)
	t.blockedOn = m
	if timeout != Forever {
		k.armWake(t, deadline)
	}

	// The new waiter may raise the owner's effective priority, also
	// transitively when the owner is itself blocked on another mutex.
	k.propagate(m.owner)

	cause := k.switchOut(t)
	switch cause {
	case wakeSignal:
		// Unlock made us the owner before waking us.
		return nil
	case wakeTimeout:
		// Dropping out of the wait list may lower the owner's
		// inherited priority again.
		if m.owner != nil {
			k.propagate(m.owner)
		}
		return ErrTimeout
	default:
		return ErrInvalidState
	}
}

// TryLock is Lock with a zero timeout.
func (m *Mutex) TryLock(t *Task) error {
	return m.Lock(t, NoWait)
}

// Unlock releases the mutex. The front waiter, if any, becomes the
// owner and is woken; the releasing task drops back to its own
// effective priority. Unlock by a non-owner fails with ErrNotOwner.
func (m *Mutex) Unlock(t *Task) error {
	k := m.k
	if !k.started {
		return ErrNotInitialized
	}
	if k.current != t {
		return ErrInvalidState
	}
	if m.owner != t {
		return ErrNotOwner
	}

	for i, o := range t.owned {
		if o == m {
			t.owned = append(t.owned[:i], t.owned[i+1:]...)
			break
		}
	}

	w := m.waiters.pop()
	if w == nil {
		m.owner = nil
		return nil
	}

	m.owner = w
	w.owned = append(w.owned, m)
	k.wake(w, wakeSignal)
	k.maybePreempt(t)
	return nil
}

// Owner returns the task currently holding the mutex, or nil.
func (m *Mutex) Owner() *Task { return m.owner }

// WaitCount returns the number of tasks waiting to acquire the mutex.
func (m *Mutex) WaitCount() int { return m.waiters.len() }

// propagate repositions t in its scheduling structure after its
// effective priority may have changed, following the ownership chain
// so that nested inversion stays bounded. The iteration cap guards
// against application-built lock cycles.
func (k *Kernel) propagate(t *Task) {
	for i := 0; t != nil && i < MaxTasks; i++ {
		switch t.state {
		case StateReady:
			k.requeueReady(t)
			return
		case StateBlocked:
			if t.waitingOn != nil {
				t.waitingOn.reposition(t)
			}
			if t.blockedOn != nil && t.blockedOn.owner != nil && t.blockedOn.owner != t {
				t = t.blockedOn.owner
				continue
			}
			return
		default:
			// Running or delayed holders need no repositioning.
			return
		}
	}
}
