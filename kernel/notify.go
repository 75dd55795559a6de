package kernel

// NotifyMode selects how a signal combines with a task's pending
// notification value. Signals never queue: there is exactly one
// pending value per task.
type NotifyMode uint8

const (
	// NotifySetBits ors the signal value into the pending value.
	NotifySetBits NotifyMode = iota

	// NotifyIncrement adds one to the pending value; the signal value
	// is ignored.
	NotifyIncrement

	// NotifyOverwrite replaces the pending value unconditionally.
	NotifyOverwrite

	// NotifyOverwriteIfEmpty replaces the pending value only when no
	// notification is pending; otherwise the signal is dropped, which
	// is this mode's defined behavior.
	NotifyOverwriteIfEmpty
)

func (m NotifyMode) String() string {
	switch m {
	case NotifySetBits:
		return "set-bits"
	case NotifyIncrement:
		return "increment"
	case NotifyOverwrite:
		return "overwrite"
	case NotifyOverwriteIfEmpty:
		return "overwrite-if-empty"
	default:
		return "unknown"
	}
}

// notifyPendingBit marks the packed notification word as holding a
// pending value. The low 32 bits are the value itself.
const notifyPendingBit = uint64(1) << 32

func applyNotify(old uint64, value uint32, mode NotifyMode) uint64 {
	switch mode {
	case NotifySetBits:
		return notifyPendingBit | uint64(uint32(old)|value)
	case NotifyIncrement:
		return notifyPendingBit | uint64(uint32(old)+1)
	case NotifyOverwrite:
		return notifyPendingBit | uint64(value)
	case NotifyOverwriteIfEmpty:
		if old&notifyPendingBit != 0 {
			return old
		}
		return notifyPendingBit | uint64(value)
	default:
		return old
	}
}

// Notify signals target from task context, applying mode to its
// pending notification word and waking it if it is blocked in Wait.
func (k *Kernel) Notify(target *Task, value uint32, mode NotifyMode) error {
	if !k.started {
		return ErrNotInitialized
	}
	if target == nil || target.state == StateTerminated || mode > NotifyOverwriteIfEmpty {
		return ErrInvalidState
	}

	target.signalWord(value, mode)
	if target.notifying {
		k.wake(target, wakeSignal)
		k.maybePreempt(k.current)
	}
	return nil
}

// NotifyFromISR signals target from interrupt context. The word
// update is a compare-and-swap, safe from any goroutine; the wake is
// pended to the next dispatch boundary so the scheduler structures
// are only touched by the driving goroutine.
func (k *Kernel) NotifyFromISR(target *Task, value uint32, mode NotifyMode) error {
	if target == nil || mode > NotifyOverwriteIfEmpty {
		return ErrInvalidState
	}

	target.signalWord(value, mode)
	return k.PendISR(func() {
		if target.notifying {
			k.wake(target, wakeSignal)
		}
	})
}

func (t *Task) signalWord(value uint32, mode NotifyMode) {
	for {
		old := t.pending.Load()
		if t.pending.CompareAndSwap(old, applyNotify(old, value, mode)) {
			return
		}
	}
}

// Wait blocks the task until a notification is pending, then
// atomically consumes it, clearing the word to zero, and returns the
// value. A NoWait timeout polls once and fails with ErrTimeout.
func (t *Task) Wait(timeout Ticks) (uint32, error) {
	k := t.k
	if !k.started {
		return 0, ErrNotInitialized
	}
	if k.current != t {
		return 0, ErrInvalidState
	}

	deadline := k.now + timeout
	for {
		if v, ok := t.consume(); ok {
			return v, nil
		}
		if timeout == NoWait {
			return 0, ErrTimeout
		}

		t.Log("NOTIFY WAIT")
		t.state = StateBlocked
		t.arrival = k.nextSeq()
		t.notifying = true
		if timeout != Forever {
			k.armWake(t, deadline)
		}

		cause := k.switchOut(t)
		t.notifying = false
		switch cause {
		case wakeSignal:
			// Loop around and consume the pending word.
		case wakeTimeout:
			if v, ok := t.consume(); ok {
				return v, nil // signal raced the deadline
			}
			return 0, ErrTimeout
		default:
			return 0, ErrInvalidState
		}
	}
}

func (t *Task) consume() (uint32, bool) {
	for {
		old := t.pending.Load()
		if old&notifyPendingBit == 0 {
			return 0, false
		}
		if t.pending.CompareAndSwap(old, 0) {
			return uint32(old), true
		}
	}
}
