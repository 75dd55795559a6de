package kernel

// Semaphore is a bounded counter with a priority-ordered wait list.
// Binary and counting semaphores share this implementation; only max
// differs. The counter never goes negative and never exceeds max:
// a Give with waiters present hands the count directly to the front
// waiter instead of incrementing.
type Semaphore struct {
	noCopy  noCopy
	k       *Kernel
	count   uint32
	max     uint32
	waiters waitList
}

// NewSemaphore creates a counting semaphore with the given initial
// count and maximum. max must be at least 1 and initial at most max.
func (k *Kernel) NewSemaphore(initial, max uint32) (*Semaphore, error) {
	if max == 0 || initial > max {
		return nil, ErrInvalidState
	}
	return &Semaphore{k: k, count: initial, max: max}, nil
}

// NewBinarySemaphore creates a semaphore with max 1, initially empty.
func (k *Kernel) NewBinarySemaphore() *Semaphore {
	return &Semaphore{k: k, max: 1}
}

// Take decrements the counter, blocking up to timeout ticks while it
// is zero. A NoWait timeout fails immediately with ErrTimeout.
func (s *Semaphore) Take(t *Task, timeout Ticks) error {
	k := s.k
	if !k.started {
		return ErrNotInitialized
	}
	if k.current != t {
		return ErrInvalidState
	}

	if s.count > 0 {
		s.count--
		return nil
	}
	if timeout == NoWait {
		return ErrTimeout
	}

	t.Log("SEMA BLOCK")

	deadline := k.now + timeout
	cause := k.blockOn(t, &s.waiters, deadline, timeout != Forever)
	switch cause {
	case wakeSignal:
		// Give transferred the count to us directly.
		return nil
	case wakeTimeout:
		return ErrTimeout
	default:
		return ErrInvalidState
	}
}

// TryTake is Take with a zero timeout.
func (s *Semaphore) TryTake(t *Task) error {
	return s.Take(t, NoWait)
}

// Give increments the counter and wakes the highest-priority waiter
// if any. Giving past max fails with ErrInvalidState; the count is
// never silently saturated.
func (s *Semaphore) Give(t *Task) error {
	k := s.k
	if !k.started {
		return ErrNotInitialized
	}
	if k.current != t {
		return ErrInvalidState
	}
	return s.give(t)
}

// GiveFromISR pends the give to the next dispatch boundary. Safe from
// any goroutine; the counter update itself happens on the kernel's
// driving goroutine.
func (s *Semaphore) GiveFromISR() error {
	return s.k.PendISR(func() { _ = s.give(nil) })
}

func (s *Semaphore) give(cur *Task) error {
	if w := s.waiters.pop(); w != nil {
		s.k.wake(w, wakeSignal)
		s.k.maybePreempt(cur)
		return nil
	}
	if s.count == s.max {
		return ErrInvalidState
	}
	s.count++
	return nil
}

// Count returns the current counter value.
func (s *Semaphore) Count() uint32 { return s.count }

// Max returns the counter bound.
func (s *Semaphore) Max() uint32 { return s.max }

// WaitCount returns the number of tasks blocked in Take.
func (s *Semaphore) WaitCount() int { return s.waiters.len() }
