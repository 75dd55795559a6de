package kernel

import (
	"container/heap"
	"context"
)

// SleepMode selects how deep the platform sleeps during tickless
// idle. Deeper modes save more power but cost more wake latency; the
// kernel only passes the mode through to the Sleeper.
type SleepMode uint8

const (
	// SleepShallow keeps fast-wake clocks running.
	SleepShallow SleepMode = iota

	// SleepDeep gates clocks aggressively; waking may take longer.
	SleepDeep
)

func (m SleepMode) String() string {
	switch m {
	case SleepShallow:
		return "shallow"
	case SleepDeep:
		return "deep"
	default:
		return "unknown"
	}
}

// Sleeper is the platform sleep-mode entry consumed by the tickless
// idle path. Sleep requests a span of ticks at the given depth and
// returns the span actually slept, which may be shorter when an
// interrupt woke the core early. It must never report more than
// requested.
type Sleeper interface {
	Sleep(requested Ticks, mode SleepMode) Ticks
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(Ticks, SleepMode) Ticks

// Sleep calls f.
func (f SleeperFunc) Sleep(requested Ticks, mode SleepMode) Ticks {
	return f(requested, mode)
}

// WarpSleeper reports every requested span as fully slept without
// waiting. It makes simulated time jump straight to the next
// deadline.
type WarpSleeper struct{}

// Sleep returns requested unchanged.
func (WarpSleeper) Sleep(requested Ticks, _ SleepMode) Ticks {
	return requested
}

// ConfigureIdle selects the sleep depth and the per-sleep clamp for
// the tickless idle path. A zero maxSleepTicks removes the clamp.
func (k *Kernel) ConfigureIdle(mode SleepMode, maxSleepTicks Ticks) error {
	if mode > SleepDeep {
		return ErrInvalidState
	}
	k.idleMode = mode
	k.idleMax = maxSleepTicks
	return nil
}

// nextWakeDelta returns the distance to the earliest live deadline,
// discarding superseded heap entries on the way.
func (k *Kernel) nextWakeDelta() (Ticks, bool) {
	for {
		e, ok := k.delayed.peek()
		if !ok {
			return 0, false
		}
		if e.gen != e.task.wakeGen {
			heap.Pop(&k.delayed)
			continue
		}
		if e.deadline <= k.now {
			return 0, true
		}
		return e.deadline - k.now, true
	}
}

// idleRequest computes the sleep span the idle path asks for: the
// distance to the next deadline clamped to the configured maximum.
// With no deadline pending it asks for the maximum alone, or reports
// that there is nothing to wait for.
func (k *Kernel) idleRequest() (Ticks, bool) {
	d, ok := k.nextWakeDelta()
	if !ok {
		if k.idleMax == 0 {
			return 0, false
		}
		return k.idleMax, true
	}
	if k.idleMax != 0 && d > k.idleMax {
		d = k.idleMax
	}
	return d, true
}

// idleOnce runs one pass of the tickless idle path: pick a sleep
// span, enter the sleeper, then reconcile the tick counter for the
// elapsed span before scheduling resumes. With no deadline and no
// clamp it parks on the interrupt queue instead.
func (k *Kernel) idleOnce(ctx context.Context) error {
	req, ok := k.idleRequest()
	if !ok {
		select {
		case fn := <-k.isrq:
			fn()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if req == 0 {
		return k.wakeExpired()
	}

	elapsed := k.sleeper.Sleep(req, k.idleMode)
	if elapsed > req {
		// The platform overshot the earliest deadline; the time base
		// can no longer be trusted.
		k.advance(req)
		return ErrTickError
	}
	return k.advance(elapsed)
}

// advance reconciles the time base after a tickless sleep, waking
// everything that came due during the span.
func (k *Kernel) advance(elapsed Ticks) error {
	k.now += elapsed
	k.stats.idleSleeps++
	k.stats.sleptTicks += uint64(elapsed)
	return k.wakeExpired()
}
