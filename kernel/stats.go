package kernel

type statsCounters struct {
	switches    uint64
	preemptions uint64
	idleSleeps  uint64
	sleptTicks  uint64
}

// Stats is a point-in-time snapshot of kernel activity, cheap to take
// between steps and suitable for polling by a metrics exporter.
type Stats struct {
	// Now is the current tick count.
	Now Ticks

	// ContextSwitches counts dispatches since Start.
	ContextSwitches uint64

	// Preemptions counts switches forced by a higher-priority wake.
	Preemptions uint64

	// IdleSleeps counts tickless idle entries.
	IdleSleeps uint64

	// SleptTicks counts ticks skipped while idle.
	SleptTicks uint64

	// ISRDropped counts interrupt work rejected on a full pending
	// queue.
	ISRDropped uint64

	// Per-state task counts.
	Ready      int
	Running    int
	Blocked    int
	Delayed    int
	Suspended  int
	Terminated int

	// PendingDeadlines is the delayed-heap length, including entries
	// not yet discarded after a supersede.
	PendingDeadlines int
}

// Stats takes a snapshot. Call it from the goroutine driving the
// kernel, or between steps.
func (k *Kernel) Stats() Stats {
	s := Stats{
		Now:              k.now,
		ContextSwitches:  k.stats.switches,
		Preemptions:      k.stats.preemptions,
		IdleSleeps:       k.stats.idleSleeps,
		SleptTicks:       k.stats.sleptTicks,
		ISRDropped:       k.isrDropped.Load(),
		PendingDeadlines: len(k.delayed),
	}
	for _, t := range k.tasks {
		switch t.state {
		case StateReady:
			s.Ready++
		case StateRunning:
			s.Running++
		case StateBlocked:
			s.Blocked++
		case StateDelayed:
			s.Delayed++
		case StateSuspended:
			s.Suspended++
		case StateTerminated:
			s.Terminated++
		}
	}
	return s
}
