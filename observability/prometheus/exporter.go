// Package prometheus exports kernel activity snapshots as Prometheus
// collectors. The kernel's scheduling state is owned by the goroutine
// driving it, so there is no background poller: the driving loop calls
// Observe between steps with a snapshot it took itself.
package prometheus

import (
	"errors"
	"fmt"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Alloy-Embedded/alloy-sub003/kernel"
)

// QueueDepthProvider reports the current occupancy of a message queue.
type QueueDepthProvider interface {
	Len() int
	Cap() int
}

// PoolUsageProvider reports the current occupancy of a block pool.
type PoolUsageProvider interface {
	InUse() int
	Capacity() int
}

var (
	_ QueueDepthProvider = (*kernel.Queue)(nil)
	_ PoolUsageProvider  = (*kernel.Pool)(nil)
)

// StatsExporter adapts kernel.Stats snapshots to Prometheus
// collectors. Register queues and pools by name; every Observe call
// refreshes all gauges from the snapshot and the registered providers.
type StatsExporter struct {
	ticks            prom.Gauge
	contextSwitches  prom.Gauge
	preemptions      prom.Gauge
	idleSleeps       prom.Gauge
	sleptTicks       prom.Gauge
	isrDropped       prom.Gauge
	pendingDeadlines prom.Gauge
	taskStates       *prom.GaugeVec

	queueDepth    *prom.GaugeVec
	queueCapacity *prom.GaugeVec
	poolInUse     *prom.GaugeVec
	poolCapacity  *prom.GaugeVec

	mu     sync.Mutex
	queues map[string]QueueDepthProvider
	pools  map[string]PoolUsageProvider
}

// NewStatsExporter creates and registers the kernel collectors.
func NewStatsExporter(namespace string, reg prom.Registerer) (*StatsExporter, error) {
	if namespace == "" {
		namespace = "kernel"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	ticks := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "ticks",
		Help:      "Current tick count of the kernel time base.",
	})
	switches := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "context_switches_total",
		Help:      "Context switch count snapshot.",
	})
	preemptions := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "preemptions_total",
		Help:      "Preemption count snapshot.",
	})
	idleSleeps := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "idle_sleeps_total",
		Help:      "Tickless idle entry count snapshot.",
	})
	sleptTicks := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "slept_ticks_total",
		Help:      "Ticks skipped while idle, snapshot.",
	})
	isrDropped := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "isr_dropped_total",
		Help:      "Interrupt work rejected on a full pending queue, snapshot.",
	})
	pendingDeadlines := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_deadlines",
		Help:      "Entries in the delayed-task heap.",
	})
	taskStates := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks",
		Help:      "Task count per scheduling state.",
	}, []string{"state"})

	queueDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Messages currently queued per message queue.",
	}, []string{"queue"})
	queueCapacity := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_capacity",
		Help:      "Slot capacity per message queue.",
	}, []string{"queue"})
	poolInUse := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_in_use",
		Help:      "Allocated blocks per pool.",
	}, []string{"pool"})
	poolCapacity := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_capacity",
		Help:      "Block capacity per pool.",
	}, []string{"pool"})

	var err error
	if ticks, err = registerCollector(reg, ticks); err != nil {
		return nil, err
	}
	if switches, err = registerCollector(reg, switches); err != nil {
		return nil, err
	}
	if preemptions, err = registerCollector(reg, preemptions); err != nil {
		return nil, err
	}
	if idleSleeps, err = registerCollector(reg, idleSleeps); err != nil {
		return nil, err
	}
	if sleptTicks, err = registerCollector(reg, sleptTicks); err != nil {
		return nil, err
	}
	if isrDropped, err = registerCollector(reg, isrDropped); err != nil {
		return nil, err
	}
	if pendingDeadlines, err = registerCollector(reg, pendingDeadlines); err != nil {
		return nil, err
	}
	if taskStates, err = registerCollector(reg, taskStates); err != nil {
		return nil, err
	}
	if queueDepth, err = registerCollector(reg, queueDepth); err != nil {
		return nil, err
	}
	if queueCapacity, err = registerCollector(reg, queueCapacity); err != nil {
		return nil, err
	}
	if poolInUse, err = registerCollector(reg, poolInUse); err != nil {
		return nil, err
	}
	if poolCapacity, err = registerCollector(reg, poolCapacity); err != nil {
		return nil, err
	}

	return &StatsExporter{
		ticks:            ticks,
		contextSwitches:  switches,
		preemptions:      preemptions,
		idleSleeps:       idleSleeps,
		sleptTicks:       sleptTicks,
		isrDropped:       isrDropped,
		pendingDeadlines: pendingDeadlines,
		taskStates:       taskStates,
		queueDepth:       queueDepth,
		queueCapacity:    queueCapacity,
		poolInUse:        poolInUse,
		poolCapacity:     poolCapacity,
		queues:           make(map[string]QueueDepthProvider),
		pools:            make(map[string]PoolUsageProvider),
	}, nil
}

// AddQueue adds or replaces a queue provider by name.
func (e *StatsExporter) AddQueue(name string, q QueueDepthProvider) {
	if e == nil || q == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	e.mu.Lock()
	e.queues[name] = q
	e.mu.Unlock()
}

// AddPool adds or replaces a pool provider by name.
func (e *StatsExporter) AddPool(name string, p PoolUsageProvider) {
	if e == nil || p == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	e.mu.Lock()
	e.pools[name] = p
	e.mu.Unlock()
}

// Observe refreshes every gauge from the snapshot and the registered
// providers. Call it from the goroutine driving the kernel, with a
// snapshot that goroutine took.
func (e *StatsExporter) Observe(s kernel.Stats) {
	if e == nil {
		return
	}

	e.ticks.Set(float64(s.Now))
	e.contextSwitches.Set(float64(s.ContextSwitches))
	e.preemptions.Set(float64(s.Preemptions))
	e.idleSleeps.Set(float64(s.IdleSleeps))
	e.sleptTicks.Set(float64(s.SleptTicks))
	e.isrDropped.Set(float64(s.ISRDropped))
	e.pendingDeadlines.Set(float64(s.PendingDeadlines))

	e.taskStates.WithLabelValues(kernel.StateReady.String()).Set(float64(s.Ready))
	e.taskStates.WithLabelValues(kernel.StateRunning.String()).Set(float64(s.Running))
	e.taskStates.WithLabelValues(kernel.StateBlocked.String()).Set(float64(s.Blocked))
	e.taskStates.WithLabelValues(kernel.StateDelayed.String()).Set(float64(s.Delayed))
	e.taskStates.WithLabelValues(kernel.StateSuspended.String()).Set(float64(s.Suspended))
	e.taskStates.WithLabelValues(kernel.StateTerminated.String()).Set(float64(s.Terminated))

	e.mu.Lock()
	defer e.mu.Unlock()
	for name, q := range e.queues {
		e.queueDepth.WithLabelValues(name).Set(float64(q.Len()))
		e.queueCapacity.WithLabelValues(name).Set(float64(q.Cap()))
	}
	for name, p := range e.pools {
		e.poolInUse.WithLabelValues(name).Set(float64(p.InUse()))
		e.poolCapacity.WithLabelValues(name).Set(float64(p.Capacity()))
	}
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
