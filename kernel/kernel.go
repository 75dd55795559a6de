package kernel

import (
	"sync/atomic"
	"unsafe"

	"github.com/gammazero/deque"
)

// MaxTasks bounds the task table.
const MaxTasks = 32

const isrQueueDepth = 128

// Config carries the kernel-wide settings fixed at New. The zero
// value is usable: warp sleeper, shallow sleep, unlimited idle span.
type Config struct {
	// Sleeper implements the platform sleep-mode entry used by the
	// tickless idle path. Nil selects WarpSleeper, which reports the
	// full requested span as slept; useful for simulation.
	Sleeper Sleeper

	// SleepMode is the initial sleep depth for tickless idle.
	SleepMode SleepMode

	// MaxSleepTicks clamps a single tickless sleep. Zero means no
	// clamp.
	MaxSleepTicks Ticks

	// SwitchHook, when set, observes every context switch. The
	// outgoing task is nil for the first switch after idle.
	SwitchHook func(from, to *Task)

	// FatalHandler, when set, is invoked at most once when the kernel
	// halts on a fatal condition. It must not call back into the
	// kernel.
	FatalHandler func(FatalInfo)
}

// Kernel is the scheduler and time base. It is explicit process
// state: construct with New, declare tasks, Start, drive with
// Tick/Step or Run, and tear down with Shutdown. Everything except
// PendISR, PendTick and NotifyFromISR must be called from the
// goroutine driving the kernel.
type Kernel struct {
	cfg Config

	tasks   []*Task
	ready   [numPriorities]deque.Deque[*Task]
	delayed delayHeap
	current *Task
	prev    *Task

	now Ticks
	seq uint64

	started  bool
	down     bool
	halted   bool
	fatalErr error

	isrq       chan func()
	isrDropped atomic.Uint64

	idleMode SleepMode
	idleMax  Ticks
	sleeper  Sleeper

	queues []*Queue
	pools  []*Pool

	stats statsCounters
}

// New creates a kernel. Declare pools and tasks next, then Start.
func New(cfg Config) *Kernel {
	k := &Kernel{
		cfg:      cfg,
		isrq:     make(chan func(), isrQueueDepth),
		idleMode: cfg.SleepMode,
		idleMax:  cfg.MaxSleepTicks,
		sleeper:  cfg.Sleeper,
	}
	if k.sleeper == nil {
		k.sleeper = WarpSleeper{}
	}
	return k
}

// AddTask declares a task. Tasks can only be declared before Start
// and run in declaration order among equal priorities.
func (k *Kernel) AddTask(cfg TaskConfig, fn func(*Task)) (*Task, error) {
	if k.started || k.down {
		return nil, ErrInvalidState
	}
	if len(k.tasks) >= MaxTasks {
		return nil, ErrNoMemory
	}
	if cfg.Priority > PriorityMax {
		return nil, ErrInvalidPriority
	}

	t := newTask(k, TaskID(len(k.tasks)), cfg, fn)
	k.tasks = append(k.tasks, t)
	return t, nil
}

// Start freezes the task table and makes every task ready. The tick
// source may begin calling Tick afterwards.
func (k *Kernel) Start() error {
	if k.started || k.down {
		return ErrInvalidState
	}
	if len(k.tasks) == 0 {
		return ErrInvalidState
	}

	for _, t := range k.tasks {
		k.enqueueReady(t)
	}
	k.started = true
	return nil
}

// Shutdown cancels every live task and retires the kernel so a test
// harness can discard it cleanly. A shut-down kernel cannot be
// restarted. It must not be called from a task body.
func (k *Kernel) Shutdown() {
	k.down = true
	for _, t := range k.tasks {
		if t.state == StateTerminated {
			continue
		}
		t.cancel()
		t.state = StateTerminated
		t.tracer.End()
	}
	for i := range k.ready {
		k.ready[i].Clear()
	}
	k.delayed = k.delayed[:0]
	k.drainISR()
	k.started = false
	k.current = nil
	k.prev = nil
}

// Now returns the current tick count.
func (k *Kernel) Now() Ticks { return k.now }

// Tasks returns the task table in declaration order.
func (k *Kernel) Tasks() []*Task { return k.tasks }

// Footprint reports the kernel's total deterministic RAM in bytes:
// per-task stack and control block, plus every registered queue and
// pool. It is fixed once configuration is complete.
func (k *Kernel) Footprint() int {
	total := 0
	for _, t := range k.tasks {
		total += len(t.stack) + int(unsafe.Sizeof(Task{}))
	}
	for _, q := range k.queues {
		total += q.Footprint()
	}
	for _, p := range k.pools {
		total += p.Footprint()
	}
	return total
}

// NewPool creates a pool and registers it for RAM accounting.
func (k *Kernel) NewPool(blocks, blockSize int) (*Pool, error) {
	p, err := NewPool(blocks, blockSize)
	if err != nil {
		return nil, err
	}
	k.pools = append(k.pools, p)
	return p, nil
}

// PendISR queues fn to run at the next dispatch boundary, the model
// of an interrupt handler. It is safe from any goroutine, never
// blocks, and fails with ErrQueueFull when the pending queue is
// saturated. fn runs on the kernel's driving goroutine and must not
// block.
func (k *Kernel) PendISR(fn func()) error {
	select {
	case k.isrq <- fn:
		return nil
	default:
		k.isrDropped.Add(1)
		return ErrQueueFull
	}
}

// PendTick queues a Tick from interrupt context.
func (k *Kernel) PendTick() error {
	return k.PendISR(func() { _ = k.Tick() })
}

func (k *Kernel) drainISR() {
	for {
		select {
		case fn := <-k.isrq:
			fn()
		default:
			return
		}
	}
}

func (k *Kernel) nextSeq() uint64 {
	k.seq++
	return k.seq
}
