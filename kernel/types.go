package kernel

// Ticks counts time-base periods. All kernel timeouts and deadlines
// are expressed in ticks; the tick period itself is owned by the
// platform tick source, not the kernel.
type Ticks uint64

const (
	// NoWait makes a blocking call return immediately instead of
	// suspending the caller.
	NoWait Ticks = 0

	// Forever blocks until the call is satisfied or the kernel shuts
	// down.
	Forever Ticks = ^Ticks(0)
)

// Priority is a task's static scheduling priority. Larger values run
// first; tasks of equal priority share the CPU round-robin.
type Priority uint8

const (
	// PriorityIdle is the lowest priority.
	PriorityIdle Priority = 0

	// PriorityMax is the highest priority.
	PriorityMax Priority = 15

	numPriorities = int(PriorityMax) + 1
)

// TaskID identifies a task within its kernel. IDs are assigned in
// declaration order starting at zero.
type TaskID uint8

// TaskState is the scheduling state of a task.
type TaskState uint8

const (
	// StateReady means the task is runnable and queued for the CPU.
	StateReady TaskState = iota

	// StateRunning means the task is the one currently executing.
	StateRunning

	// StateBlocked means the task is waiting on a synchronization
	// primitive or a notification.
	StateBlocked

	// StateDelayed means the task sleeps until a wake deadline.
	StateDelayed

	// StateSuspended means the task was explicitly suspended and only
	// Resume makes it runnable again.
	StateSuspended

	// StateTerminated means the task body returned or the kernel shut
	// down; the task never runs again.
	StateTerminated
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateDelayed:
		return "delayed"
	case StateSuspended:
		return "suspended"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// wakeCause tells a resumed task why it was woken. It is the value
// handed through the coroutine resume into the task's suspension
// point.
type wakeCause uint8

const (
	// wakeNone resumes a task that was preempted or yielded, not
	// blocked.
	wakeNone wakeCause = iota

	// wakeSignal resumes a task whose wait was satisfied.
	wakeSignal

	// wakeTimeout resumes a task whose wait deadline expired.
	wakeTimeout
)
