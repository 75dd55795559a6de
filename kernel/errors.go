package kernel

// Errno is the closed set of failure reasons shared by every kernel
// operation. Fallible calls return an Errno (or nil); the kernel
// never signals ordinary failures by panic or boolean.
type Errno uint8

const (
	// ErrTimeout reports that a blocking call's deadline expired
	// before the wait was satisfied.
	ErrTimeout Errno = iota + 1

	// ErrNotOwner reports an unlock attempt by a task that does not
	// hold the mutex.
	ErrNotOwner

	// ErrDeadlock reports a lock attempt that can never succeed, such
	// as the owner re-locking a non-recursive mutex.
	ErrDeadlock

	// ErrQueueFull reports a send on a full queue under a zero or
	// expired timeout.
	ErrQueueFull

	// ErrQueueEmpty reports a receive on an empty queue under a zero
	// or expired timeout.
	ErrQueueEmpty

	// ErrInvalidPriority reports a priority outside the configured
	// range.
	ErrInvalidPriority

	// ErrStackOverflow reports a corrupted stack guard detected at a
	// context switch. This condition is kernel-fatal.
	ErrStackOverflow

	// ErrInvalidState reports an operation that is not legal for the
	// current object or kernel state.
	ErrInvalidState

	// ErrNoMemory reports an exhausted pool or task table.
	ErrNoMemory

	// ErrInvalidPointer reports a block returned to a pool it does
	// not belong to, or returned twice.
	ErrInvalidPointer

	// ErrTickError reports a time-base inconsistency, such as a sleep
	// that overshot the next deadline.
	ErrTickError

	// ErrContextSwitch reports a failed context switch. This
	// condition is kernel-fatal.
	ErrContextSwitch

	// ErrNotInitialized reports use of a kernel before Start or after
	// Shutdown.
	ErrNotInitialized

	// ErrUnknown reports an internal inconsistency with no more
	// specific cause. This condition is kernel-fatal.
	ErrUnknown
)

func (e Errno) Error() string { return e.String() }

func (e Errno) String() string {
	switch e {
	case ErrTimeout:
		return "timeout"
	case ErrNotOwner:
		return "not owner"
	case ErrDeadlock:
		return "deadlock"
	case ErrQueueFull:
		return "queue full"
	case ErrQueueEmpty:
		return "queue empty"
	case ErrInvalidPriority:
		return "invalid priority"
	case ErrStackOverflow:
		return "stack overflow"
	case ErrInvalidState:
		return "invalid state"
	case ErrNoMemory:
		return "no memory"
	case ErrInvalidPointer:
		return "invalid pointer"
	case ErrTickError:
		return "tick error"
	case ErrContextSwitch:
		return "context switch error"
	case ErrNotInitialized:
		return "not initialized"
	default:
		return "unknown"
	}
}
