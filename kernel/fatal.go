package kernel

import "runtime/debug"

// FatalInfo describes the condition that halted the kernel.
type FatalInfo struct {
	// Task is the task involved, or nil when the condition was not
	// attributable to one.
	Task *Task

	// Err is the fatal Errno.
	Err error

	// Stack is the Go stack of the goroutine that detected the
	// condition.
	Stack []byte
}

// fatal halts the kernel. Only two classes of condition reach here:
// a stack guard corrupted at a context switch, and scheduler-internal
// inconsistency. Neither is recoverable; the kernel stops scheduling
// and the configured handler gets one chance to record state.
func (k *Kernel) fatal(t *Task, errno Errno) {
	if k.halted {
		return
	}
	k.halted = true
	k.fatalErr = errno

	if fn := k.cfg.FatalHandler; fn != nil {
		fn(FatalInfo{Task: t, Err: errno, Stack: debug.Stack()})
	}
}

// Halted reports whether a fatal condition stopped the kernel.
func (k *Kernel) Halted() bool { return k.halted }

// FatalError returns the Errno that halted the kernel, or nil.
func (k *Kernel) FatalError() error { return k.fatalErr }
