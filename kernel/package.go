// Package kernel implements a deterministic fixed-priority real-time
// kernel. Tasks are coroutines scheduled one at a time by a
// preemptive, tick-driven scheduler, so every interleaving is
// reproducible and testable on a host machine.
//
// Key components:
//
//   - Kernel: owns the task table, the per-priority ready queues and
//     the delayed-task heap. It advances the tick time base, elects
//     the next task and performs context switches.
//
//   - Task: the per-task control block. A task body receives its
//     *Task handle and blocks only through the kernel primitives
//     (Delay, Yield, Wait and the synchronization calls below).
//
//   - Mutex, Semaphore, Queue: blocking synchronization primitives
//     with priority-ordered wait lists. Mutex implements priority
//     inheritance to bound priority inversion.
//
//   - Task notifications: a single per-task notification word updated
//     with atomic compare-and-swap, safe to signal from interrupt
//     context.
//
//   - Pool: a fixed-block allocator with O(1) allocate and free, used
//     by Queue for message slots and available to applications.
//
//   - Tickless idle: when no task is ready the kernel computes the
//     distance to the next deadline and asks a Sleeper to skip ticks,
//     reconciling the time base on wake.
package kernel
