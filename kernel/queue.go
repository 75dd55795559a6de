package kernel

import "unsafe"

// Queue is a bounded message channel between tasks: a fixed-capacity
// ring of fixed-size slots drawn from a dedicated Pool, plus two wait
// lists, senders parked while the ring is full and receivers while it
// is empty. Messages are copied in on Send and out on Receive; FIFO
// order is preserved.
type Queue struct {
	noCopy noCopy
	k      *Kernel
	pool   *Pool

	ring  [][]byte
	lens  []int
	head  int
	tail  int
	count int

	elemSize  int
	senders   waitList
	receivers waitList
}

// NewQueue creates a queue of capacity messages of up to elemSize
// bytes each. The slot storage is allocated once, up front, and
// registered for RAM accounting.
func (k *Kernel) NewQueue(capacity, elemSize int) (*Queue, error) {
	if capacity < 1 || elemSize < 1 {
		return nil, ErrInvalidState
	}

	blockSize := elemSize
	if blockSize < poolHeaderSize {
		blockSize = poolHeaderSize
	}
	pool, err := NewPool(capacity, blockSize)
	if err != nil {
		return nil, err
	}

	q := &Queue{
		k:        k,
		pool:     pool,
		ring:     make([][]byte, capacity),
		lens:     make([]int, capacity),
		elemSize: elemSize,
	}
	k.queues = append(k.queues, q)
	return q, nil
}

// Send copies msg into the queue, blocking up to timeout ticks while
// the ring is full. On a zero or expired timeout it fails with
// ErrQueueFull. The highest-priority waiting receiver is woken.
func (q *Queue) Send(t *Task, msg []byte, timeout Ticks) error {
	k := q.k
	if !k.started {
		return ErrNotInitialized
	}
	if k.current != t {
		return ErrInvalidState
	}
	if len(msg) == 0 || len(msg) > q.elemSize {
		return ErrInvalidState
	}

	deadline := k.now + timeout
	for q.count == len(q.ring) {
		if timeout == NoWait {
			return ErrQueueFull
		}
		t.Log("SEND BLOCK")
		switch k.blockOn(t, &q.senders, deadline, timeout != Forever) {
		case wakeSignal:
			// Re-check: another sender may have claimed the slot.
		case wakeTimeout:
			return ErrQueueFull
		default:
			return ErrInvalidState
		}
	}

	b, err := q.pool.Alloc()
	if err != nil {
		// Ring accounting and pool free list disagree.
		k.fatal(t, ErrUnknown)
		return ErrUnknown
	}
	n := copy(b, msg)
	q.ring[q.head] = b
	q.lens[q.head] = n
	q.head = (q.head + 1) % len(q.ring)
	q.count++

	if w := q.receivers.pop(); w != nil {
		k.wake(w, wakeSignal)
		k.maybePreempt(t)
	}
	return nil
}

// TrySend is Send with a zero timeout.
func (q *Queue) TrySend(t *Task, msg []byte) error {
	return q.Send(t, msg, NoWait)
}

// Receive copies the oldest message into buf and returns its length,
// blocking up to timeout ticks while the queue is empty. On a zero or
// expired timeout it fails with ErrQueueEmpty. The highest-priority
// waiting sender is woken.
func (q *Queue) Receive(t *Task, buf []byte, timeout Ticks) (int, error) {
	k := q.k
	if !k.started {
		return 0, ErrNotInitialized
	}
	if k.current != t {
		return 0, ErrInvalidState
	}

	deadline := k.now + timeout
	for q.count == 0 {
		if timeout == NoWait {
			return 0, ErrQueueEmpty
		}
		t.Log("RECV BLOCK")
		switch k.blockOn(t, &q.receivers, deadline, timeout != Forever) {
		case wakeSignal:
			// Re-check: another receiver may have drained the slot.
		case wakeTimeout:
			return 0, ErrQueueEmpty
		default:
			return 0, ErrInvalidState
		}
	}

	n := q.lens[q.tail]
	if len(buf) < n {
		return 0, ErrInvalidState
	}

	b := q.ring[q.tail]
	q.ring[q.tail] = nil
	q.tail = (q.tail + 1) % len(q.ring)
	q.count--

	copy(buf, b[:n])
	if err := q.pool.Free(b); err != nil {
		k.fatal(t, ErrUnknown)
		return 0, ErrUnknown
	}

	if w := q.senders.pop(); w != nil {
		k.wake(w, wakeSignal)
		k.maybePreempt(t)
	}
	return n, nil
}

// TryReceive is Receive with a zero timeout.
func (q *Queue) TryReceive(t *Task, buf []byte) (int, error) {
	return q.Receive(t, buf, NoWait)
}

// Len returns the number of queued messages.
func (q *Queue) Len() int { return q.count }

// Cap returns the queue capacity in messages.
func (q *Queue) Cap() int { return len(q.ring) }

// ElemSize returns the maximum message size in bytes.
func (q *Queue) ElemSize() int { return q.elemSize }

// Footprint returns the queue's total RAM in bytes, including its
// slot pool and ring bookkeeping.
func (q *Queue) Footprint() int {
	return q.pool.Footprint() +
		len(q.ring)*int(unsafe.Sizeof([]byte(nil))) +
		len(q.lens)*8 +
		int(unsafe.Sizeof(Queue{}))
}
