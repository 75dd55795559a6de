package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	q, err := k.NewQueue(2, 1)
	r.NoError(err)

	var got []byte
	_, err = k.AddTask(TaskConfig{Name: "producer", Priority: 2}, func(task *Task) {
		for _, v := range []byte{1, 2, 3} {
			r.NoError(q.Send(task, []byte{v}, Forever))
		}
	})
	r.NoError(err)

	_, err = k.AddTask(TaskConfig{Name: "consumer", Priority: 1}, func(task *Task) {
		buf := make([]byte, 1)
		for len(got) < 3 {
			n, err := q.Receive(task, buf, Forever)
			r.NoError(err)
			r.Equal(1, n)
			got = append(got, buf[0])
		}
	})
	r.NoError(err)

	r.NoError(k.Start())
	for k.Step() {
	}

	r.Equal([]byte{1, 2, 3}, got)
	r.Equal(0, q.Len())
}

func TestQueueCapacity(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	q, err := k.NewQueue(4, 4)
	r.NoError(err)

	_, err = k.AddTask(TaskConfig{Name: "filler", Priority: 1}, func(task *Task) {
		for i := 0; i < 4; i++ {
			r.NoError(q.TrySend(task, []byte{byte(i), 0, 0, 0}))
		}
		// The fifth non-blocking send must fail, not truncate.
		r.ErrorIs(q.TrySend(task, []byte{9}), ErrQueueFull)
		r.Equal(4, q.Len())
	})
	r.NoError(err)

	r.NoError(k.Start())
	for k.Step() {
	}
	r.Equal(4, q.Len())
	r.Equal(4, q.Cap())
}

func TestQueueReceiveTimeout(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	q, err := k.NewQueue(1, 1)
	r.NoError(err)

	var result error
	var woke Ticks
	_, err = k.AddTask(TaskConfig{Name: "receiver", Priority: 1}, func(task *Task) {
		buf := make([]byte, 1)
		_, e := q.Receive(task, buf, 3)
		result = e
		woke = k.Now()
	})
	r.NoError(err)

	r.NoError(k.Start())
	for k.Step() {
	}
	for tick := 0; tick < 3; tick++ {
		r.NoError(k.Tick())
		for k.Step() {
		}
	}

	r.ErrorIs(result, ErrQueueEmpty)
	r.Equal(Ticks(3), woke)
}

func TestQueueSendBlocksUntilSpace(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	q, err := k.NewQueue(1, 1)
	r.NoError(err)
	var order []string

	_, err = k.AddTask(TaskConfig{Name: "producer", Priority: 2}, func(task *Task) {
		r.NoError(q.Send(task, []byte{1}, Forever))
		order = append(order, "sent-1")
		r.NoError(q.Send(task, []byte{2}, Forever)) // blocks: ring full
		order = append(order, "sent-2")
	})
	r.NoError(err)

	_, err = k.AddTask(TaskConfig{Name: "consumer", Priority: 1}, func(task *Task) {
		buf := make([]byte, 1)
		_, e := q.Receive(task, buf, Forever)
		r.NoError(e)
		order = append(order, "received-1")
		_, e = q.Receive(task, buf, Forever)
		r.NoError(e)
		order = append(order, "received-2")
	})
	r.NoError(err)

	r.NoError(k.Start())
	for k.Step() {
	}

	// The first receive frees the slot and wakes the higher-priority
	// producer, which completes its send before the consumer even
	// returns from Receive.
	r.Equal([]string{"sent-1", "sent-2", "received-1", "received-2"}, order)
}

func TestQueueMessageSizeValidation(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	q, err := k.NewQueue(1, 2)
	r.NoError(err)

	_, err = k.AddTask(TaskConfig{Name: "checker", Priority: 1}, func(task *Task) {
		r.ErrorIs(q.TrySend(task, nil), ErrInvalidState)
		r.ErrorIs(q.TrySend(task, []byte{1, 2, 3}), ErrInvalidState)

		r.NoError(q.TrySend(task, []byte{7, 8}))
		short := make([]byte, 1)
		_, e := q.TryReceive(task, short)
		r.ErrorIs(e, ErrInvalidState) // no silent truncation

		buf := make([]byte, 2)
		n, e := q.TryReceive(task, buf)
		r.NoError(e)
		r.Equal(2, n)
		r.Equal([]byte{7, 8}, buf)
	})
	r.NoError(err)

	r.NoError(k.Start())
	for k.Step() {
	}
}

func TestQueueConstructorValidation(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	_, err := k.NewQueue(0, 8)
	r.ErrorIs(err, ErrInvalidState)
	_, err = k.NewQueue(4, 0)
	r.ErrorIs(err, ErrInvalidState)
}

func TestQueueFootprintCoversSlots(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	q, err := k.NewQueue(8, 16)
	r.NoError(err)

	r.GreaterOrEqual(q.Footprint(), 8*16)

	q2, err := k.NewQueue(8, 16)
	r.NoError(err)
	r.Equal(q.Footprint(), q2.Footprint())
}
