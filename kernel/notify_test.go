package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifySetBitsCombine(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	var got uint32
	target, err := k.AddTask(TaskConfig{Name: "target", Priority: 1}, func(task *Task) {
		v, e := task.Wait(Forever)
		r.NoError(e)
		got = v
	})
	r.NoError(err)
	r.NoError(k.Start())

	r.NoError(k.Notify(target, 0x1, NotifySetBits))
	r.NoError(k.Notify(target, 0x2, NotifySetBits))
	for k.Step() {
	}

	r.Equal(uint32(0x3), got)
}

func TestNotifyOverwrite(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	var got uint32
	target, err := k.AddTask(TaskConfig{Name: "target", Priority: 1}, func(task *Task) {
		v, e := task.Wait(Forever)
		r.NoError(e)
		got = v
	})
	r.NoError(err)
	r.NoError(k.Start())

	r.NoError(k.Notify(target, 5, NotifyOverwrite))
	r.NoError(k.Notify(target, 7, NotifyOverwrite))
	for k.Step() {
	}

	r.Equal(uint32(7), got)
}

func TestNotifyIncrement(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	var got uint32
	target, err := k.AddTask(TaskConfig{Name: "target", Priority: 1}, func(task *Task) {
		v, e := task.Wait(Forever)
		r.NoError(e)
		got = v
	})
	r.NoError(err)
	r.NoError(k.Start())

	r.NoError(k.Notify(target, 99, NotifyIncrement))
	r.NoError(k.Notify(target, 99, NotifyIncrement))
	r.NoError(k.Notify(target, 99, NotifyIncrement))
	for k.Step() {
	}

	r.Equal(uint32(3), got)
}

func TestNotifyOverwriteIfEmpty(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	var got uint32
	target, err := k.AddTask(TaskConfig{Name: "target", Priority: 1}, func(task *Task) {
		v, e := task.Wait(Forever)
		r.NoError(e)
		got = v
	})
	r.NoError(err)
	r.NoError(k.Start())

	r.NoError(k.Notify(target, 11, NotifyOverwriteIfEmpty))
	r.NoError(k.Notify(target, 22, NotifyOverwriteIfEmpty)) // dropped: already pending
	for k.Step() {
	}

	r.Equal(uint32(11), got)
}

func TestNotifyWakesBlockedWaiterOnce(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	var values []uint32
	target, err := k.AddTask(TaskConfig{Name: "target", Priority: 1}, func(task *Task) {
		for i := 0; i < 2; i++ {
			v, e := task.Wait(Forever)
			r.NoError(e)
			values = append(values, v)
		}
	})
	r.NoError(err)
	r.NoError(k.Start())

	for k.Step() {
	}
	r.Equal(StateBlocked, target.State())

	// Consuming clears the word to zero; each wait sees one value.
	r.NoError(k.Notify(target, 0xF0, NotifySetBits))
	for k.Step() {
	}
	r.NoError(k.Notify(target, 0x0F, NotifySetBits))
	for k.Step() {
	}

	r.Equal([]uint32{0xF0, 0x0F}, values)
	r.Equal(StateTerminated, target.State())
}

func TestNotifyWaitTimeout(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	var result error
	var woke Ticks
	_, err := k.AddTask(TaskConfig{Name: "target", Priority: 1}, func(task *Task) {
		_, e := task.Wait(2)
		result = e
		woke = k.Now()
	})
	r.NoError(err)
	r.NoError(k.Start())

	for k.Step() {
	}
	r.NoError(k.Tick())
	r.NoError(k.Tick())
	for k.Step() {
	}

	r.ErrorIs(result, ErrTimeout)
	r.Equal(Ticks(2), woke)
}

func TestNotifyFromISR(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	var got uint32
	target, err := k.AddTask(TaskConfig{Name: "target", Priority: 1}, func(task *Task) {
		v, e := task.Wait(Forever)
		r.NoError(e)
		got = v
	})
	r.NoError(err)
	r.NoError(k.Start())

	for k.Step() {
	}
	r.Equal(StateBlocked, target.State())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.NoError(k.NotifyFromISR(target, 0xAB, NotifyOverwrite))
	}()
	<-done

	for k.Step() {
	}
	r.Equal(uint32(0xAB), got)
}

func TestNotifyValidation(t *testing.T) {
	r := require.New(t)

	k := New(Config{})
	target, err := k.AddTask(TaskConfig{Name: "target", Priority: 1}, func(task *Task) {
		_, e := task.Wait(NoWait)
		r.ErrorIs(e, ErrTimeout)
	})
	r.NoError(err)

	r.ErrorIs(k.Notify(target, 1, NotifySetBits), ErrNotInitialized)
	r.NoError(k.Start())
	r.ErrorIs(k.Notify(nil, 1, NotifySetBits), ErrInvalidState)
	r.ErrorIs(k.Notify(target, 1, NotifyMode(9)), ErrInvalidState)

	for k.Step() {
	}
}
