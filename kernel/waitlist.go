package kernel

import "github.com/gammazero/deque"

// waitList holds the tasks blocked on one primitive, ordered by
// effective priority, ties broken by arrival. The front task is the
// next to be woken.
type waitList struct {
	noCopy noCopy
	w      deque.Deque[*Task]
}

// insert places t according to its current effective priority. Among
// equal priorities an earlier arrival stays in front.
func (wl *waitList) insert(t *Task) {
	at := wl.w.Len()
	for i := 0; i < wl.w.Len(); i++ {
		o := wl.w.At(i)
		if o.eff() < t.eff() || (o.eff() == t.eff() && o.arrival > t.arrival) {
			at = i
			break
		}
	}
	wl.w.Insert(at, t)
	t.waitingOn = wl
}

// pop removes and returns the front waiter, or nil.
func (wl *waitList) pop() *Task {
	if wl.w.Len() == 0 {
		return nil
	}
	t := wl.w.PopFront()
	t.waitingOn = nil
	return t
}

// remove takes t out of the list wherever it sits. It reports whether
// t was present.
func (wl *waitList) remove(t *Task) bool {
	for i := 0; i < wl.w.Len(); i++ {
		if wl.w.At(i) == t {
			wl.w.Remove(i)
			t.waitingOn = nil
			return true
		}
	}
	return false
}

// reposition re-sorts t after its effective priority changed, e.g.
// when the task inherits priority while already waiting.
func (wl *waitList) reposition(t *Task) {
	if wl.remove(t) {
		wl.insert(t)
	}
}

func (wl *waitList) len() int {
	return wl.w.Len()
}

// highest returns the effective priority of the front waiter.
func (wl *waitList) highest() (Priority, bool) {
	if wl.w.Len() == 0 {
		return 0, false
	}
	return wl.w.Front().eff(), true
}
