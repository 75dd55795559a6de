package kernel

// noCopy is embedded in kernel objects whose identity matters (wait
// lists hold pointers into them) to make `go vet` flag copies. It
// implements sync.Locker the same way sync.Mutex's noCopy field does.
type noCopy struct{}

// Lock is a no-op implementation of sync.Locker.Lock.
func (*noCopy) Lock() {}

// Unlock is a no-op implementation of sync.Locker.Unlock.
func (*noCopy) Unlock() {}
