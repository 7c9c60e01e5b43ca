package orchestrator

// Lock is a single-slot semaphore guarding "at most one running crawl".
// TryAcquire never blocks; waiting triggers are rejected, not queued.
type Lock struct {
	slot chan struct{}
}

// NewLock returns an unheld Lock.
func NewLock() *Lock {
	return &Lock{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the lock if it is free and reports whether it succeeded.
func (l *Lock) TryAcquire() bool {
	select {
	case l.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() {
	select {
	case <-l.slot:
	default:
	}
}

// Held reports whether the lock is currently taken.
func (l *Lock) Held() bool {
	return len(l.slot) == 1
}
