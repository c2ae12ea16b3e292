package quiz

import "context"

// Start runs the 1 Hz tick loop until ctx is cancelled or Stop is called.
// Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	ticker := e.clock.NewTicker(TickInterval)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.lastTick = e.clock.Now()
	e.mu.Unlock()

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				e.Tick()
			}
		}
	}()
}

// Stop cancels the tick loop, waits for it to exit and closes all subscriptions.
// No tick touches the state after Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	e.mu.Lock()
	for ch := range e.subscribers {
		delete(e.subscribers, ch)
		close(ch)
	}
	e.mu.Unlock()
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Subscribe returns a channel that receives a snapshot after every transition,
// starting with the current one. The caller must invoke cancel.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	ch <- e.snapshotLocked()
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers reports how many listeners are attached.
func (e *Engine) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}

func (e *Engine) broadcastLocked(snap Snapshot) {
	for ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
			// slow reader: drop the oldest snapshot, the newest supersedes it
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
