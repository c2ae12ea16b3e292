package app

import (
	"context"
	"log"
	"sync"
	"time"

	"campus-portal-service/internal/domain"
	"campus-portal-service/internal/securestore"
)

// persister writes quiz states outside the engine lock. Each key has at most
// one writer goroutine and one pending state, so saves land in transition
// order and a burst of transitions collapses into its newest state.
type persister struct {
	store   *securestore.Store
	timeout time.Duration

	mu      sync.Mutex
	idle    *sync.Cond
	pending map[string]domain.QuizState
	active  map[string]bool
}

func newPersister(store *securestore.Store, timeout time.Duration) *persister {
	p := &persister{
		store:   store,
		timeout: timeout,
		pending: make(map[string]domain.QuizState),
		active:  make(map[string]bool),
	}
	p.idle = sync.NewCond(&p.mu)
	return p
}

func (p *persister) offer(key string, state domain.QuizState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[key] = state
	if p.active[key] {
		return
	}
	p.active[key] = true
	go p.drain(key)
}

func (p *persister) drain(key string) {
	for {
		p.mu.Lock()
		state, ok := p.pending[key]
		if !ok {
			delete(p.active, key)
			p.idle.Broadcast()
			p.mu.Unlock()
			return
		}
		delete(p.pending, key)
		p.mu.Unlock()

		p.save(key, state)
	}
}

func (p *persister) save(key string, state domain.QuizState) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.store.Save(ctx, key, state); err != nil {
		log.Printf("persist quiz session %s: %v", key, err)
	}
}

// flush blocks until key has no queued or in-flight write.
func (p *persister) flush(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.active[key] {
		p.idle.Wait()
	}
}

// flushAll blocks until every queued write has landed.
func (p *persister) flushAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.active) > 0 {
		p.idle.Wait()
	}
}
