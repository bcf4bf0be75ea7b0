package lndkit

import (
	"sync"
)

// Pool lazily creates one Bridge per name, e.g. per tenant, so that each can
// carry its own timeout and taps.
type Pool struct {
	mu      sync.RWMutex
	bridges map[string]*Bridge
	factory func(name string) *Options
}

func NewPool(factory func(name string) *Options) *Pool {
	return &Pool{
		bridges: make(map[string]*Bridge),
		factory: factory,
	}
}

// Get returns the bridge for name, creating it on first use.
func (p *Pool) Get(name string) *Bridge {
	p.mu.RLock()
	b, ok := p.bridges[name]
	p.mu.RUnlock()
	if ok {
		return b
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Re-check in case it was created between locks
	if b, ok := p.bridges[name]; ok {
		return b
	}

	b = New(p.factory(name))
	p.bridges[name] = b
	return b
}

// Outstanding sums Bridge.Outstanding over every bridge in the pool.
func (p *Pool) Outstanding() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, b := range p.bridges {
		n += b.Outstanding()
	}
	return n
}
