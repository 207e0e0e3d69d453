package perf

import "sync"

// DefaultPoolSize bounds each named pool unless overridden.
const DefaultPoolSize = 5

// ConnPool keeps bounded per-named-pool lists of connection handles for
// scenarios needing multiple parallel transport instances.
type ConnPool struct {
	mu    sync.Mutex
	max   int
	pools map[string][]any
}

// NewConnPool builds a pool bounded at max handles per name.
func NewConnPool(max int) *ConnPool {
	if max <= 0 {
		max = DefaultPoolSize
	}
	return &ConnPool{
		max:   max,
		pools: make(map[string][]any),
	}
}

// Add appends a handle to the named pool. Returns false when full.
func (p *ConnPool) Add(name string, conn any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pools[name]) >= p.max {
		return false
	}
	p.pools[name] = append(p.pools[name], conn)
	return true
}

// Remove deletes a handle from the named pool. Returns false when absent.
func (p *ConnPool) Remove(name string, conn any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	handles := p.pools[name]
	for i, h := range handles {
		if h == conn {
			p.pools[name] = append(handles[:i], handles[i+1:]...)
			if len(p.pools[name]) == 0 {
				delete(p.pools, name)
			}
			return true
		}
	}
	return false
}

// Handles returns a copy of the named pool's handle list.
func (p *ConnPool) Handles(name string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, len(p.pools[name]))
	copy(out, p.pools[name])
	return out
}

// Len reports how many handles the named pool holds.
func (p *ConnPool) Len(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pools[name])
}
