package handlers

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterPool hands out one token bucket per key (remote address or
// connection id) so a single misbehaving peer cannot starve the rest
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

func newLimiterPool(rps rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		m:     make(map[string]*rate.Limiter),
		rps:   rps,
		burst: burst,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = l
	return l
}

// Allow reports whether one more operation is permitted for the key
func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Forget drops the limiter state for a key
func (p *limiterPool) Forget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
}
