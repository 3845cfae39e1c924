package budget

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between requests to the same provider.
type Pacer struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewPacer creates a pacer with no limits.
func NewPacer() *Pacer {
	return &Pacer{limiters: make(map[string]*rate.Limiter)}
}

// SetInterval sets the minimum spacing for name. Zero removes it.
func (p *Pacer) SetInterval(name string, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if interval <= 0 {
		delete(p.limiters, name)
		return
	}
	p.limiters[name] = rate.NewLimiter(rate.Every(interval), 1)
}

// Wait blocks until name may send, or ctx ends.
func (p *Pacer) Wait(ctx context.Context, name string) error {
	p.mu.RLock()
	l, ok := p.limiters[name]
	p.mu.RUnlock()
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
