// Package ratelimit paces outbound calls that share a key, such as message parts
// sent to the same Telegram chat.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/findigest/internal/logger"
)

// Pacer keeps at least interval between two calls with the same key. The first call
// for a key never waits. Safe for concurrent use.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
	waits    int
	waited   time.Duration
}

// NewPacer returns a Pacer; an interval <= 0 disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a call for key is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	start := time.Now()
	if err := p.limiter(key).Wait(ctx); err != nil {
		return err
	}

	elapsed := time.Since(start)
	p.mu.Lock()
	defer p.mu.Unlock()
	if elapsed > time.Millisecond {
		p.waits++
		p.waited += elapsed
		logger.Debug("paced call", "key", key, "waited", elapsed)
	}
	return nil
}

func (p *Pacer) limiter(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	lim, ok := p.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[key] = lim
	}
	return lim
}

// GetStats returns current pacer statistics
func (p *Pacer) GetStats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]interface{}{
		"interval_ms": p.interval.Milliseconds(),
		"keys":        len(p.limiters),
		"waits":       p.waits,
		"waited_ms":   p.waited.Milliseconds(),
	}
}
