package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateSettings configures token-bucket rate limiting per host.
type RateSettings struct {
	Requests int
	Window   time.Duration
}

// Politeness enforces per-host crawl delay and, optionally, a token-bucket
// rate limit. It covers both the target host and competitor hosts, which
// share the one limiter instance per run.
type Politeness struct {
	delay       time.Duration
	rateCfg     RateSettings
	rateEnabled bool

	mu       sync.Mutex
	lastHit  map[string]time.Time
	limiters map[string]*rate.Limiter
}

// NewPoliteness builds a limiter. Zero delay and zero rate settings produce a
// no-op limiter.
func NewPoliteness(delay time.Duration, rateCfg RateSettings) *Politeness {
	p := &Politeness{delay: delay, rateCfg: rateCfg}
	p.rateEnabled = rateCfg.Requests > 0 && rateCfg.Window > 0
	if p.delay > 0 || p.rateEnabled {
		p.lastHit = make(map[string]time.Time)
	}
	if p.rateEnabled {
		p.limiters = make(map[string]*rate.Limiter)
	}
	return p
}

// Wait blocks until the host may be contacted again, or the context cancels.
func (p *Politeness) Wait(ctx context.Context, host string) error {
	if p == nil || host == "" {
		return nil
	}
	if p.delay <= 0 && !p.rateEnabled {
		return nil
	}
	host = strings.ToLower(host)

	var pause time.Duration
	var limiter *rate.Limiter
	now := time.Now()

	p.mu.Lock()
	if p.delay > 0 {
		if last, ok := p.lastHit[host]; ok {
			if rest := last.Add(p.delay).Sub(now); rest > 0 {
				pause = rest
			}
		}
	}
	if p.rateEnabled {
		limiter = p.limiterLocked(host)
	}
	p.mu.Unlock()

	if pause > 0 {
		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.lastHit[host] = time.Now()
	p.mu.Unlock()
	return nil
}

func (p *Politeness) limiterLocked(host string) *rate.Limiter {
	if limiter, ok := p.limiters[host]; ok {
		return limiter
	}
	interval := p.rateCfg.Window / time.Duration(p.rateCfg.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	burst := p.rateCfg.Requests
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Every(interval), burst)
	p.limiters[host] = limiter
	return limiter
}
