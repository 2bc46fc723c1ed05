package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a per-minute token budget for LLM requests.
// Consumed tokens are returned to the budget once their minute window
// has elapsed.
type TokenLimiter struct {
	mu       sync.Mutex
	max      int
	consumed []consumption
}

type consumption struct {
	tokens int
	at     time.Time
}

// NewTokenLimiter creates a limiter with a per-minute token budget.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	return &TokenLimiter{max: maxPerMinute}
}

// GetRemaining returns the number of tokens left in the current window.
func (l *TokenLimiter) GetRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire(time.Now())
	return l.max - l.total()
}

// Wait blocks until the given number of tokens fits in the budget, then
// consumes them. Requests larger than the whole budget are consumed
// immediately once the window is empty.
func (l *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.expire(now)
		if l.total()+tokens <= l.max || l.total() == 0 {
			l.consumed = append(l.consumed, consumption{tokens: tokens, at: now})
			l.mu.Unlock()
			return nil
		}
		wait := l.consumed[0].at.Add(time.Minute).Sub(now)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (l *TokenLimiter) expire(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for ; i < len(l.consumed); i++ {
		if l.consumed[i].at.After(cutoff) {
			break
		}
	}
	l.consumed = l.consumed[i:]
}

func (l *TokenLimiter) total() int {
	sum := 0
	for _, c := range l.consumed {
		sum += c.tokens
	}
	return sum
}
