package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/clubops/memberauth/config"
	"github.com/clubops/memberauth/services/logging"
	"go.uber.org/zap"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitError carries the retry-after hint surfaced to the caller.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %d seconds", e.RetryAfterSeconds())
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func (e *RateLimitError) RetryAfterSeconds() int {
	seconds := int(e.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// DurableCounter supplies the persisted occurrence count for the same window,
// derived from the audit log, so limits survive process restarts.
type DurableCounter interface {
	CountActions(actorKind string, actorID uint, action string, since time.Time) (int, error)
}

// Limiter bounds how often a privileged actor may perform a sensitive action
// within a time window. It is abuse mitigation, not a security boundary: an
// internal error while checking FAILS OPEN by policy.
type Limiter struct {
	config  *config.Config
	store   Store
	counter DurableCounter
	logger  *logging.Service
}

func NewLimiter(cfg *config.Config, store Store, counter DurableCounter, logger *logging.Service) *Limiter {
	if store == nil {
		store = NewMemoryStore(cfg.RateLimit.Window)
	}

	return &Limiter{
		config:  cfg,
		store:   store,
		counter: counter,
		logger:  logger,
	}
}

// Allow records an attempt and returns *RateLimitError once the actor has
// exhausted the window's budget.
func (l *Limiter) Allow(actorKind string, actorID uint, action string) error {
	key := fmt.Sprintf("%s:%d:%s", actorKind, actorID, action)
	now := time.Now()
	window := l.config.RateLimit.Window

	count, windowStart, exists := l.store.Get(key)
	if !exists {
		windowStart = now
	}

	durable := 0
	if l.counter != nil {
		var err error
		durable, err = l.counter.CountActions(actorKind, actorID, action, now.Add(-window))
		if err != nil {
			// Fail open: the in-memory count still applies, but a broken
			// backing store must not block legitimate administration.
			if l.logger != nil {
				l.logger.Error("rate limit durable cross-check failed, failing open",
					zap.Error(err),
					zap.String("action", action))
			}
			durable = 0
		}
	}

	effective := count
	if durable > effective {
		effective = durable
	}

	if effective >= l.config.RateLimit.MaxActions {
		retryAfter := window - now.Sub(windowStart)
		if !exists || retryAfter <= 0 {
			retryAfter = window
		}

		if l.logger != nil {
			l.logger.Warn("privileged action rate limited",
				zap.String("actor_kind", actorKind),
				zap.Uint("actor_id", actorID),
				zap.String("action", action),
				zap.Int("count", effective))
		}

		return &RateLimitError{RetryAfter: retryAfter}
	}

	l.store.Increment(key, windowStart)
	return nil
}
