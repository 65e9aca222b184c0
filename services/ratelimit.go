package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lborres/gatekeep/core"
)

var _ core.Limiter = (*RateLimiter)(nil)

const defaultKeyPrefix = "gatekeep"

// RateLimiter is a sliding-window counter: each route and subject pair has
// one fixed-window counter per bucket, and a request is weighed against the
// current bucket plus the previous bucket scaled by how much of it still
// overlaps the sliding window.
type RateLimiter struct {
	config   core.RateLimitConfig
	store    core.WindowStore
	prefix   string
	timeout  time.Duration
	observer core.Observer
	logger   *log.Logger
	now      func() time.Time
}

type RateLimiterOption func(*RateLimiter)

func WithLimiterClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) { l.now = now }
}

func WithLimiterTimeout(d time.Duration) RateLimiterOption {
	return func(l *RateLimiter) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithLimiterObserver(o core.Observer) RateLimiterOption {
	return func(l *RateLimiter) {
		if o != nil {
			l.observer = o
		}
	}
}

func WithLimiterLogger(logger *log.Logger) RateLimiterOption {
	return func(l *RateLimiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithKeyPrefix namespaces counter keys; "gatekeep" by default.
func WithKeyPrefix(prefix string) RateLimiterOption {
	return func(l *RateLimiter) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

func NewRateLimiter(config core.RateLimitConfig, store core.WindowStore, opts ...RateLimiterOption) *RateLimiter {
	if !config.Default.Valid() {
		config.Default = core.DefaultRateLimitConfig().Default
	}
	l := &RateLimiter{
		config:   config,
		store:    store,
		prefix:   defaultKeyPrefix,
		timeout:  defaultStoreTimeout,
		observer: nopObserver{},
		logger:   log.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit reports whether a request from subject on route is within budget.
func (l *RateLimiter) Admit(ctx context.Context, route, subject string) bool {
	return l.Check(ctx, route, subject).Allowed
}

// Check counts the request and returns the full decision. On store failure
// the request is admitted with FailOpen set.
func (l *RateLimiter) Check(ctx context.Context, route, subject string) core.Decision {
	rule := l.config.RuleFor(route)
	if !rule.Valid() {
		rule = l.config.Default
	}
	decision := core.Decision{Limit: rule.Limit, Window: rule.Window}

	windowMs := int64(rule.Window) * 1000
	nowMs := l.now().UnixMilli()
	bucket := nowMs / windowMs
	elapsed := nowMs % windowMs

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	current, err := l.store.IncrWindow(ctx, l.key(route, subject, bucket), 2*time.Duration(rule.Window)*time.Second)
	if err != nil {
		return l.failOpen(ctx, decision, route, subject, "window.incr", err)
	}
	previous, err := l.store.WindowCount(ctx, l.key(route, subject, bucket-1))
	if err != nil {
		return l.failOpen(ctx, decision, route, subject, "window.count", err)
	}

	weight := float64(windowMs-elapsed) / float64(windowMs)
	decision.Current = current
	decision.Previous = previous
	decision.Effective = float64(current) + float64(previous)*weight
	decision.Allowed = decision.Effective <= float64(rule.Limit)

	outcome := core.OutcomeOK
	if !decision.Allowed {
		outcome = core.OutcomeRejected
	}
	l.observer.Observe(ctx, core.Event{Type: core.EventRateLimit, Outcome: outcome, Route: route, Subject: subject})

	return decision
}

func (l *RateLimiter) key(route, subject string, bucket int64) string {
	return fmt.Sprintf("%s:ratelimit:%s:%s:window-%d", l.prefix, route, subject, bucket)
}

func (l *RateLimiter) failOpen(ctx context.Context, d core.Decision, route, subject, op string, err error) core.Decision {
	l.logger.Printf("[ERROR] rate limiter failing open route=%s subject=%s op=%s: %v", route, subject, op, err)
	l.observer.Observe(ctx, core.Event{
		Type:    core.EventLimiterFailOpen,
		Outcome: core.OutcomeError,
		Route:   route,
		Subject: subject,
		Op:      op,
		Err:     err,
	})
	d.Allowed = true
	d.FailOpen = true
	return d
}
