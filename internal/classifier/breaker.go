package classifier

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrBreakerOpen is returned while a breaker rejects calls.
var ErrBreakerOpen = errors.New("circuit breaker open")

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	Name string
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// SuccessThreshold successful probes close a half-open breaker.
	SuccessThreshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
}

// Breaker stops calling a failing remote detector for a cooldown period.
// Safe for concurrent use.
type Breaker struct {
	cfg BreakerConfig
	log *zap.Logger
	now func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	// inFlight is set while the single half-open trial call runs.
	inFlight bool
}

// NewBreaker creates a closed breaker. Non-positive thresholds fall back
// to 5 failures, 1 success and a 30 second cooldown.
func NewBreaker(cfg BreakerConfig, log *zap.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{
		cfg: cfg,
		log: log.Named("breaker").With(zap.String("name", cfg.Name)),
		now: time.Now,
	}
}

// Allow reports whether a call may go through. An open breaker whose
// cooldown has elapsed moves to half-open. A half-open breaker admits one
// call at a time; every call it admits must be settled with Success,
// Failure or Abandon.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		if b.inFlight {
			return false
		}
		b.inFlight = true
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		b.successes = 0
		b.inFlight = true
		b.log.Info("probing")
		return true
	}
	return false
}

// Abandon releases an admitted call without recording an outcome, for
// calls cut short by the caller.
func (b *Breaker) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight = false
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inFlight = false
	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
			b.log.Info("closed")
		}
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inFlight = false
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
			b.log.Warn("opened", zap.Int("failures", b.failures))
		}
	case BreakerHalfOpen:
		b.trip()
		b.log.Warn("probe failed, reopened")
	}
}

func (b *Breaker) trip() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.successes = 0
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failures = 0
	b.successes = 0
	b.inFlight = false
}
