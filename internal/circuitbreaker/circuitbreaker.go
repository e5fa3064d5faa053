// Package circuitbreaker guards upstream calls: after repeated failures the
// circuit opens and calls fail fast until a cooldown allows probe requests.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit is open and the call was not attempted.
var ErrOpen = errors.New("circuit breaker open")

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters. Zero values get safe defaults.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Cooldown         time.Duration // open duration before probing
	OnStateChange    func(from, to State)
}

// Breaker is a consecutive-failure circuit breaker. Safe for concurrent use.
type Breaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	openedAt      time.Time
	failureLimit  int
	successLimit  int
	cooldown      time.Duration
	onStateChange func(from, to State)
}

// New creates a Breaker from cfg.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		state:         StateClosed,
		failureLimit:  cfg.FailureThreshold,
		successLimit:  cfg.SuccessThreshold,
		cooldown:      cfg.Cooldown,
		onStateChange: cfg.OnStateChange,
	}
}

// Do runs fn when the circuit allows it. When open and still cooling down,
// fn is not called and ErrOpen is returned.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return nil
	}
	if time.Since(b.openedAt) < b.cooldown {
		return ErrOpen
	}
	b.transition(StateHalfOpen)
	b.successes = 0
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !success {
		b.failures++
		// A failed probe reopens immediately, restarting the cooldown.
		if b.state == StateHalfOpen || b.failures >= b.failureLimit {
			b.transition(StateOpen)
			b.openedAt = time.Now()
			b.failures = 0
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.successLimit {
			b.transition(StateClosed)
			b.successes = 0
		}
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
