package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned instead of calling an upstream whose circuit is
// open.
var ErrOpenCircuit = errors.New("resilience: upstream circuit open")

// State is the circuit position for one upstream.
type State int

const (
	Closed State = iota
	Open
	// HalfOpen lets a single trial call through after the cool-off.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// gauge is the value exported on checkout_upstream_circuit_state.
func (s State) gauge() float64 {
	switch s {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	}
	return -1
}

// Breaker guards calls to the food backend (menu reads, coupon lookups and
// order submission). It trips once at least minRequests outcomes were seen
// and the failure share reaches failureRatio, then refuses calls for
// openFor. After that one trial call decides whether it closes again.
type Breaker struct {
	mu           sync.Mutex
	state        State
	ok, failed   int
	minRequests  int
	failureRatio float64
	openFor      time.Duration
	openedAt     time.Time
	trialAt      time.Time
	upstream     string
	log          zerolog.Logger
	now          func() time.Time
}

// NewBreaker returns a closed breaker. Non-positive arguments fall back to
// 1 request, a 50% failure share and a 30s cool-off.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	failureRatio = min(failureRatio, 1)
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		upstream:     "default",
		log:          zerolog.Nop(),
		now:          time.Now,
	}
}

// WithTarget names the upstream in metrics and logs.
func (b *Breaker) WithTarget(upstream string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if upstream = strings.TrimSpace(upstream); upstream != "" {
		b.upstream = upstream
	}
	b.publishLocked()
	return b
}

// WithLogger sets the fallback logger for state changes. A logger carried
// on the request context wins.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = logger
	return b
}

// WithClock replaces time.Now.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether the caller may contact the upstream now. Every
// allowed call must be followed by Report.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case Open:
		if now.Sub(b.openedAt) < b.openFor {
			return false
		}
		b.moveLocked(ctx, HalfOpen)
		b.trialAt = now
		return true
	case HalfOpen:
		// A trial that never reported back must not wedge the circuit.
		if !b.trialAt.IsZero() && now.Sub(b.trialAt) < b.openFor {
			return false
		}
		b.trialAt = now
		return true
	}
	return true
}

// Report records the outcome of an allowed call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}

	if success {
		b.ok++
	} else {
		b.failed++
	}
	seen := b.ok + b.failed
	if seen < b.minRequests {
		return
	}
	if float64(b.failed)/float64(seen) >= b.failureRatio {
		b.moveLocked(ctx, Open)
		return
	}
	// Halve the window so old successes cannot mask a fresh outage forever.
	if seen > 2*b.minRequests {
		b.ok = (b.ok + 1) / 2
		b.failed = (b.failed + 1) / 2
	}
}

func (b *Breaker) report(ctx context.Context, success bool) {
	if b != nil {
		b.Report(ctx, success)
	}
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.ok, b.failed = 0, 0
	b.trialAt = time.Time{}
	switch next {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.publishLocked()
	if prev == next {
		return
	}

	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(b.upstream, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(b.upstream).Inc()
	}

	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &b.log
	}
	evt := logger.Warn()
	if next == Closed {
		evt = logger.Info()
	}
	evt = evt.Str("upstream", b.upstream).Str("from", prev.String()).Str("to", next.String())
	if next == Open {
		evt = evt.Dur("retry_after", b.openFor)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("upstream circuit " + next.String())
}

func (b *Breaker) publishLocked() {
	if BreakerState != nil {
		BreakerState.WithLabelValues(b.upstream).Set(b.state.gauge())
	}
}
