package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/sree4002/FlowState-BCI-sub000/logger"
)

// ReconnectStatus is the phase of a reconnect attempt
type ReconnectStatus string

const (
	ReconnectWaiting            ReconnectStatus = "waiting"
	ReconnectConnecting         ReconnectStatus = "connecting"
	ReconnectConnected          ReconnectStatus = "connected"
	ReconnectFailed             ReconnectStatus = "failed"
	ReconnectMaxAttemptsReached ReconnectStatus = "max_attempts_reached"
)

// ReconnectAttemptEvent reports retry progress. Emitted, never stored.
// An event with Attempt == MaxAttempts and status max_attempts_reached is
// terminal; no automatic retry follows it.
type ReconnectAttemptEvent struct {
	Attempt     int // 1-based
	MaxAttempts int
	Status      ReconnectStatus
	NextDelay   time.Duration // Only meaningful while waiting
	Err         error
}

// ReconnectConfig bounds the backoff retry loop
type ReconnectConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultReconnectConfig yields the delay sequence 2s,4s,8s,16s,32s
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		BaseDelay:   2 * time.Second,
		MaxDelay:    32 * time.Second,
		MaxAttempts: 5,
	}
}

// ReconnectCoordinator drives a bounded exponential-backoff retry loop after
// an unexpected disconnect. Intentional disconnects never trigger a retry;
// the caller carries that distinction on the disconnect event.
type ReconnectCoordinator struct {
	cfg       ReconnectConfig
	connect   func() error // Re-runs the connection sequence that re-creates the handlers
	onAttempt func(ReconnectAttemptEvent)

	mu      sync.Mutex
	running bool
	cancel  chan struct{}
}

// NewReconnectCoordinator creates a coordinator. connect must be non-nil;
// onAttempt may be nil.
func NewReconnectCoordinator(cfg ReconnectConfig, connect func() error, onAttempt func(ReconnectAttemptEvent)) *ReconnectCoordinator {
	if cfg.BaseDelay <= 0 || cfg.MaxDelay <= 0 || cfg.MaxAttempts <= 0 {
		cfg = DefaultReconnectConfig()
	}
	return &ReconnectCoordinator{
		cfg:       cfg,
		connect:   connect,
		onAttempt: onAttempt,
	}
}

// BackoffDelay returns the delay before zero-indexed attempt a:
// min(base * 2^a, max). Panics on a negative index, which is a caller
// contract violation.
func (r *ReconnectCoordinator) BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		panic(fmt.Sprintf("device: negative backoff attempt index %d", attempt))
	}
	delay := r.cfg.BaseDelay << uint(attempt)
	if delay > r.cfg.MaxDelay || delay <= 0 {
		delay = r.cfg.MaxDelay
	}
	return delay
}

// BackoffSequence returns the full delay schedule, one entry per attempt
func (r *ReconnectCoordinator) BackoffSequence() []time.Duration {
	seq := make([]time.Duration, r.cfg.MaxAttempts)
	for i := range seq {
		seq[i] = r.BackoffDelay(i)
	}
	return seq
}

// CanRetry reports whether another attempt is allowed after attemptsMade
// completed attempts
func (r *ReconnectCoordinator) CanRetry(attemptsMade int) bool {
	return attemptsMade < r.cfg.MaxAttempts
}

// HandleDisconnect reacts to a transport disconnect. Intentional disconnects
// are ignored. An unexpected disconnect starts the retry loop unless one is
// already running.
func (r *ReconnectCoordinator) HandleDisconnect(intentional bool) {
	if intentional {
		logger.Info("Reconnect", "Intentional disconnect, no retry")
		return
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.cancel = make(chan struct{})
	cancel := r.cancel
	r.mu.Unlock()

	logger.Warn("Reconnect", "Unexpected disconnect, starting retry loop (max %d attempts)", r.cfg.MaxAttempts)
	go r.retryLoop(cancel)
}

// IsRetrying reports whether the retry loop is active
func (r *ReconnectCoordinator) IsRetrying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stop cancels a running retry loop. Idempotent.
func (r *ReconnectCoordinator) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		close(r.cancel)
		r.cancel = nil
	}
	r.running = false
}

func (r *ReconnectCoordinator) retryLoop(cancel chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		delay := r.BackoffDelay(attempt)
		r.emit(ReconnectAttemptEvent{
			Attempt:     attempt + 1,
			MaxAttempts: r.cfg.MaxAttempts,
			Status:      ReconnectWaiting,
			NextDelay:   delay,
		})
		logger.Info("Reconnect", "Attempt %d/%d in %v", attempt+1, r.cfg.MaxAttempts, delay)

		timer := time.NewTimer(delay)
		select {
		case <-cancel:
			timer.Stop()
			return
		case <-timer.C:
		}

		r.emit(ReconnectAttemptEvent{
			Attempt:     attempt + 1,
			MaxAttempts: r.cfg.MaxAttempts,
			Status:      ReconnectConnecting,
		})

		err := r.connect()
		if err == nil {
			r.emit(ReconnectAttemptEvent{
				Attempt:     attempt + 1,
				MaxAttempts: r.cfg.MaxAttempts,
				Status:      ReconnectConnected,
			})
			logger.Info("Reconnect", "Reconnected on attempt %d", attempt+1)
			return
		}

		r.emit(ReconnectAttemptEvent{
			Attempt:     attempt + 1,
			MaxAttempts: r.cfg.MaxAttempts,
			Status:      ReconnectFailed,
			Err:         err,
		})
		logger.Warn("Reconnect", "Attempt %d failed: %v", attempt+1, err)

		select {
		case <-cancel:
			return
		default:
		}
	}

	r.emit(ReconnectAttemptEvent{
		Attempt:     r.cfg.MaxAttempts,
		MaxAttempts: r.cfg.MaxAttempts,
		Status:      ReconnectMaxAttemptsReached,
	})
	logger.Error("Reconnect", "Gave up after %d attempts, manual reconnect required", r.cfg.MaxAttempts)
}

func (r *ReconnectCoordinator) emit(ev ReconnectAttemptEvent) {
	if r.onAttempt != nil {
		r.onAttempt(ev)
	}
}
