package device

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// eventRecorder collects reconnect events for assertions
type eventRecorder struct {
	mu     sync.Mutex
	events []ReconnectAttemptEvent
}

func (r *eventRecorder) record(ev ReconnectAttemptEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) statuses() []ReconnectStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReconnectStatus, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Status
	}
	return out
}

func (r *eventRecorder) last() (ReconnectAttemptEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return ReconnectAttemptEvent{}, false
	}
	return r.events[len(r.events)-1], true
}

func fastReconnectConfig(maxAttempts int) ReconnectConfig {
	return ReconnectConfig{
		BaseDelay:   time.Millisecond,
		MaxDelay:    8 * time.Millisecond,
		MaxAttempts: maxAttempts,
	}
}

func TestBackoffSequenceDefaults(t *testing.T) {
	r := NewReconnectCoordinator(DefaultReconnectConfig(), func() error { return nil }, nil)

	expected := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
	}
	seq := r.BackoffSequence()
	if len(seq) != len(expected) {
		t.Fatalf("Sequence length = %d, want %d", len(seq), len(expected))
	}
	for i := range expected {
		if seq[i] != expected[i] {
			t.Errorf("Delay[%d] = %v, want %v", i, seq[i], expected[i])
		}
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	r := NewReconnectCoordinator(ReconnectConfig{
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 8,
	}, func() error { return nil }, nil)

	if got := r.BackoffDelay(2); got != 8*time.Second {
		t.Errorf("BackoffDelay(2) = %v, want 8s", got)
	}
	if got := r.BackoffDelay(3); got != 10*time.Second {
		t.Errorf("BackoffDelay(3) = %v, want the 10s cap", got)
	}
	// Far past shift overflow the cap still holds
	if got := r.BackoffDelay(60); got != 10*time.Second {
		t.Errorf("BackoffDelay(60) = %v, want the 10s cap", got)
	}
}

func TestBackoffDelayPanicsOnNegativeAttempt(t *testing.T) {
	r := NewReconnectCoordinator(DefaultReconnectConfig(), func() error { return nil }, nil)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for negative attempt index")
		}
	}()
	r.BackoffDelay(-1)
}

func TestCanRetry(t *testing.T) {
	r := NewReconnectCoordinator(DefaultReconnectConfig(), func() error { return nil }, nil)

	if !r.CanRetry(0) {
		t.Error("CanRetry(0) = false, want true")
	}
	if !r.CanRetry(4) {
		t.Error("CanRetry(4) = false, want true")
	}
	if r.CanRetry(5) {
		t.Error("CanRetry(5) = true, want false")
	}
}

func TestReconnectSucceedsAfterFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	connect := func() error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("sensor not ready")
		}
		return nil
	}

	rec := &eventRecorder{}
	r := NewReconnectCoordinator(fastReconnectConfig(5), connect, rec.record)

	r.HandleDisconnect(false)
	waitFor(t, time.Second, func() bool {
		ev, ok := rec.last()
		return ok && ev.Status == ReconnectConnected
	}, "reconnect to succeed")

	expected := []ReconnectStatus{
		ReconnectWaiting, ReconnectConnecting, ReconnectFailed,
		ReconnectWaiting, ReconnectConnecting, ReconnectConnected,
	}
	got := rec.statuses()
	if len(got) != len(expected) {
		t.Fatalf("Got statuses %v, want %v", got, expected)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Status[%d] = %s, want %s", i, got[i], expected[i])
		}
	}

	ev, _ := rec.last()
	if ev.Attempt != 2 {
		t.Errorf("Connected on attempt %d, want 2", ev.Attempt)
	}

	waitFor(t, time.Second, func() bool { return !r.IsRetrying() }, "retry loop to wind down")
}

func TestReconnectGivesUpAtMaxAttempts(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	connect := func() error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("sensor gone")
	}

	rec := &eventRecorder{}
	r := NewReconnectCoordinator(fastReconnectConfig(3), connect, rec.record)

	r.HandleDisconnect(false)
	waitFor(t, time.Second, func() bool {
		ev, ok := rec.last()
		return ok && ev.Status == ReconnectMaxAttemptsReached
	}, "terminal max-attempts event")

	mu.Lock()
	got := attempts
	mu.Unlock()
	if got != 3 {
		t.Errorf("connect called %d times, want 3", got)
	}

	ev, _ := rec.last()
	if ev.Attempt != 3 || ev.MaxAttempts != 3 {
		t.Errorf("Terminal event = attempt %d/%d, want 3/3", ev.Attempt, ev.MaxAttempts)
	}

	// Terminal means terminal: no further attempts without a fresh disconnect
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	after := attempts
	mu.Unlock()
	if after != 3 {
		t.Errorf("connect called %d times after giving up, want 3", after)
	}
}

func TestReconnectIgnoresIntentionalDisconnect(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	r := NewReconnectCoordinator(fastReconnectConfig(3), func() error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return nil
	}, nil)

	r.HandleDisconnect(true)
	time.Sleep(20 * time.Millisecond)

	if r.IsRetrying() {
		t.Error("Retry loop running after intentional disconnect")
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 0 {
		t.Errorf("connect called %d times after intentional disconnect, want 0", attempts)
	}
}

func TestReconnectSingleLoop(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	attempts := 0
	r := NewReconnectCoordinator(fastReconnectConfig(1), func() error {
		mu.Lock()
		attempts++
		mu.Unlock()
		<-block
		return nil
	}, nil)

	r.HandleDisconnect(false)
	waitFor(t, time.Second, func() bool { return r.IsRetrying() }, "retry loop to start")

	// A second unexpected disconnect while retrying must not start another loop
	r.HandleDisconnect(false)
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 1
	}, "first connect attempt")

	close(block)
	waitFor(t, time.Second, func() bool { return !r.IsRetrying() }, "retry loop to finish")

	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("connect called %d times, want 1", attempts)
	}
}

func TestReconnectStopCancelsLoop(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	r := NewReconnectCoordinator(ReconnectConfig{
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
		MaxAttempts: 3,
	}, func() error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return nil
	}, nil)

	r.HandleDisconnect(false)
	waitFor(t, time.Second, func() bool { return r.IsRetrying() }, "retry loop to start")

	r.Stop()
	waitFor(t, time.Second, func() bool { return !r.IsRetrying() }, "retry loop to cancel")

	mu.Lock()
	defer mu.Unlock()
	if attempts != 0 {
		t.Errorf("connect called %d times after Stop during backoff, want 0", attempts)
	}

	// Stop again must not panic
	r.Stop()
}
