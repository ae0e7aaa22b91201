package signal

import (
	"fmt"
	"math"
	"sync"
)

// BufferConfig sizes a sliding window buffer
type BufferConfig struct {
	SamplingRateHz float64
	WindowSeconds  float64
}

// Sample is one time-stamped EEG value, immutable once written
type Sample struct {
	Value       float64 // Microvolts
	TimestampMs int64
}

// BufferWindow is a read-only snapshot of the most recent samples
// Copied on read so callers never observe the buffer mutating mid-read.
type BufferWindow struct {
	Samples         []float64
	StartTimestamp  int64
	EndTimestamp    int64
	DurationSeconds float64
	SampleCount     int
	IsFull          bool
}

// BufferStats reports buffer occupancy and lifetime counters
type BufferStats struct {
	CurrentSamples int
	Capacity       int
	FillPercent    float64
	TotalSamples   uint64
	TotalPackets   uint64
}

// SlidingWindowBuffer is a fixed-capacity circular buffer of EEG samples.
// Single logical writer (the stream handler); snapshot reads may come from
// any goroutine.
type SlidingWindowBuffer struct {
	mu       sync.RWMutex
	cfg      BufferConfig
	samples  []Sample
	capacity int
	head     int // Next write slot
	count    int

	totalSamples uint64
	totalPackets uint64
}

// NewSlidingWindowBuffer creates a buffer sized ceil(rate * windowSeconds)
func NewSlidingWindowBuffer(cfg BufferConfig) (*SlidingWindowBuffer, error) {
	if cfg.SamplingRateHz <= 0 {
		return nil, fmt.Errorf("signal: sampling rate must be positive, got %v", cfg.SamplingRateHz)
	}
	if cfg.WindowSeconds <= 0 {
		return nil, fmt.Errorf("signal: window duration must be positive, got %v", cfg.WindowSeconds)
	}

	capacity := int(math.Ceil(cfg.SamplingRateHz * cfg.WindowSeconds))
	return &SlidingWindowBuffer{
		cfg:      cfg,
		samples:  make([]Sample, capacity),
		capacity: capacity,
	}, nil
}

// Config returns the buffer's current configuration
func (b *SlidingWindowBuffer) Config() BufferConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// Capacity returns the maximum number of samples the buffer holds
func (b *SlidingWindowBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.capacity
}

// AddSample appends one sample, overwriting the oldest slot once at capacity
func (b *SlidingWindowBuffer) AddSample(value float64, timestampMs int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(value, timestampMs)
}

func (b *SlidingWindowBuffer) addLocked(value float64, timestampMs int64) {
	b.samples[b.head] = Sample{Value: value, TimestampMs: timestampMs}
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
	b.totalSamples++
}

// PacketSamples is the slice of a decoded packet the buffer consumes.
// Defined here so the buffer does not depend on the codec package.
type PacketSamples struct {
	TimestampMs uint32
	Values      []float32
}

// AddPacket expands a packet's samples at evenly spaced timestamps starting
// at the packet timestamp. Packets are assumed internally evenly sampled;
// no resampling or interpolation happens here.
func (b *SlidingWindowBuffer) AddPacket(pkt PacketSamples) {
	b.mu.Lock()
	defer b.mu.Unlock()

	spacing := 1000.0 / b.cfg.SamplingRateHz
	base := float64(pkt.TimestampMs)
	for i, v := range pkt.Values {
		b.addLocked(float64(v), int64(base+float64(i)*spacing))
	}
	b.totalPackets++
}

// GetWindow returns the most recent min(requested, available) samples as a
// snapshot. A non-positive duration returns everything buffered.
func (b *SlidingWindowBuffer) GetWindow(seconds float64) BufferWindow {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.count
	if seconds > 0 {
		requested := int(math.Ceil(seconds * b.cfg.SamplingRateHz))
		if requested < n {
			n = requested
		}
	}

	win := BufferWindow{
		Samples:     make([]float64, n),
		SampleCount: n,
		IsFull:      b.count == b.capacity,
	}
	if n == 0 {
		return win
	}

	// Oldest of the n requested samples sits n slots behind the head
	start := (b.head - n + b.capacity*2) % b.capacity
	for i := 0; i < n; i++ {
		s := b.samples[(start+i)%b.capacity]
		win.Samples[i] = s.Value
		if i == 0 {
			win.StartTimestamp = s.TimestampMs
		}
		if i == n-1 {
			win.EndTimestamp = s.TimestampMs
		}
	}
	win.DurationSeconds = float64(win.EndTimestamp-win.StartTimestamp) / 1000.0

	return win
}

// GetStats reports occupancy and totals since creation or the last Clear
func (b *SlidingWindowBuffer) GetStats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		CurrentSamples: b.count,
		Capacity:       b.capacity,
		FillPercent:    float64(b.count) / float64(b.capacity) * 100.0,
		TotalSamples:   b.totalSamples,
		TotalPackets:   b.totalPackets,
	}
}

// HasEnoughSamples reports whether at least n samples are buffered.
// A non-positive n checks against the full window capacity.
func (b *SlidingWindowBuffer) HasEnoughSamples(n int) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 {
		n = b.capacity
	}
	return b.count >= n
}

// IsFull reports whether the buffer has reached capacity
func (b *SlidingWindowBuffer) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count == b.capacity
}

// Clear drops all samples and resets the lifetime counters
func (b *SlidingWindowBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = 0
	b.count = 0
	b.totalSamples = 0
	b.totalPackets = 0
}

// Reconfigure reallocates the buffer for a new rate/window and discards all
// existing samples. Destructive, never a resize in place.
func (b *SlidingWindowBuffer) Reconfigure(cfg BufferConfig) error {
	if cfg.SamplingRateHz <= 0 {
		return fmt.Errorf("signal: sampling rate must be positive, got %v", cfg.SamplingRateHz)
	}
	if cfg.WindowSeconds <= 0 {
		return fmt.Errorf("signal: window duration must be positive, got %v", cfg.WindowSeconds)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.cfg = cfg
	b.capacity = int(math.Ceil(cfg.SamplingRateHz * cfg.WindowSeconds))
	b.samples = make([]Sample, b.capacity)
	b.head = 0
	b.count = 0
	b.totalSamples = 0
	b.totalPackets = 0

	return nil
}
