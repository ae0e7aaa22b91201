package device

import (
	"fmt"
	"sync"

	"github.com/sree4002/FlowState-BCI-sub000/logger"
	"github.com/sree4002/FlowState-BCI-sub000/protocol"
	"github.com/sree4002/FlowState-BCI-sub000/signal"
)

// EEGStreamHandler subscribes to the EEG data characteristic, decodes each
// notification and feeds the samples into a caller-supplied sliding window
// buffer. It tracks packet loss via the sequence numbers.
type EEGStreamHandler struct {
	transport Transport
	buffer    *signal.SlidingWindowBuffer
	onData    func(*protocol.EEGDataPacket)
	onError   func(error)

	mu          sync.Mutex
	sub         Subscription
	haveLastSeq bool
	lastSeq     uint16
	dropped     uint64
}

// NewEEGStreamHandler creates a stream handler. buffer is owned by the
// caller; onData and onError may be nil.
func NewEEGStreamHandler(transport Transport, buffer *signal.SlidingWindowBuffer, onData func(*protocol.EEGDataPacket), onError func(error)) *EEGStreamHandler {
	return &EEGStreamHandler{
		transport: transport,
		buffer:    buffer,
		onData:    onData,
		onError:   onError,
	}
}

// Start subscribes to the EEG stream characteristic. Calling Start while
// already active is a no-op.
func (h *EEGStreamHandler) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sub != nil {
		return nil
	}

	sub, err := h.transport.Subscribe(protocol.SensorServiceUUID, protocol.EEGDataCharUUID, h.handleNotification)
	if err != nil {
		return fmt.Errorf("device: subscribe EEG stream: %w", err)
	}

	h.sub = sub
	h.haveLastSeq = false
	logger.Info("EEGStream", "Subscribed to EEG data stream")
	return nil
}

// Stop unsubscribes. Idempotent; safe before Start.
func (h *EEGStreamHandler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sub == nil {
		return
	}
	h.sub.Remove()
	h.sub = nil
	logger.Info("EEGStream", "Unsubscribed from EEG data stream")
}

// IsActive reports whether the subscription is live. This reflects
// subscription state, not transport connectivity.
func (h *EEGStreamHandler) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sub != nil
}

// DroppedPackets returns the running count of packets lost since the last reset
func (h *EEGStreamHandler) DroppedPackets() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// ResetDroppedPackets zeroes the dropped-packet counter
func (h *EEGStreamHandler) ResetDroppedPackets() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropped = 0
}

func (h *EEGStreamHandler) handleNotification(err error, value string) {
	if err != nil {
		h.reportError(fmt.Errorf("device: EEG stream notification: %w", err))
		return
	}

	raw, err := decodeValue(value)
	if err != nil {
		h.reportError(err)
		return
	}

	pkt, err := protocol.DecodeEEGDataPacket(raw)
	if err != nil {
		// Garbled packet: report and discard, the subscription stays alive
		h.reportError(err)
		return
	}

	h.mu.Lock()
	if h.haveLastSeq && pkt.Sequence != h.lastSeq {
		// uint16 subtraction is modular, so 0 following 65535 counts as no
		// loss rather than a spurious 65535-packet gap.
		gap := pkt.Sequence - h.lastSeq - 1
		if gap > 0 {
			h.dropped += uint64(gap)
			logger.Warn("EEGStream", "Dropped %d packet(s) (seq %d -> %d, total dropped %d)", gap, h.lastSeq, pkt.Sequence, h.dropped)
		}
	}
	h.lastSeq = pkt.Sequence
	h.haveLastSeq = true
	h.mu.Unlock()

	if h.buffer != nil {
		h.buffer.AddPacket(signal.PacketSamples{TimestampMs: pkt.Timestamp, Values: pkt.Samples})
	}

	logger.Trace("EEGStream", "Packet seq=%d ts=%d samples=%d", pkt.Sequence, pkt.Timestamp, len(pkt.Samples))

	if h.onData != nil {
		h.onData(pkt)
	}
}

func (h *EEGStreamHandler) reportError(err error) {
	logger.Warn("EEGStream", "%v", err)
	if h.onError != nil {
		h.onError(err)
	}
}
