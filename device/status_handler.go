package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/sree4002/FlowState-BCI-sub000/logger"
	"github.com/sree4002/FlowState-BCI-sub000/protocol"
)

// DefaultPollInterval is the fallback status poll period
const DefaultPollInterval = 5 * time.Second

// DeviceStatusHandler tracks the sensor's status characteristic through two
// redundant paths: notifications, and a periodic poll that catches
// notifications the transport silently dropped. Both paths are deliberate;
// do not collapse them into one.
type DeviceStatusHandler struct {
	transport Transport
	onStatus  func(*protocol.DeviceStatus)
	onError   func(error)

	mu           sync.Mutex
	sub          Subscription
	pollInterval time.Duration
	stopPoll     chan struct{}
	last         *protocol.DeviceStatus
}

// NewDeviceStatusHandler creates a status handler. A non-positive
// pollInterval selects the default. onStatus and onError may be nil.
func NewDeviceStatusHandler(transport Transport, pollInterval time.Duration, onStatus func(*protocol.DeviceStatus), onError func(error)) *DeviceStatusHandler {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &DeviceStatusHandler{
		transport:    transport,
		pollInterval: pollInterval,
		onStatus:     onStatus,
		onError:      onError,
	}
}

// Start subscribes to status notifications, begins the poll backstop and
// performs one immediate read. Idempotent while active.
func (h *DeviceStatusHandler) Start() error {
	h.mu.Lock()
	if h.sub != nil {
		h.mu.Unlock()
		return nil
	}

	sub, err := h.transport.Subscribe(protocol.SensorServiceUUID, protocol.DeviceStatusCharUUID, h.handleNotification)
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("device: subscribe status: %w", err)
	}
	h.sub = sub
	h.startPollLocked()
	h.mu.Unlock()

	logger.Info("DeviceStatus", "Status handler started (poll every %v)", h.pollInterval)
	h.ReadStatus()
	return nil
}

// Stop cancels the notification subscription and the poll timer. Idempotent;
// safe before Start.
func (h *DeviceStatusHandler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sub != nil {
		h.sub.Remove()
		h.sub = nil
	}
	h.stopPollLocked()
	logger.Info("DeviceStatus", "Status handler stopped")
}

// ReadStatus performs a one-shot read of the status characteristic, updates
// the retained snapshot and invokes onStatus. Returns nil on failure, with
// the error reported via onError; a failed read never kills the poll loop.
func (h *DeviceStatusHandler) ReadStatus() *protocol.DeviceStatus {
	value, err := h.transport.Read(protocol.SensorServiceUUID, protocol.DeviceStatusCharUUID)
	if err != nil {
		h.reportError(fmt.Errorf("device: read status: %w", err))
		return nil
	}
	return h.ingest(value)
}

// GetLastStatus returns a copy of the most recent snapshot, or nil if no
// status has been decoded yet
func (h *DeviceStatusHandler) GetLastStatus() *protocol.DeviceStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last == nil {
		return nil
	}
	status := *h.last
	return &status
}

// SetPollingInterval restarts the poll timer with a new interval while
// preserving the active notification subscription
func (h *DeviceStatusHandler) SetPollingInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.pollInterval = interval
	if h.stopPoll != nil {
		h.stopPollLocked()
		h.startPollLocked()
	}
	logger.Debug("DeviceStatus", "Poll interval now %v", interval)
}

func (h *DeviceStatusHandler) startPollLocked() {
	stop := make(chan struct{})
	h.stopPoll = stop
	interval := h.pollInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				logger.Trace("DeviceStatus", "Poll tick")
				h.ReadStatus()
			}
		}
	}()
}

func (h *DeviceStatusHandler) stopPollLocked() {
	if h.stopPoll != nil {
		close(h.stopPoll)
		h.stopPoll = nil
	}
}

func (h *DeviceStatusHandler) handleNotification(err error, value string) {
	if err != nil {
		h.reportError(fmt.Errorf("device: status notification: %w", err))
		return
	}
	h.ingest(value)
}

// ingest decodes a status value, replaces the snapshot wholesale and fans it
// out. Returns a copy of the new snapshot, or nil on decode failure.
func (h *DeviceStatusHandler) ingest(value string) *protocol.DeviceStatus {
	raw, err := decodeValue(value)
	if err != nil {
		h.reportError(err)
		return nil
	}

	status, err := protocol.DecodeDeviceStatus(raw)
	if err != nil {
		h.reportError(err)
		return nil
	}

	h.mu.Lock()
	h.last = status
	h.mu.Unlock()

	logger.Trace("DeviceStatus", "Battery %d%%, streaming=%v, rssi=%d", status.BatteryLevel, status.Streaming, status.RSSI)

	if h.onStatus != nil {
		cb := *status
		h.onStatus(&cb)
	}

	out := *status
	return &out
}

func (h *DeviceStatusHandler) reportError(err error) {
	logger.Warn("DeviceStatus", "%v", err)
	if h.onError != nil {
		h.onError(err)
	}
}
