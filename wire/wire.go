package wire

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sree4002/FlowState-BCI-sub000/device"
	"github.com/sree4002/FlowState-BCI-sub000/logger"
)

// RequestTimeout bounds a single read/write/subscribe round trip
const RequestTimeout = 2 * time.Second

// Wire is the app side of the sensor link: a point-to-point connection over
// a Unix domain socket, carrying JSON messages in checksummed frames. It
// implements device.Transport. One Wire serves one sensor.
type Wire struct {
	socketPath string

	mu          sync.Mutex
	conn        net.Conn
	connected   bool
	intentional bool // Set before a user-initiated Disconnect

	pendingMu sync.Mutex
	pending   map[string]chan *Message // requestID -> response

	subMu sync.RWMutex
	subs  map[string]map[string]device.NotifyFunc // svc|char -> token -> handler

	disconnectCb func(intentional bool)
	wg           sync.WaitGroup
}

// NewWire creates a wire for the sensor listening at socketPath
func NewWire(socketPath string) *Wire {
	return &Wire{
		socketPath: socketPath,
		pending:    make(map[string]chan *Message),
		subs:       make(map[string]map[string]device.NotifyFunc),
	}
}

// SetDisconnectCallback registers the callback fired when the link drops.
// intentional is true only for user-initiated disconnects.
func (w *Wire) SetDisconnectCallback(cb func(intentional bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disconnectCb = cb
}

// Connect dials the sensor socket and starts the read loop
func (w *Wire) Connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.connected {
		return nil
	}

	conn, err := net.Dial("unix", w.socketPath)
	if err != nil {
		return fmt.Errorf("wire: connect %s: %w", w.socketPath, err)
	}

	w.conn = conn
	w.connected = true
	w.intentional = false

	w.wg.Add(1)
	go w.readLoop(conn)

	logger.Info("Wire", "Connected to sensor at %s", w.socketPath)
	return nil
}

// Disconnect closes the link intentionally; no reconnect will follow
func (w *Wire) Disconnect() {
	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return
	}
	w.intentional = true
	conn := w.conn
	w.mu.Unlock()

	conn.Close()
	w.wg.Wait()
	logger.Info("Wire", "Disconnected from sensor")
}

// IsConnected reports link state
func (w *Wire) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// Subscribe registers for notifications on a characteristic.
// Implements device.Transport.
func (w *Wire) Subscribe(serviceUUID, charUUID string, fn device.NotifyFunc) (device.Subscription, error) {
	resp, err := w.request(&Message{
		Type:               TypeRequest,
		Operation:          OpSubscribe,
		ServiceUUID:        serviceUUID,
		CharacteristicUUID: charUUID,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusSuccess {
		return nil, fmt.Errorf("wire: subscribe %s rejected: %s", charUUID, resp.Error)
	}

	token := uuid.New().String()
	key := subKey(serviceUUID, charUUID)

	w.subMu.Lock()
	if w.subs[key] == nil {
		w.subs[key] = make(map[string]device.NotifyFunc)
	}
	w.subs[key][token] = fn
	w.subMu.Unlock()

	logger.Debug("Wire", "Subscribed to %s (token %s)", charUUID, token[:8])
	return &subscription{wire: w, key: key, token: token, serviceUUID: serviceUUID, charUUID: charUUID}, nil
}

// Read performs a one-shot characteristic read.
// Implements device.Transport.
func (w *Wire) Read(serviceUUID, charUUID string) (string, error) {
	resp, err := w.request(&Message{
		Type:               TypeRequest,
		Operation:          OpRead,
		ServiceUUID:        serviceUUID,
		CharacteristicUUID: charUUID,
	})
	if err != nil {
		return "", err
	}
	if resp.Status != StatusSuccess {
		return "", fmt.Errorf("wire: read %s rejected: %s", charUUID, resp.Error)
	}
	return resp.Value, nil
}

// Write writes a base64 value to a characteristic and waits for the ack.
// Implements device.Transport.
func (w *Wire) Write(serviceUUID, charUUID, value string) error {
	resp, err := w.request(&Message{
		Type:               TypeRequest,
		Operation:          OpWrite,
		ServiceUUID:        serviceUUID,
		CharacteristicUUID: charUUID,
		Value:              value,
	})
	if err != nil {
		return err
	}
	if resp.Status != StatusSuccess {
		return fmt.Errorf("wire: write %s rejected: %s", charUUID, resp.Error)
	}
	return nil
}

// subscription is the cancellation token handed to handlers
type subscription struct {
	wire        *Wire
	key         string
	token       string
	serviceUUID string
	charUUID    string

	once sync.Once
}

// Remove cancels notification delivery. Safe to call more than once.
func (s *subscription) Remove() {
	s.once.Do(func() {
		s.wire.subMu.Lock()
		if handlers := s.wire.subs[s.key]; handlers != nil {
			delete(handlers, s.token)
			if len(handlers) == 0 {
				delete(s.wire.subs, s.key)
			}
		}
		s.wire.subMu.Unlock()

		// Best effort: the link may already be down
		_, _ = s.wire.request(&Message{
			Type:               TypeRequest,
			Operation:          OpUnsubscribe,
			ServiceUUID:        s.serviceUUID,
			CharacteristicUUID: s.charUUID,
		})
		logger.Debug("Wire", "Unsubscribed from %s (token %s)", s.charUUID, s.token[:8])
	})
}

func subKey(serviceUUID, charUUID string) string {
	return serviceUUID + "|" + charUUID
}

// request sends a message and waits for the matching response
func (w *Wire) request(msg *Message) (*Message, error) {
	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return nil, fmt.Errorf("wire: not connected")
	}
	conn := w.conn
	w.mu.Unlock()

	msg.RequestID = uuid.New().String()
	ch := make(chan *Message, 1)

	w.pendingMu.Lock()
	w.pending[msg.RequestID] = ch
	w.pendingMu.Unlock()

	defer func() {
		w.pendingMu.Lock()
		delete(w.pending, msg.RequestID)
		w.pendingMu.Unlock()
	}()

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal request: %w", err)
	}

	w.mu.Lock()
	err = WriteFrame(conn, payload)
	w.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("wire: send %s request: %w", msg.Operation, err)
	}

	select {
	case resp := <-ch:
		if resp.Status == StatusError && resp.Error == "connection closed" {
			return nil, fmt.Errorf("wire: %s request failed: connection closed", msg.Operation)
		}
		return resp, nil
	case <-time.After(RequestTimeout):
		return nil, fmt.Errorf("wire: %s request timed out after %v", msg.Operation, RequestTimeout)
	}
}

func (w *Wire) readLoop(conn net.Conn) {
	defer func() {
		w.mu.Lock()
		w.connected = false
		intentional := w.intentional
		cb := w.disconnectCb
		w.mu.Unlock()

		conn.Close()
		w.failPending()

		if cb != nil {
			cb(intentional)
		}
		w.wg.Done()
	}()

	for {
		payload, err := ReadFrame(conn)
		if err == ErrChecksum {
			// Corrupted frame: drop it, the link survives
			logger.Warn("Wire", "Dropped frame with bad checksum")
			continue
		}
		if err != nil {
			return // Connection closed
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warn("Wire", "Dropped unparseable frame: %v", err)
			continue
		}

		switch msg.Type {
		case TypeResponse:
			w.pendingMu.Lock()
			ch := w.pending[msg.RequestID]
			w.pendingMu.Unlock()
			if ch != nil {
				ch <- &msg
			}

		case TypeNotification:
			w.dispatchNotification(&msg)

		default:
			logger.Warn("Wire", "Unexpected message type %q", msg.Type)
		}
	}
}

func (w *Wire) dispatchNotification(msg *Message) {
	key := subKey(msg.ServiceUUID, msg.CharacteristicUUID)

	w.subMu.RLock()
	handlers := make([]device.NotifyFunc, 0, len(w.subs[key]))
	for _, fn := range w.subs[key] {
		handlers = append(handlers, fn)
	}
	w.subMu.RUnlock()

	for _, fn := range handlers {
		fn(nil, msg.Value)
	}
}

// failPending unblocks every in-flight request after the link drops
func (w *Wire) failPending() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	for id, ch := range w.pending {
		select {
		case ch <- &Message{Type: TypeResponse, RequestID: id, Status: StatusError, Error: "connection closed"}:
		default:
		}
	}
}
