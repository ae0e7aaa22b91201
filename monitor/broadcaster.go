package monitor

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sree4002/FlowState-BCI-sub000/logger"
)

// Metrics is one frame of live session metrics pushed to UI clients
type Metrics struct {
	Timestamp          int64   `json:"timestamp"` // Milliseconds since epoch
	SignalQuality      float64 `json:"signal_quality"`
	ArtifactPercentage float64 `json:"artifact_percentage"`
	QualityCategory    string  `json:"quality_category"`
	BufferFillPercent  float64 `json:"buffer_fill_percent"`
	DroppedPackets     uint64  `json:"dropped_packets"`
	BatteryLevel       int     `json:"battery_level"`
	Streaming          bool    `json:"streaming"`
	EntrainmentActive  bool    `json:"entrainment_active"`
	RSSI               int     `json:"rssi"`
	FirmwareVersion    string  `json:"firmware_version,omitempty"`
}

// Broadcaster fans metrics frames out to every connected WebSocket client
type Broadcaster struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			// Local companion app: the UI connects from a file:// or
			// localhost origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeWS upgrades an HTTP request and registers the client
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Monitor", "WebSocket upgrade failed: %v", err)
		return
	}

	b.mu.Lock()
	b.clients[conn] = true
	total := len(b.clients)
	b.mu.Unlock()
	logger.Info("Monitor", "Client connected (%d total)", total)

	// Drain the connection so close frames are processed; clients only listen
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.remove(conn)
				return
			}
		}
	}()
}

// Broadcast sends a metrics frame to all connected clients, dropping any
// client whose write fails
func (b *Broadcaster) Broadcast(m Metrics) {
	b.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		clients = append(clients, conn)
	}
	b.mu.Unlock()

	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
		if err := conn.WriteJSON(m); err != nil {
			b.remove(conn)
		}
	}
}

// ClientCount returns the number of connected clients
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.clients {
		conn.Close()
		delete(b.clients, conn)
	}
}

func (b *Broadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.clients[conn] {
		delete(b.clients, conn)
		conn.Close()
		logger.Info("Monitor", "Client disconnected (%d total)", len(b.clients))
	}
}
