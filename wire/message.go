package wire

// Message is one GATT-style operation on the sensor link.
// Characteristic values travel base64-encoded in Value; the link itself
// carries JSON inside checksummed frames.
type Message struct {
	Type               string `json:"type"`                 // "request", "response", "notification"
	RequestID          string `json:"request_id,omitempty"` // Request/response matching
	Operation          string `json:"operation,omitempty"`  // "read", "write", "subscribe", "unsubscribe"
	ServiceUUID        string `json:"service_uuid,omitempty"`
	CharacteristicUUID string `json:"characteristic_uuid,omitempty"`
	Value              string `json:"value,omitempty"`  // base64 packet payload
	Status             string `json:"status,omitempty"` // "success", "error"
	Error              string `json:"error,omitempty"`
}

// Message types
const (
	TypeRequest      = "request"
	TypeResponse     = "response"
	TypeNotification = "notification"
)

// Operations
const (
	OpRead        = "read"
	OpWrite       = "write"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// Statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
