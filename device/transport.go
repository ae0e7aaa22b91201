package device

import (
	"encoding/base64"
	"fmt"
)

// NotifyFunc receives characteristic notifications. Exactly one of err/value
// is meaningful per call. value is the base64-encoded packet payload.
type NotifyFunc func(err error, value string)

// Subscription is a cancellation token for an active notification stream
type Subscription interface {
	// Remove cancels delivery. Safe to call more than once.
	Remove()
}

// Transport is the already-connected wireless link the handlers consume.
// Scanning, pairing and service discovery happen before a Transport exists.
// Characteristic values cross this boundary base64-encoded, matching the
// text-based channel underneath.
type Transport interface {
	Subscribe(serviceUUID, charUUID string, fn NotifyFunc) (Subscription, error)
	Read(serviceUUID, charUUID string) (string, error)
	Write(serviceUUID, charUUID, value string) error
}

// encodeValue converts a raw packet to its transport representation
func encodeValue(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// decodeValue converts a transport value back to raw packet bytes
func decodeValue(value string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("device: invalid base64 characteristic value: %w", err)
	}
	return data, nil
}
