package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sigurn/crc16"
)

// Frame layout: length:u16 (little-endian), payload, checksum:u16.
// The checksum is CRC16/Modbus over the payload; a corrupted frame is
// rejected before any JSON parsing happens.

// ErrChecksum reports a frame whose CRC did not match its payload
var ErrChecksum = errors.New("wire: frame checksum mismatch")

// MaxFramePayload bounds a single frame
const MaxFramePayload = 0xFFFF

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// WriteFrame writes one length-prefixed, checksummed frame
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFramePayload {
		return fmt.Errorf("wire: frame payload too large (%d bytes)", len(payload))
	}

	buf := make([]byte, 2+len(payload)+2)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(payload)))
	copy(buf[2:], payload)
	binary.LittleEndian.PutUint16(buf[2+len(payload):], crc16.Checksum(payload, modbusTable))

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame and verifies its checksum
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint16(header[:])

	buf := make([]byte, int(length)+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	payload := buf[:length]
	sum := binary.LittleEndian.Uint16(buf[length:])
	if crc16.Checksum(payload, modbusTable) != sum {
		return nil, ErrChecksum
	}

	return payload, nil
}
