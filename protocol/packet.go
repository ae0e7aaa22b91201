package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EEGDataPacket represents one notification's worth of EEG samples
// Layout (little-endian): timestamp:u32, sequence:u16, sample_count:u16,
// then sample_count float32 values in microvolts.
type EEGDataPacket struct {
	Timestamp uint32    // Device clock, milliseconds
	Sequence  uint16    // Monotonic per-packet counter, wraps at 65535
	Samples   []float32 // Microvolts
}

// EEGHeaderSize is the fixed portion of an EEG data packet
const EEGHeaderSize = 8

// EncodeEEGDataPacket encodes an EEG data packet to binary format
func EncodeEEGDataPacket(pkt *EEGDataPacket) []byte {
	buf := make([]byte, EEGHeaderSize+4*len(pkt.Samples))
	binary.LittleEndian.PutUint32(buf[0:4], pkt.Timestamp)
	binary.LittleEndian.PutUint16(buf[4:6], pkt.Sequence)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(pkt.Samples)))
	for i, s := range pkt.Samples {
		binary.LittleEndian.PutUint32(buf[EEGHeaderSize+4*i:], math.Float32bits(s))
	}
	return buf
}

// DecodeEEGDataPacket decodes binary data into an EEG data packet
func DecodeEEGDataPacket(data []byte) (*EEGDataPacket, error) {
	if len(data) < EEGHeaderSize {
		return nil, fmt.Errorf("protocol: EEG packet too short (have %d bytes, need at least %d)", len(data), EEGHeaderSize)
	}

	count := int(binary.LittleEndian.Uint16(data[6:8]))
	need := EEGHeaderSize + 4*count
	if len(data) < need {
		return nil, fmt.Errorf("protocol: EEG packet truncated (have %d bytes, need %d for %d samples)", len(data), need, count)
	}

	samples := make([]float32, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint32(data[EEGHeaderSize+4*i:])
		samples[i] = math.Float32frombits(bits)
	}

	return &EEGDataPacket{
		Timestamp: binary.LittleEndian.Uint32(data[0:4]),
		Sequence:  binary.LittleEndian.Uint16(data[4:6]),
		Samples:   samples,
	}, nil
}
