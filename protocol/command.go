package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Command is a decoded entrainment control command
// Only the payload field matching the opcode is meaningful.
type Command struct {
	Opcode    uint8
	Frequency float32 // set_frequency payload, Hz
	Volume    uint8   // set_volume payload, 0-100
	Waveform  Waveform
}

// EncodeStartCommand encodes a START command (no payload)
func EncodeStartCommand() []byte {
	return []byte{OpStartEntrainment}
}

// EncodeStopCommand encodes a STOP command (no payload)
func EncodeStopCommand() []byte {
	return []byte{OpStopEntrainment}
}

// EncodePauseCommand encodes a PAUSE command (no payload)
func EncodePauseCommand() []byte {
	return []byte{OpPauseEntrainment}
}

// EncodeResumeCommand encodes a RESUME command (no payload)
func EncodeResumeCommand() []byte {
	return []byte{OpResumeEntrainment}
}

// EncodeSetFrequencyCommand encodes a SET_FREQUENCY command with a float32 Hz payload
func EncodeSetFrequencyCommand(hz float32) []byte {
	buf := make([]byte, 5)
	buf[0] = OpSetFrequency
	binary.LittleEndian.PutUint32(buf[1:5], math.Float32bits(hz))
	return buf
}

// EncodeSetVolumeCommand encodes a SET_VOLUME command
// Volume is clamped to [0,100] at encode time; the device rejects nothing.
func EncodeSetVolumeCommand(volume int) []byte {
	return []byte{OpSetVolume, ClampVolume(volume)}
}

// EncodeSetWaveformCommand encodes a SET_WAVEFORM command
func EncodeSetWaveformCommand(w Waveform) []byte {
	return []byte{OpSetWaveform, uint8(w)}
}

// ClampVolume clamps a requested volume to the wire range [0,100]
func ClampVolume(volume int) uint8 {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return uint8(volume)
}

// DecodeCommand decodes an entrainment command packet
// Used by the simulated sensor; the app side only encodes.
func DecodeCommand(data []byte) (*Command, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("protocol: command packet empty")
	}

	cmd := &Command{Opcode: data[0]}

	switch data[0] {
	case OpStartEntrainment, OpStopEntrainment, OpPauseEntrainment, OpResumeEntrainment:
		return cmd, nil

	case OpSetFrequency:
		if len(data) < 5 {
			return nil, fmt.Errorf("protocol: set_frequency command too short (have %d bytes, need 5)", len(data))
		}
		cmd.Frequency = math.Float32frombits(binary.LittleEndian.Uint32(data[1:5]))
		return cmd, nil

	case OpSetVolume:
		if len(data) < 2 {
			return nil, fmt.Errorf("protocol: set_volume command too short (have %d bytes, need 2)", len(data))
		}
		cmd.Volume = data[1]
		return cmd, nil

	case OpSetWaveform:
		if len(data) < 2 {
			return nil, fmt.Errorf("protocol: set_waveform command too short (have %d bytes, need 2)", len(data))
		}
		cmd.Waveform = Waveform(data[1])
		return cmd, nil

	default:
		return nil, fmt.Errorf("protocol: unknown command opcode 0x%02X", data[0])
	}
}
