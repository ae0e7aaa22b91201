package protocol

// FlowState headband GATT identifiers
// These are the stable identifiers for the sensor's primary service
const (
	// Service UUID - the main FlowState sensor service
	SensorServiceUUID = "6E5F0001-B5A3-F393-E0A9-E50E24DCCA9E"

	// Characteristic UUIDs
	EEGDataCharUUID      = "6E5F0002-B5A3-F393-E0A9-E50E24DCCA9E" // EEG sample stream (notify)
	EntrainmentCharUUID  = "6E5F0003-B5A3-F393-E0A9-E50E24DCCA9E" // Entrainment control (write)
	DeviceStatusCharUUID = "6E5F0004-B5A3-F393-E0A9-E50E24DCCA9E" // Device status (read + notify)
)

// Entrainment command opcodes
const (
	OpStartEntrainment  uint8 = 0x01
	OpStopEntrainment   uint8 = 0x02
	OpSetFrequency      uint8 = 0x03
	OpSetVolume         uint8 = 0x04
	OpSetWaveform       uint8 = 0x05
	OpPauseEntrainment  uint8 = 0x06
	OpResumeEntrainment uint8 = 0x07
)

// Device status flag bits (byte 0 of the status packet)
const (
	StatusFlagConnected         uint8 = 1 << 0
	StatusFlagStreaming         uint8 = 1 << 1
	StatusFlagEntrainmentActive uint8 = 1 << 2
	StatusFlagLowBattery        uint8 = 1 << 3
	StatusFlagCharging          uint8 = 1 << 4
	StatusFlagError             uint8 = 1 << 7
)

// Artifact flag bits (byte 7 of the status packet)
const (
	ArtifactFlagAmplitude uint8 = 1 << 0
	ArtifactFlagGradient  uint8 = 1 << 1
	ArtifactFlagFrequency uint8 = 1 << 2
)

// Waveform is the entrainment tone shape
type Waveform uint8

const (
	WaveformIsochronic Waveform = 0x00
	WaveformBinaural   Waveform = 0x01
	WaveformMonaural   Waveform = 0x02
)

func (w Waveform) String() string {
	switch w {
	case WaveformIsochronic:
		return "isochronic"
	case WaveformBinaural:
		return "binaural"
	case WaveformMonaural:
		return "monaural"
	default:
		return "unknown"
	}
}

// CommandName returns a human-readable name for an entrainment opcode
func CommandName(opcode uint8) string {
	switch opcode {
	case OpStartEntrainment:
		return "start"
	case OpStopEntrainment:
		return "stop"
	case OpSetFrequency:
		return "set_frequency"
	case OpSetVolume:
		return "set_volume"
	case OpSetWaveform:
		return "set_waveform"
	case OpPauseEntrainment:
		return "pause"
	case OpResumeEntrainment:
		return "resume"
	default:
		return "unknown"
	}
}
