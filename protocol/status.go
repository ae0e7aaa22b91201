package protocol

import (
	"encoding/binary"
	"fmt"
)

// DeviceStatus is a decoded device status packet
// Replaced wholesale on each read or notification, never partially updated.
type DeviceStatus struct {
	Connected            bool
	Streaming            bool
	EntrainmentActive    bool
	LowBattery           bool
	Charging             bool
	HasError             bool
	BatteryLevel         uint8 // Percent
	ErrorCode            uint8
	SignalScore          uint8 // Device-side 0-100 estimate
	RSSI                 int16 // dBm
	ArtifactPercent      uint8
	HasAmplitudeArtifact bool
	HasGradientArtifact  bool
	HasFrequencyArtifact bool
	FwMajor              uint8
	FwMinor              uint8
	FwPatch              uint8
}

// StatusPacketSize is the fixed size of a device status packet
const StatusPacketSize = 16

// FirmwareVersion returns the firmware version as "major.minor.patch"
func (s *DeviceStatus) FirmwareVersion() string {
	return fmt.Sprintf("%d.%d.%d", s.FwMajor, s.FwMinor, s.FwPatch)
}

// EncodeDeviceStatus encodes a device status to its 16-byte binary format
func EncodeDeviceStatus(s *DeviceStatus) []byte {
	buf := make([]byte, StatusPacketSize)

	var flags uint8
	if s.Connected {
		flags |= StatusFlagConnected
	}
	if s.Streaming {
		flags |= StatusFlagStreaming
	}
	if s.EntrainmentActive {
		flags |= StatusFlagEntrainmentActive
	}
	if s.LowBattery {
		flags |= StatusFlagLowBattery
	}
	if s.Charging {
		flags |= StatusFlagCharging
	}
	if s.HasError {
		flags |= StatusFlagError
	}
	buf[0] = flags

	buf[1] = s.BatteryLevel
	buf[2] = s.ErrorCode
	buf[3] = s.SignalScore
	binary.LittleEndian.PutUint16(buf[4:6], uint16(s.RSSI))
	buf[6] = s.ArtifactPercent

	var artifacts uint8
	if s.HasAmplitudeArtifact {
		artifacts |= ArtifactFlagAmplitude
	}
	if s.HasGradientArtifact {
		artifacts |= ArtifactFlagGradient
	}
	if s.HasFrequencyArtifact {
		artifacts |= ArtifactFlagFrequency
	}
	buf[7] = artifacts

	buf[8] = s.FwMajor
	buf[9] = s.FwMinor
	buf[10] = s.FwPatch
	// buf[11:16] reserved, zero

	return buf
}

// DecodeDeviceStatus decodes a 16-byte status packet
func DecodeDeviceStatus(data []byte) (*DeviceStatus, error) {
	if len(data) < StatusPacketSize {
		return nil, fmt.Errorf("protocol: status packet too short (have %d bytes, need %d)", len(data), StatusPacketSize)
	}

	flags := data[0]
	artifacts := data[7]

	return &DeviceStatus{
		Connected:            flags&StatusFlagConnected != 0,
		Streaming:            flags&StatusFlagStreaming != 0,
		EntrainmentActive:    flags&StatusFlagEntrainmentActive != 0,
		LowBattery:           flags&StatusFlagLowBattery != 0,
		Charging:             flags&StatusFlagCharging != 0,
		HasError:             flags&StatusFlagError != 0,
		BatteryLevel:         data[1],
		ErrorCode:            data[2],
		SignalScore:          data[3],
		RSSI:                 int16(binary.LittleEndian.Uint16(data[4:6])),
		ArtifactPercent:      data[6],
		HasAmplitudeArtifact: artifacts&ArtifactFlagAmplitude != 0,
		HasGradientArtifact:  artifacts&ArtifactFlagGradient != 0,
		HasFrequencyArtifact: artifacts&ArtifactFlagFrequency != 0,
		FwMajor:              data[8],
		FwMinor:              data[9],
		FwPatch:              data[10],
	}, nil
}
