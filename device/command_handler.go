package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/sree4002/FlowState-BCI-sub000/logger"
	"github.com/sree4002/FlowState-BCI-sub000/protocol"
)

// EntrainmentConfig is the configuration acknowledged by the device.
// Volume stores the clamped value actually sent on the wire, so the retained
// config always mirrors what the device is playing.
type EntrainmentConfig struct {
	FrequencyHz float64 // Theta target, 4.0-8.0
	Volume      int     // 0-100
	Waveform    protocol.Waveform
}

// CommandResult reports the outcome of a single control write.
// Failures are returned as values, never panics across this boundary.
type CommandResult struct {
	Success   bool
	Command   string
	Timestamp time.Time
	Err       error
}

// EntrainmentCommandHandler encodes and writes control commands to the
// entrainment characteristic and tracks the last-acknowledged configuration.
type EntrainmentCommandHandler struct {
	transport Transport

	mu     sync.Mutex
	config *EntrainmentConfig // nil until a successful start, nil again after stop
}

// NewEntrainmentCommandHandler creates a command handler
func NewEntrainmentCommandHandler(transport Transport) *EntrainmentCommandHandler {
	return &EntrainmentCommandHandler{transport: transport}
}

// StartEntrainment configures and starts a session. The device must have
// waveform, frequency and volume set before it receives START so the audio
// begins correctly shaped; the write order is part of the device contract.
func (h *EntrainmentCommandHandler) StartEntrainment(cfg EntrainmentConfig) CommandResult {
	if res := h.writeCommand("set_waveform", protocol.EncodeSetWaveformCommand(cfg.Waveform)); !res.Success {
		return res
	}
	if res := h.writeCommand("set_frequency", protocol.EncodeSetFrequencyCommand(float32(cfg.FrequencyHz))); !res.Success {
		return res
	}
	if res := h.writeCommand("set_volume", protocol.EncodeSetVolumeCommand(cfg.Volume)); !res.Success {
		return res
	}

	res := h.writeCommand("start", protocol.EncodeStartCommand())
	if res.Success {
		cfg.Volume = int(protocol.ClampVolume(cfg.Volume))
		h.mu.Lock()
		h.config = &cfg
		h.mu.Unlock()
		logger.Info("Entrainment", "Session started: %.1f Hz, volume %d, %s", cfg.FrequencyHz, cfg.Volume, cfg.Waveform)
	}
	return res
}

// StopEntrainment stops the session and clears the retained config,
// whatever state the session was in.
func (h *EntrainmentCommandHandler) StopEntrainment() CommandResult {
	res := h.writeCommand("stop", protocol.EncodeStopCommand())
	if res.Success {
		h.mu.Lock()
		h.config = nil
		h.mu.Unlock()
		logger.Info("Entrainment", "Session stopped")
	}
	return res
}

// PauseEntrainment pauses audio output without touching the retained config
func (h *EntrainmentCommandHandler) PauseEntrainment() CommandResult {
	return h.writeCommand("pause", protocol.EncodePauseCommand())
}

// ResumeEntrainment resumes paused audio output
func (h *EntrainmentCommandHandler) ResumeEntrainment() CommandResult {
	return h.writeCommand("resume", protocol.EncodeResumeCommand())
}

// SetFrequency writes a new target frequency. The retained config is patched
// only when the write succeeds.
func (h *EntrainmentCommandHandler) SetFrequency(hz float64) CommandResult {
	res := h.writeCommand("set_frequency", protocol.EncodeSetFrequencyCommand(float32(hz)))
	if res.Success {
		h.mu.Lock()
		if h.config != nil {
			h.config.FrequencyHz = hz
		}
		h.mu.Unlock()
	}
	return res
}

// SetVolume writes a new volume. The wire value is clamped to [0,100] and
// the retained config stores the clamped value on success.
func (h *EntrainmentCommandHandler) SetVolume(volume int) CommandResult {
	res := h.writeCommand("set_volume", protocol.EncodeSetVolumeCommand(volume))
	if res.Success {
		h.mu.Lock()
		if h.config != nil {
			h.config.Volume = int(protocol.ClampVolume(volume))
		}
		h.mu.Unlock()
	}
	return res
}

// SetWaveform writes a new waveform shape. The retained config is patched
// only when the write succeeds.
func (h *EntrainmentCommandHandler) SetWaveform(w protocol.Waveform) CommandResult {
	res := h.writeCommand("set_waveform", protocol.EncodeSetWaveformCommand(w))
	if res.Success {
		h.mu.Lock()
		if h.config != nil {
			h.config.Waveform = w
		}
		h.mu.Unlock()
	}
	return res
}

// GetCurrentConfig returns a copy of the last-acknowledged config, or nil
// when no session is active. Mutating the copy never affects the handler.
func (h *EntrainmentCommandHandler) GetCurrentConfig() *EntrainmentConfig {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.config == nil {
		return nil
	}
	cfg := *h.config
	return &cfg
}

func (h *EntrainmentCommandHandler) writeCommand(name string, payload []byte) CommandResult {
	res := CommandResult{Command: name, Timestamp: time.Now()}

	err := h.transport.Write(protocol.SensorServiceUUID, protocol.EntrainmentCharUUID, encodeValue(payload))
	if err != nil {
		res.Err = fmt.Errorf("device: write %s command: %w", name, err)
		logger.Warn("Entrainment", "%v", res.Err)
		return res
	}

	res.Success = true
	logger.Debug("Entrainment", "Wrote %s command (%d bytes)", name, len(payload))
	return res
}
