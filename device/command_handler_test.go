package device

import (
	"bytes"
	"testing"

	"github.com/sree4002/FlowState-BCI-sub000/protocol"
)

func TestStartEntrainmentWriteOrder(t *testing.T) {
	transport := newFakeTransport()
	h := NewEntrainmentCommandHandler(transport)

	res := h.StartEntrainment(EntrainmentConfig{
		FrequencyHz: 6.0,
		Volume:      70,
		Waveform:    protocol.WaveformBinaural,
	})
	if !res.Success {
		t.Fatalf("StartEntrainment failed: %v", res.Err)
	}
	if res.Command != "start" {
		t.Errorf("Command = %q, want %q", res.Command, "start")
	}

	// The device needs waveform, frequency and volume before START
	expected := [][]byte{
		{protocol.OpSetWaveform, uint8(protocol.WaveformBinaural)},
		protocol.EncodeSetFrequencyCommand(6.0),
		{protocol.OpSetVolume, 70},
		{protocol.OpStartEntrainment},
	}
	writes := transport.writtenPayloads()
	if len(writes) != len(expected) {
		t.Fatalf("Got %d writes, want %d", len(writes), len(expected))
	}
	for i := range expected {
		if !bytes.Equal(writes[i], expected[i]) {
			t.Errorf("Write %d = % X, want % X", i, writes[i], expected[i])
		}
	}

	cfg := h.GetCurrentConfig()
	if cfg == nil {
		t.Fatal("No config retained after successful start")
	}
	if cfg.FrequencyHz != 6.0 || cfg.Volume != 70 || cfg.Waveform != protocol.WaveformBinaural {
		t.Errorf("Config = %+v, want 6.0/70/binaural", cfg)
	}
}

func TestStartEntrainmentFailureLeavesNoConfig(t *testing.T) {
	transport := newFakeTransport()
	transport.failOnWrite = 3 // The START write itself
	h := NewEntrainmentCommandHandler(transport)

	res := h.StartEntrainment(EntrainmentConfig{FrequencyHz: 6.0, Volume: 50})
	if res.Success {
		t.Fatal("Expected StartEntrainment to fail")
	}
	if res.Err == nil {
		t.Error("Failed result carries no error")
	}
	if h.GetCurrentConfig() != nil {
		t.Error("Config retained after failed start")
	}
}

func TestStartEntrainmentClampsVolume(t *testing.T) {
	transport := newFakeTransport()
	h := NewEntrainmentCommandHandler(transport)

	if res := h.StartEntrainment(EntrainmentConfig{FrequencyHz: 6.0, Volume: 150}); !res.Success {
		t.Fatalf("StartEntrainment failed: %v", res.Err)
	}

	writes := transport.writtenPayloads()
	if writes[2][1] != 100 {
		t.Errorf("Wire volume = %d, want 100", writes[2][1])
	}
	if cfg := h.GetCurrentConfig(); cfg.Volume != 100 {
		t.Errorf("Retained volume = %d, want the clamped 100", cfg.Volume)
	}
}

func TestStopEntrainmentClearsConfig(t *testing.T) {
	transport := newFakeTransport()
	h := NewEntrainmentCommandHandler(transport)

	h.StartEntrainment(EntrainmentConfig{FrequencyHz: 6.0, Volume: 50})
	if h.GetCurrentConfig() == nil {
		t.Fatal("No config after start")
	}

	res := h.StopEntrainment()
	if !res.Success {
		t.Fatalf("StopEntrainment failed: %v", res.Err)
	}
	if h.GetCurrentConfig() != nil {
		t.Error("Config survived a successful stop")
	}
}

func TestStopEntrainmentFailureKeepsConfig(t *testing.T) {
	transport := newFakeTransport()
	h := NewEntrainmentCommandHandler(transport)

	h.StartEntrainment(EntrainmentConfig{FrequencyHz: 6.0, Volume: 50})
	transport.failOnWrite = len(transport.writtenPayloads())

	if res := h.StopEntrainment(); res.Success {
		t.Fatal("Expected StopEntrainment to fail")
	}
	if h.GetCurrentConfig() == nil {
		t.Error("Config cleared although the stop write failed")
	}
}

func TestPauseResumeDoNotTouchConfig(t *testing.T) {
	transport := newFakeTransport()
	h := NewEntrainmentCommandHandler(transport)

	h.StartEntrainment(EntrainmentConfig{FrequencyHz: 6.0, Volume: 50})
	before := *h.GetCurrentConfig()

	if res := h.PauseEntrainment(); !res.Success {
		t.Fatalf("PauseEntrainment failed: %v", res.Err)
	}
	if res := h.ResumeEntrainment(); !res.Success {
		t.Fatalf("ResumeEntrainment failed: %v", res.Err)
	}

	after := h.GetCurrentConfig()
	if after == nil || *after != before {
		t.Errorf("Config changed across pause/resume: %+v -> %+v", before, after)
	}
}

func TestSetCommandsPatchConfig(t *testing.T) {
	transport := newFakeTransport()
	h := NewEntrainmentCommandHandler(transport)
	h.StartEntrainment(EntrainmentConfig{FrequencyHz: 6.0, Volume: 50, Waveform: protocol.WaveformIsochronic})

	if res := h.SetFrequency(7.5); !res.Success {
		t.Fatalf("SetFrequency failed: %v", res.Err)
	}
	if res := h.SetVolume(150); !res.Success {
		t.Fatalf("SetVolume failed: %v", res.Err)
	}
	if res := h.SetWaveform(protocol.WaveformMonaural); !res.Success {
		t.Fatalf("SetWaveform failed: %v", res.Err)
	}

	cfg := h.GetCurrentConfig()
	if cfg.FrequencyHz != 7.5 {
		t.Errorf("FrequencyHz = %v, want 7.5", cfg.FrequencyHz)
	}
	if cfg.Volume != 100 {
		t.Errorf("Volume = %d, want the clamped 100", cfg.Volume)
	}
	if cfg.Waveform != protocol.WaveformMonaural {
		t.Errorf("Waveform = %v, want monaural", cfg.Waveform)
	}

	// The over-range request still goes out clamped
	writes := transport.writtenPayloads()
	last := writes[len(writes)-2] // set_volume was second to last
	if last[0] != protocol.OpSetVolume || last[1] != 100 {
		t.Errorf("set_volume wire bytes = % X, want [0x04 100]", last)
	}
}

func TestSetCommandsWithoutSession(t *testing.T) {
	transport := newFakeTransport()
	h := NewEntrainmentCommandHandler(transport)

	// Tuning writes are allowed before a session; there is just no config to patch
	if res := h.SetFrequency(5.0); !res.Success {
		t.Fatalf("SetFrequency failed: %v", res.Err)
	}
	if h.GetCurrentConfig() != nil {
		t.Error("SetFrequency created a config out of nothing")
	}
}

func TestSetFrequencyFailureLeavesConfig(t *testing.T) {
	transport := newFakeTransport()
	h := NewEntrainmentCommandHandler(transport)
	h.StartEntrainment(EntrainmentConfig{FrequencyHz: 6.0, Volume: 50})

	transport.failOnWrite = len(transport.writtenPayloads())
	if res := h.SetFrequency(9.9); res.Success {
		t.Fatal("Expected SetFrequency to fail")
	}
	if cfg := h.GetCurrentConfig(); cfg.FrequencyHz != 6.0 {
		t.Errorf("FrequencyHz = %v after failed write, want 6.0", cfg.FrequencyHz)
	}
}

func TestGetCurrentConfigReturnsCopy(t *testing.T) {
	transport := newFakeTransport()
	h := NewEntrainmentCommandHandler(transport)
	h.StartEntrainment(EntrainmentConfig{FrequencyHz: 6.0, Volume: 50})

	cfg := h.GetCurrentConfig()
	cfg.Volume = 0

	if h.GetCurrentConfig().Volume != 50 {
		t.Error("Mutating the returned config leaked into the handler")
	}
}
