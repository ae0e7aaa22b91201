package sensor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sree4002/FlowState-BCI-sub000/logger"
	"github.com/sree4002/FlowState-BCI-sub000/protocol"
	"github.com/sree4002/FlowState-BCI-sub000/wire"
)

// Config parameterizes a simulated headband
type Config struct {
	SocketPath       string
	SamplingRateHz   float64
	SamplesPerPacket int
	StatusInterval   time.Duration
	PacketLossRate   float64 // Probability a packet's sequence number is consumed without sending
	Seed             int64
}

// DefaultConfig returns the headband's hardware defaults
func DefaultConfig(socketPath string) Config {
	return Config{
		SocketPath:       socketPath,
		SamplingRateHz:   200,
		SamplesPerPacket: 50, // 250ms per packet at 200 Hz
		StatusInterval:   time.Second,
	}
}

// Device is a simulated FlowState headband. It listens on a Unix socket,
// answers the same subscribe/read/write operations a real sensor would, and
// streams synthetic EEG packets to subscribers.
type Device struct {
	cfg Config
	gen *SyntheticEEG

	mu          sync.Mutex
	listener    net.Listener
	epoch       time.Time
	seq         uint16
	entrainment struct {
		active    bool
		paused    bool
		frequency float32
		volume    uint8
		waveform  protocol.Waveform
	}
	battery  uint8
	charging bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewDevice creates a simulated headband
func NewDevice(cfg Config) *Device {
	if cfg.SamplingRateHz <= 0 {
		cfg.SamplingRateHz = 200
	}
	if cfg.SamplesPerPacket <= 0 {
		cfg.SamplesPerPacket = 50
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = time.Second
	}

	d := &Device{
		cfg:     cfg,
		gen:     NewSyntheticEEG(cfg.SamplingRateHz, cfg.Seed),
		battery: 87,
	}
	d.entrainment.frequency = 6.0
	d.entrainment.volume = 50
	d.entrainment.waveform = protocol.WaveformIsochronic
	return d
}

// Generator exposes the synthetic EEG source, so tests and the simulator CLI
// can force theta states
func (d *Device) Generator() *SyntheticEEG {
	return d.gen
}

// Start begins listening for a connection from the app
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.listener != nil {
		return nil
	}

	// Clear a stale socket from an unclean shutdown
	os.Remove(d.cfg.SocketPath)

	ln, err := net.Listen("unix", d.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("sensor: listen %s: %w", d.cfg.SocketPath, err)
	}

	d.listener = ln
	d.epoch = time.Now()
	d.stop = make(chan struct{})

	d.wg.Add(1)
	go d.acceptLoop(ln)

	logger.Info("Sensor", "Headband listening at %s (%.0f Hz, %d samples/packet)", d.cfg.SocketPath, d.cfg.SamplingRateHz, d.cfg.SamplesPerPacket)
	return nil
}

// Stop shuts the device down and closes all connections. Idempotent.
func (d *Device) Stop() {
	d.mu.Lock()
	if d.listener == nil {
		d.mu.Unlock()
		return
	}
	ln := d.listener
	d.listener = nil
	close(d.stop)
	d.mu.Unlock()

	ln.Close()
	os.Remove(d.cfg.SocketPath)
	d.wg.Wait()
	logger.Info("Sensor", "Headband stopped")
}

func (d *Device) acceptLoop(ln net.Listener) {
	defer d.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return // Listener closed
		}
		logger.Info("Sensor", "App connected")

		d.wg.Add(1)
		go d.serveConn(conn)
	}
}

// connState tracks per-connection subscriptions
type connState struct {
	conn    net.Conn
	writeMu sync.Mutex
	subMu   sync.Mutex
	subs    map[string]bool // characteristic UUID -> subscribed
	done    chan struct{}
}

func (d *Device) serveConn(conn net.Conn) {
	defer d.wg.Done()

	cs := &connState{
		conn: conn,
		subs: make(map[string]bool),
		done: make(chan struct{}),
	}

	d.wg.Add(2)
	go d.streamLoop(cs)
	go d.statusLoop(cs)

	// Unblock the frame read when the device shuts down
	go func() {
		select {
		case <-d.stop:
			conn.Close()
		case <-cs.done:
		}
	}()

	defer func() {
		close(cs.done)
		conn.Close()
		logger.Info("Sensor", "App disconnected")
	}()

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		payload, err := wire.ReadFrame(conn)
		if err == wire.ErrChecksum {
			logger.Warn("Sensor", "Dropped frame with bad checksum")
			continue
		}
		if err != nil {
			return
		}

		var msg wire.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warn("Sensor", "Dropped unparseable frame: %v", err)
			continue
		}
		if msg.Type != wire.TypeRequest {
			continue
		}

		d.handleRequest(cs, &msg)
	}
}

func (d *Device) handleRequest(cs *connState, msg *wire.Message) {
	resp := &wire.Message{
		Type:               wire.TypeResponse,
		RequestID:          msg.RequestID,
		Operation:          msg.Operation,
		ServiceUUID:        msg.ServiceUUID,
		CharacteristicUUID: msg.CharacteristicUUID,
		Status:             wire.StatusSuccess,
	}

	fail := func(format string, args ...interface{}) {
		resp.Status = wire.StatusError
		resp.Error = fmt.Sprintf(format, args...)
	}

	if msg.ServiceUUID != protocol.SensorServiceUUID {
		fail("unknown service %s", msg.ServiceUUID)
		d.send(cs, resp)
		return
	}

	switch msg.Operation {
	case wire.OpSubscribe:
		switch msg.CharacteristicUUID {
		case protocol.EEGDataCharUUID, protocol.DeviceStatusCharUUID:
			cs.subMu.Lock()
			cs.subs[msg.CharacteristicUUID] = true
			cs.subMu.Unlock()
			logger.Debug("Sensor", "Subscribe %s", msg.CharacteristicUUID)
		default:
			fail("characteristic %s is not notifiable", msg.CharacteristicUUID)
		}

	case wire.OpUnsubscribe:
		cs.subMu.Lock()
		delete(cs.subs, msg.CharacteristicUUID)
		cs.subMu.Unlock()

	case wire.OpRead:
		if msg.CharacteristicUUID != protocol.DeviceStatusCharUUID {
			fail("characteristic %s is not readable", msg.CharacteristicUUID)
			break
		}
		resp.Value = base64.StdEncoding.EncodeToString(protocol.EncodeDeviceStatus(d.statusSnapshot()))

	case wire.OpWrite:
		if msg.CharacteristicUUID != protocol.EntrainmentCharUUID {
			fail("characteristic %s is not writable", msg.CharacteristicUUID)
			break
		}
		raw, err := base64.StdEncoding.DecodeString(msg.Value)
		if err != nil {
			fail("invalid base64 value")
			break
		}
		if err := d.applyCommand(raw); err != nil {
			fail("%v", err)
		}

	default:
		fail("unknown operation %q", msg.Operation)
	}

	d.send(cs, resp)
}

// applyCommand decodes and executes one entrainment control command
func (d *Device) applyCommand(raw []byte) error {
	cmd, err := protocol.DecodeCommand(raw)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd.Opcode {
	case protocol.OpStartEntrainment:
		d.entrainment.active = true
		d.entrainment.paused = false
	case protocol.OpStopEntrainment:
		d.entrainment.active = false
		d.entrainment.paused = false
	case protocol.OpPauseEntrainment:
		if d.entrainment.active {
			d.entrainment.paused = true
		}
	case protocol.OpResumeEntrainment:
		d.entrainment.paused = false
	case protocol.OpSetFrequency:
		if cmd.Frequency < 1.0 || cmd.Frequency > 40.0 {
			return fmt.Errorf("sensor: frequency %.2f Hz out of device range", cmd.Frequency)
		}
		d.entrainment.frequency = cmd.Frequency
	case protocol.OpSetVolume:
		if cmd.Volume > 100 {
			return fmt.Errorf("sensor: volume %d out of range", cmd.Volume)
		}
		d.entrainment.volume = cmd.Volume
	case protocol.OpSetWaveform:
		if cmd.Waveform > protocol.WaveformMonaural {
			return fmt.Errorf("sensor: unknown waveform code %d", cmd.Waveform)
		}
		d.entrainment.waveform = cmd.Waveform
	}

	logger.Debug("Sensor", "Command %s applied (freq=%.1f vol=%d wf=%s active=%v paused=%v)",
		protocol.CommandName(cmd.Opcode), d.entrainment.frequency, d.entrainment.volume,
		d.entrainment.waveform, d.entrainment.active, d.entrainment.paused)
	return nil
}

// streamLoop pushes EEG packets while the data characteristic is subscribed
func (d *Device) streamLoop(cs *connState) {
	defer d.wg.Done()

	interval := time.Duration(float64(d.cfg.SamplesPerPacket) / d.cfg.SamplingRateHz * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-cs.done:
			return
		case <-ticker.C:
		}

		cs.subMu.Lock()
		streaming := cs.subs[protocol.EEGDataCharUUID]
		cs.subMu.Unlock()
		if !streaming {
			continue
		}

		d.mu.Lock()
		seq := d.seq
		d.seq++
		ts := uint32(time.Since(d.epoch).Milliseconds())
		d.mu.Unlock()
		lossy := d.gen.Chance(d.cfg.PacketLossRate)

		samples := d.gen.Generate(d.cfg.SamplesPerPacket)
		if lossy {
			// The sequence number is spent but the packet never leaves the
			// radio, which is what loss looks like to the app
			continue
		}

		pkt := &protocol.EEGDataPacket{Timestamp: ts, Sequence: seq, Samples: samples}
		d.notify(cs, protocol.EEGDataCharUUID, protocol.EncodeEEGDataPacket(pkt))
	}
}

// statusLoop emits periodic status notifications while subscribed
func (d *Device) statusLoop(cs *connState) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-cs.done:
			return
		case <-ticker.C:
		}

		cs.subMu.Lock()
		subscribed := cs.subs[protocol.DeviceStatusCharUUID]
		cs.subMu.Unlock()
		if !subscribed {
			continue
		}

		d.notify(cs, protocol.DeviceStatusCharUUID, protocol.EncodeDeviceStatus(d.statusSnapshot()))
	}
}

// statusSnapshot builds the current 16-byte status payload
func (d *Device) statusSnapshot() *protocol.DeviceStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Battery drains roughly 1% per 4 minutes of streaming
	elapsed := time.Since(d.epoch)
	battery := int(d.battery) - int(elapsed/(4*time.Minute))
	if battery < 0 {
		battery = 0
	}

	return &protocol.DeviceStatus{
		Connected:         true,
		Streaming:         true,
		EntrainmentActive: d.entrainment.active && !d.entrainment.paused,
		LowBattery:        battery < 20,
		Charging:          d.charging,
		BatteryLevel:      uint8(battery),
		SignalScore:       85,
		RSSI:              -58,
		FwMajor:           1,
		FwMinor:           4,
		FwPatch:           2,
	}
}

func (d *Device) notify(cs *connState, charUUID string, packet []byte) {
	msg := &wire.Message{
		Type:               wire.TypeNotification,
		ServiceUUID:        protocol.SensorServiceUUID,
		CharacteristicUUID: charUUID,
		Value:              base64.StdEncoding.EncodeToString(packet),
	}
	d.send(cs, msg)
}

func (d *Device) send(cs *connState, msg *wire.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Sensor", "Marshal message: %v", err)
		return
	}

	cs.writeMu.Lock()
	err = wire.WriteFrame(cs.conn, payload)
	cs.writeMu.Unlock()
	if err != nil {
		logger.Trace("Sensor", "Send failed (connection closing): %v", err)
	}
}
