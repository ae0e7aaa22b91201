package main

import (
	"net/http"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/sree4002/FlowState-BCI-sub000/device"
	"github.com/sree4002/FlowState-BCI-sub000/logger"
	"github.com/sree4002/FlowState-BCI-sub000/monitor"
	"github.com/sree4002/FlowState-BCI-sub000/protocol"
	"github.com/sree4002/FlowState-BCI-sub000/signal"
	"github.com/sree4002/FlowState-BCI-sub000/wire"
)

func loadConfig() {
	viper.SetDefault("socket_path", "/tmp/flowstate-sensor.sock")
	viper.SetDefault("listen_addr", ":8765")
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("sampling_rate_hz", 200.0)
	viper.SetDefault("window_seconds", 2.0)
	viper.SetDefault("status_poll_ms", 5000)
	viper.SetDefault("metrics_interval_ms", 1000)
	viper.SetDefault("reconnect.base_delay_ms", 2000)
	viper.SetDefault("reconnect.max_delay_ms", 32000)
	viper.SetDefault("reconnect.max_attempts", 5)
	viper.SetDefault("entrainment.auto_start", false)
	viper.SetDefault("entrainment.frequency_hz", 6.0)
	viper.SetDefault("entrainment.volume", 70)
	viper.SetDefault("entrainment.waveform", "isochronic")

	viper.SetConfigName("flowstate")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.flowstate")
	viper.SetEnvPrefix("FLOWSTATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Info("App", "Loaded config from %s", viper.ConfigFileUsed())
	}
}

func waveformFromName(name string) protocol.Waveform {
	switch name {
	case "binaural":
		return protocol.WaveformBinaural
	case "monaural":
		return protocol.WaveformMonaural
	default:
		return protocol.WaveformIsochronic
	}
}

func main() {
	loadConfig()
	logger.SetLevel(logger.ParseLevel(viper.GetString("log_level")))

	buffer, err := signal.NewSlidingWindowBuffer(signal.BufferConfig{
		SamplingRateHz: viper.GetFloat64("sampling_rate_hz"),
		WindowSeconds:  viper.GetFloat64("window_seconds"),
	})
	if err != nil {
		logger.Error("App", "Buffer config: %v", err)
		os.Exit(1)
	}

	link := wire.NewWire(viper.GetString("socket_path"))
	commands := device.NewEntrainmentCommandHandler(link)
	hub := monitor.NewBroadcaster()

	onError := func(err error) {
		logger.Warn("App", "%v", err)
	}

	// The stream and status handlers are torn down on disconnect and
	// re-created by the connect sequence, so their subscriptions always
	// belong to the live link.
	var handlerMu sync.Mutex
	var stream *device.EEGStreamHandler
	var status *device.DeviceStatusHandler

	connect := func() error {
		if err := link.Connect(); err != nil {
			return err
		}

		handlerMu.Lock()
		defer handlerMu.Unlock()

		stream = device.NewEEGStreamHandler(link, buffer, nil, onError)
		if err := stream.Start(); err != nil {
			return err
		}

		status = device.NewDeviceStatusHandler(link,
			time.Duration(viper.GetInt("status_poll_ms"))*time.Millisecond, nil, onError)
		return status.Start()
	}

	coordinator := device.NewReconnectCoordinator(
		device.ReconnectConfig{
			BaseDelay:   time.Duration(viper.GetInt("reconnect.base_delay_ms")) * time.Millisecond,
			MaxDelay:    time.Duration(viper.GetInt("reconnect.max_delay_ms")) * time.Millisecond,
			MaxAttempts: viper.GetInt("reconnect.max_attempts"),
		},
		connect,
		func(ev device.ReconnectAttemptEvent) {
			logger.Info("App", "Reconnect %s (attempt %d/%d)", ev.Status, ev.Attempt, ev.MaxAttempts)
		},
	)

	link.SetDisconnectCallback(func(intentional bool) {
		handlerMu.Lock()
		if stream != nil {
			stream.Stop()
		}
		if status != nil {
			status.Stop()
		}
		handlerMu.Unlock()

		coordinator.HandleDisconnect(intentional)
	})

	if err := connect(); err != nil {
		logger.Error("App", "Initial connect failed: %v", err)
		os.Exit(1)
	}

	if viper.GetBool("entrainment.auto_start") {
		res := commands.StartEntrainment(device.EntrainmentConfig{
			FrequencyHz: viper.GetFloat64("entrainment.frequency_hz"),
			Volume:      viper.GetInt("entrainment.volume"),
			Waveform:    waveformFromName(viper.GetString("entrainment.waveform")),
		})
		if !res.Success {
			logger.Warn("App", "Auto-start entrainment failed: %v", res.Err)
		}
	}

	http.HandleFunc("/ws", hub.ServeWS)
	go func() {
		addr := viper.GetString("listen_addr")
		logger.Info("App", "Metrics WebSocket on ws://%s/ws", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error("App", "HTTP server: %v", err)
		}
	}()

	// Metrics loop: score the current window and fan it out to UI clients
	metricsStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(viper.GetInt("metrics_interval_ms")) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-metricsStop:
				return
			case <-ticker.C:
			}

			win := buffer.GetWindow(0)
			quality := signal.AnalyzeWindow(win.Samples)
			stats := buffer.GetStats()

			m := monitor.Metrics{
				Timestamp:          time.Now().UnixMilli(),
				SignalQuality:      quality.Score,
				ArtifactPercentage: quality.ArtifactPercentage,
				QualityCategory:    string(signal.CategorizeScore(quality.Score)),
				BufferFillPercent:  stats.FillPercent,
			}

			handlerMu.Lock()
			if stream != nil {
				m.DroppedPackets = stream.DroppedPackets()
				m.Streaming = stream.IsActive()
			}
			if status != nil {
				if s := status.GetLastStatus(); s != nil {
					m.BatteryLevel = int(s.BatteryLevel)
					m.EntrainmentActive = s.EntrainmentActive
					m.RSSI = int(s.RSSI)
					m.FirmwareVersion = s.FirmwareVersion()
				}
			}
			handlerMu.Unlock()

			hub.Broadcast(m)
		}
	}()

	sig := make(chan os.Signal, 1)
	ossignal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("App", "Shutting down")
	close(metricsStop)

	if commands.GetCurrentConfig() != nil {
		commands.StopEntrainment()
	}

	handlerMu.Lock()
	if stream != nil {
		stream.Stop()
	}
	if status != nil {
		status.Stop()
	}
	handlerMu.Unlock()

	coordinator.Stop()
	link.Disconnect()
	hub.Close()
}
