package main

import (
	"flag"
	"math/rand"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/sree4002/FlowState-BCI-sub000/logger"
	"github.com/sree4002/FlowState-BCI-sub000/sensor"
)

func main() {
	socketPath := flag.String("socket", "/tmp/flowstate-sensor.sock", "Unix socket path to listen on")
	rate := flag.Float64("rate", 200, "Sampling rate in Hz")
	samplesPerPacket := flag.Int("samples", 50, "Samples per EEG packet")
	lossRate := flag.Float64("loss", 0, "Simulated packet loss rate (0-1)")
	wander := flag.Bool("wander", true, "Randomly change theta state every 10-20s")
	logLevel := flag.String("log", "INFO", "Log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	flag.Parse()

	logger.SetLevel(logger.ParseLevel(*logLevel))

	cfg := sensor.DefaultConfig(*socketPath)
	cfg.SamplingRateHz = *rate
	cfg.SamplesPerPacket = *samplesPerPacket
	cfg.PacketLossRate = *lossRate

	dev := sensor.NewDevice(cfg)
	if err := dev.Start(); err != nil {
		logger.Error("SensorSim", "%v", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	if *wander {
		// Drift between cognitive states so the closed-loop logic has
		// something to react to, like the original development simulator
		go func() {
			states := []sensor.ThetaState{sensor.ThetaLow, sensor.ThetaNormal, sensor.ThetaHigh}
			for {
				delay := time.Duration(10+rand.Intn(11)) * time.Second
				select {
				case <-stop:
					return
				case <-time.After(delay):
				}
				next := states[rand.Intn(len(states))]
				dev.Generator().SetThetaState(next)
				logger.Info("SensorSim", "Theta state -> %s", next)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	ossignal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	close(stop)
	dev.Stop()
}
