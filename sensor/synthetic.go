package sensor

import (
	"math"
	"math/rand"
	"sync"
)

// ThetaState forces the simulated cognitive state, for testing the
// closed-loop behavior without a human attached
type ThetaState string

const (
	ThetaLow    ThetaState = "low"
	ThetaNormal ThetaState = "normal"
	ThetaHigh   ThetaState = "high"
)

// Band amplitudes in microvolts for the synthetic signal
const (
	thetaAmpNormal = 15.0
	thetaAmpHigh   = 25.0
	thetaAmpLow    = 5.0
	alphaAmp       = 10.0
	betaAmp        = 5.0
	noiseAmp       = 8.0

	blinkChance = 0.02 // Per generated chunk
	blinkLen    = 50   // Samples
	blinkHeight = 80.0 // Microvolts
)

// SyntheticEEG generates a plausible scalp EEG trace: theta, alpha and beta
// sinusoids over Gaussian noise, with the occasional eye-blink artifact.
type SyntheticEEG struct {
	mu       sync.Mutex
	rate     float64
	t        float64 // Seconds since start
	thetaAmp float64
	state    ThetaState
	rng      *rand.Rand
}

// NewSyntheticEEG creates a generator at the given sampling rate.
// seed 0 selects a random seed.
func NewSyntheticEEG(rateHz float64, seed int64) *SyntheticEEG {
	if seed == 0 {
		seed = rand.Int63()
	}
	return &SyntheticEEG{
		rate:     rateHz,
		thetaAmp: thetaAmpNormal,
		state:    ThetaNormal,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// SetThetaState shifts the theta amplitude to simulate a cognitive state change
func (g *SyntheticEEG) SetThetaState(state ThetaState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch state {
	case ThetaHigh:
		g.thetaAmp = thetaAmpHigh
	case ThetaLow:
		g.thetaAmp = thetaAmpLow
	default:
		state = ThetaNormal
		g.thetaAmp = thetaAmpNormal
	}
	g.state = state
}

// State returns the current forced theta state
func (g *SyntheticEEG) State() ThetaState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Chance returns true with probability p, using the generator's seeded source
func (g *SyntheticEEG) Chance(p float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return p > 0 && g.rng.Float64() < p
}

// Generate produces the next n samples in microvolts
func (g *SyntheticEEG) Generate(n int) []float32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		t := g.t + float64(i)/g.rate

		v := g.thetaAmp * math.Sin(2*math.Pi*6.0*t)
		v += alphaAmp * math.Sin(2*math.Pi*10.0*t+0.5)
		v += betaAmp * math.Sin(2*math.Pi*20.0*t)
		v += g.rng.NormFloat64() * noiseAmp

		samples[i] = float32(v)
	}
	g.t += float64(n) / g.rate

	// Occasional eye blink: a Gaussian-shaped deflection well above the
	// amplitude artifact threshold
	if n >= blinkLen && g.rng.Float64() < blinkChance {
		pos := g.rng.Intn(n - blinkLen + 1)
		for i := 0; i < blinkLen; i++ {
			offset := float64(i) - blinkLen/2
			samples[pos+i] += float32(blinkHeight * math.Exp(-offset*offset/100))
		}
	}

	return samples
}
