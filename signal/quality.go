package signal

import (
	"fmt"
	"math"
)

// Artifact thresholds for scalp EEG in microvolts
const (
	AmplitudeThresholdMicrovolts = 100.0 // |value| above this is non-neural
	GradientThresholdMicrovolts  = 50.0  // Per-sample jump above this is non-neural
)

// SignalQuality is derived from a window of samples, never stored in the buffer
type SignalQuality struct {
	Score                float64 // 0-100, higher is cleaner
	ArtifactPercentage   float64 // 0-100
	HasAmplitudeArtifact bool
	HasGradientArtifact  bool
	HasFrequencyArtifact bool // Always false: frequency-domain check not implemented
}

// QualityCategory buckets a score for UI consumption
type QualityCategory string

const (
	QualityExcellent QualityCategory = "excellent"
	QualityGood      QualityCategory = "good"
	QualityFair      QualityCategory = "fair"
	QualityPoor      QualityCategory = "poor"
	QualityUnusable  QualityCategory = "unusable"
)

// AnalyzeWindow scores a window of samples for artifacts.
// A sample is flagged when its amplitude exceeds the amplitude threshold or
// when the delta from the previous sample exceeds the gradient threshold;
// the artifact percentage is the flagged fraction of the window.
func AnalyzeWindow(samples []float64) SignalQuality {
	q := SignalQuality{Score: 100}
	if len(samples) == 0 {
		return q
	}

	flagged := 0
	for i, v := range samples {
		amplitude := math.Abs(v) > AmplitudeThresholdMicrovolts
		gradient := i > 0 && math.Abs(v-samples[i-1]) > GradientThresholdMicrovolts

		if amplitude {
			q.HasAmplitudeArtifact = true
		}
		if gradient {
			q.HasGradientArtifact = true
		}
		if amplitude || gradient {
			flagged++
		}
	}

	q.ArtifactPercentage = round2(float64(flagged) / float64(len(samples)) * 100.0)
	q.Score = CalculateSignalQualityScore(q.ArtifactPercentage)

	return q
}

// CalculateSignalQualityScore converts an artifact percentage to a 0-100
// quality score. Panics on input outside [0,100] or non-finite values: that
// is a caller contract violation, not a runtime fault.
func CalculateSignalQualityScore(artifactPercentage float64) float64 {
	if math.IsNaN(artifactPercentage) || math.IsInf(artifactPercentage, 0) {
		panic(fmt.Sprintf("signal: artifact percentage must be finite, got %v", artifactPercentage))
	}
	if artifactPercentage < 0 || artifactPercentage > 100 {
		panic(fmt.Sprintf("signal: artifact percentage must be in [0,100], got %v", artifactPercentage))
	}
	return round2(100 - artifactPercentage)
}

// CategorizeScore maps a quality score to its category
func CategorizeScore(score float64) QualityCategory {
	switch {
	case score >= 90:
		return QualityExcellent
	case score >= 70:
		return QualityGood
	case score >= 50:
		return QualityFair
	case score >= 20:
		return QualityPoor
	default:
		return QualityUnusable
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
