package audio

import "math"

// FilterConfig configures the conditioning filters applied to a channel
// before VAD analysis: noise gate, normalization, high-pass, de-click.
type FilterConfig struct {
	NoiseGateEnabled   bool
	NoiseGateThreshold float32 // RMS floor below which the signal is attenuated

	NormalizationEnabled bool
	TargetPeakLevel      float32

	HighPassEnabled bool
	HighPassCutoff  float32 // Hz

	DeClickEnabled   bool
	DeClickThreshold float32
}

// DefaultFilterConfig returns the conditioning chain used when a channel's
// quality isn't otherwise analyzed first.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		NoiseGateEnabled:     true,
		NoiseGateThreshold:   0.008,
		NormalizationEnabled: true,
		TargetPeakLevel:      0.9,
		HighPassEnabled:      true,
		HighPassCutoff:       80,
		DeClickEnabled:       true,
		DeClickThreshold:     0.4,
	}
}

// Apply runs the enabled filters over samples in a fixed order (high-pass,
// de-click, noise gate, normalize) and returns a new slice; the input is
// never mutated.
func Apply(samples []float32, sampleRate int, cfg FilterConfig) []float32 {
	if len(samples) == 0 {
		return samples
	}
	result := make([]float32, len(samples))
	copy(result, samples)

	if cfg.HighPassEnabled {
		result = highPass(result, sampleRate, cfg.HighPassCutoff)
	}
	if cfg.DeClickEnabled {
		result = deClick(result, cfg.DeClickThreshold)
	}
	if cfg.NoiseGateEnabled {
		result = noiseGate(result, sampleRate, cfg.NoiseGateThreshold)
	}
	if cfg.NormalizationEnabled {
		result = normalize(result, cfg.TargetPeakLevel)
	}
	return result
}

// highPass applies a first-order IIR high-pass filter to remove DC offset
// and sub-cutoff rumble.
func highPass(samples []float32, sampleRate int, cutoffHz float32) []float32 {
	if len(samples) == 0 || cutoffHz <= 0 {
		return samples
	}
	rc := 1.0 / (2.0 * math.Pi * float64(cutoffHz))
	dt := 1.0 / float64(sampleRate)
	alpha := float32(rc / (rc + dt))

	out := make([]float32, len(samples))
	out[0] = samples[0]
	prevIn, prevOut := samples[0], samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = alpha * (prevOut + samples[i] - prevIn)
		prevIn = samples[i]
		prevOut = out[i]
	}
	return out
}

// deClick interpolates over sample-to-sample spikes that exceed threshold on
// both sides (a click), rather than passing them through to the VAD/ASR.
func deClick(samples []float32, threshold float32) []float32 {
	if len(samples) < 3 {
		return samples
	}
	out := make([]float32, len(samples))
	copy(out, samples)
	for i := 1; i < len(samples)-1; i++ {
		diffPrev := abs32(samples[i] - samples[i-1])
		diffNext := abs32(samples[i] - samples[i+1])
		if diffPrev > threshold && diffNext > threshold {
			out[i] = (samples[i-1] + samples[i+1]) / 2
		}
	}
	return out
}

// noiseGate attenuates windows whose RMS falls below threshold, fading
// rather than hard-zeroing to avoid gating artifacts.
func noiseGate(samples []float32, sampleRate int, threshold float32) []float32 {
	if len(samples) == 0 {
		return samples
	}
	windowSize := sampleRate / 100
	if windowSize < 1 {
		windowSize = 1
	}
	out := make([]float32, len(samples))
	copy(out, samples)

	for i := 0; i < len(samples); i += windowSize {
		end := i + windowSize
		if end > len(samples) {
			end = len(samples)
		}
		rms := RMS(samples[i:end])
		if rms < threshold {
			attenuation := rms / threshold
			if attenuation < 0.1 {
				attenuation = 0.1
			}
			for j := i; j < end; j++ {
				out[j] *= attenuation
			}
		}
	}
	return out
}

// normalize scales samples so the peak amplitude reaches targetPeak,
// clamping gain to avoid amplifying noise floor on near-silent channels.
func normalize(samples []float32, targetPeak float32) []float32 {
	if len(samples) == 0 || targetPeak <= 0 {
		return samples
	}
	var peak float32
	for _, s := range samples {
		if a := abs32(s); a > peak {
			peak = a
		}
	}
	if peak < 0.001 {
		return samples
	}
	gain := targetPeak / peak
	if gain > 20 {
		gain = 20
	}
	out := make([]float32, len(samples))
	for i, s := range samples {
		v := s * gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = v
	}
	return out
}

// RMS computes the root-mean-square energy of a window.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s * s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// QualityMetrics summarizes a channel's signal quality, used to pick an
// adaptive filter configuration before VAD.
type QualityMetrics struct {
	RMS        float32
	Peak       float32
	SNR        float32
	NoiseLevel float32
	ClickCount int
	DCOffset   float32
	IsSilent   bool
}

// Analyze computes QualityMetrics for a channel.
func Analyze(samples []float32, sampleRate int) QualityMetrics {
	var m QualityMetrics
	if len(samples) == 0 {
		m.IsSilent = true
		return m
	}

	var sum, sumSq float64
	var peak float32
	for _, s := range samples {
		sum += float64(s)
		sumSq += float64(s * s)
		if a := abs32(s); a > peak {
			peak = a
		}
	}
	n := float64(len(samples))
	m.DCOffset = float32(sum / n)
	m.RMS = float32(math.Sqrt(sumSq / n))
	m.Peak = peak

	if m.RMS < 0.005 && m.Peak < 0.05 {
		m.IsSilent = true
		return m
	}

	windowSize := sampleRate / 50
	if windowSize < 1 {
		windowSize = 1
	}
	minRMS := float32(1.0)
	for i := 0; i < len(samples); i += windowSize {
		end := i + windowSize
		if end > len(samples) {
			end = len(samples)
		}
		rms := RMS(samples[i:end])
		if rms < minRMS && rms > 0.0001 {
			minRMS = rms
		}
	}
	m.NoiseLevel = minRMS
	if m.NoiseLevel > 0 {
		m.SNR = 20 * float32(math.Log10(float64(m.RMS/m.NoiseLevel)))
	}

	threshold := float32(0.4)
	for i := 1; i < len(samples)-1; i++ {
		if abs32(samples[i]-samples[i-1]) > threshold && abs32(samples[i]-samples[i+1]) > threshold {
			m.ClickCount++
		}
	}
	return m
}

// AdaptiveConfig derives a FilterConfig tuned to the channel's measured
// quality, widening the noise gate or de-click aggressiveness only when the
// signal warrants it.
func AdaptiveConfig(m QualityMetrics) FilterConfig {
	cfg := DefaultFilterConfig()
	if m.ClickCount > 20 {
		cfg.DeClickThreshold = 0.3
	}
	if m.SNR < 15 {
		cfg.NoiseGateThreshold = 0.015
	}
	if abs32(m.DCOffset) > 0.01 {
		cfg.HighPassEnabled = true
	}
	if m.Peak < 0.3 && m.Peak > 0 {
		cfg.NormalizationEnabled = true
		cfg.TargetPeakLevel = 0.8
	}
	return cfg
}
