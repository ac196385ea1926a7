package audio

import (
	"fmt"
	"math"

	"transcore/internal/audiotype"
)

// Quality selects the interpolation strategy used by the Resampler.
type Quality int

const (
	// QualityLinear is the minimum acceptable quality: piecewise-linear
	// interpolation between samples.
	QualityLinear Quality = iota
	// QualitySinc is a band-limited windowed-sinc interpolator, selected
	// automatically when the rate ratio is large enough to make linear
	// interpolation's aliasing audible.
	QualitySinc
)

// ResampleUnsupportedError reports a channel/rate combination the Resampler
// cannot convert.
type ResampleUnsupportedError struct {
	From, To int
	Channels int
}

func (e *ResampleUnsupportedError) Error() string {
	return fmt.Sprintf("resample unsupported: %dHz/%dch -> %dHz", e.From, e.Channels, e.To)
}

// Resampler converts arbitrary-rate, arbitrary-channel frames into 16kHz
// mono float32, per spec §4.1. It is stateless across calls: each frame is
// converted independently, so callers don't need to serialize access.
type Resampler struct {
	quality Quality
}

// NewResampler builds a Resampler with QualityLinear. Resample switches to
// QualitySinc on its own whenever the rate ratio exceeds 0.1.
func NewResampler() *Resampler {
	return &Resampler{quality: QualityLinear}
}

// SetQuality sets the interpolation quality used when the rate ratio is at
// most 0.1. Above that ratio Resample always uses QualitySinc, so setting
// QualityLinear does not override the automatic switch.
func (r *Resampler) SetQuality(q Quality) { r.quality = q }

// Resample converts frame to 16kHz mono float32, clamped to [-1, 1].
// Over-unity input amplitude is preserved pre-clamp (the Resampler does not
// normalize amplitude), matching spec §4.1.
func (r *Resampler) Resample(frame audiotype.Frame) (audiotype.Frame, error) {
	if frame.SampleRate < 8000 || frame.SampleRate > 96000 {
		return audiotype.Frame{}, &ResampleUnsupportedError{frame.SampleRate, audiotype.TargetSampleRate, frame.Channels}
	}
	if frame.Channels < 1 || frame.Channels > 8 {
		return audiotype.Frame{}, &ResampleUnsupportedError{frame.SampleRate, audiotype.TargetSampleRate, frame.Channels}
	}

	mono := mixdown(frame.Samples, frame.Channels)

	var out []float32
	if frame.SampleRate == audiotype.TargetSampleRate {
		out = mono // identity, bit-exact per P9
	} else {
		quality := r.quality
		ratio := math.Abs(float64(frame.SampleRate-audiotype.TargetSampleRate)) / float64(frame.SampleRate)
		if ratio > 0.1 {
			quality = QualitySinc
		}
		if quality == QualitySinc {
			out = resampleSinc(mono, frame.SampleRate, audiotype.TargetSampleRate)
		} else {
			out = resampleLinear(mono, frame.SampleRate, audiotype.TargetSampleRate)
		}
	}

	for i, s := range out {
		if s > 1.0 {
			out[i] = 1.0
		} else if s < -1.0 {
			out[i] = -1.0
		}
	}

	return audiotype.Frame{
		Samples:    out,
		SampleRate: audiotype.TargetSampleRate,
		Channels:   audiotype.TargetChannels,
		WallTime:   frame.WallTime,
		Source:     frame.Source,
	}, nil
}

// mixdown averages channels per frame into mono, per spec §4.1.
func mixdown(samples []float32, channels int) []float32 {
	if channels == 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resampleLinear performs piecewise-linear rate conversion.
func resampleLinear(samples []float32, from, to int) []float32 {
	if len(samples) == 0 {
		return nil
	}
	ratio := float64(from) / float64(to)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) * ratio
		i0 := int(srcPos)
		frac := srcPos - float64(i0)
		if i0 >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		out[i] = float32((1-frac)*float64(samples[i0]) + frac*float64(samples[i0+1]))
	}
	return out
}

// sincWindowHalfWidth is the number of input samples considered on each side
// of the interpolation point for the windowed-sinc kernel.
const sincWindowHalfWidth = 8

// resampleSinc performs a band-limited windowed-sinc rate conversion. It is
// slower than resampleLinear but avoids the aliasing a linear interpolator
// introduces on large rate-ratio conversions (e.g. 48kHz -> 8kHz).
func resampleSinc(samples []float32, from, to int) []float32 {
	if len(samples) == 0 {
		return nil
	}
	ratio := float64(from) / float64(to)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, outLen)

	// When downsampling, widen the kernel so the lowpass cutoff tracks the
	// target Nyquist frequency instead of the source's.
	cutoff := 1.0
	if ratio > 1 {
		cutoff = 1.0 / ratio
	}

	for i := range out {
		center := float64(i) * ratio
		lo := int(center) - sincWindowHalfWidth
		hi := int(center) + sincWindowHalfWidth
		if lo < 0 {
			lo = 0
		}
		if hi >= len(samples) {
			hi = len(samples) - 1
		}

		var acc float64
		for j := lo; j <= hi; j++ {
			x := (center - float64(j)) * cutoff
			acc += float64(samples[j]) * sinc(x) * hannWindow(center-float64(j), sincWindowHalfWidth)
		}
		out[i] = float32(acc * cutoff)
	}
	return out
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-9 {
		return 1.0
	}
	piX := math.Pi * x
	return math.Sin(piX) / piX
}

func hannWindow(offset float64, halfWidth int) float64 {
	n := offset / float64(halfWidth)
	if n < -1 || n > 1 {
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*n))
}
