// Package dsp holds the mel-spectrogram front end shared by the speaker
// embedding extractor and the ASR engine's feature pipeline.
package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MelConfig parameterizes the STFT + mel-filterbank pipeline.
type MelConfig struct {
	SampleRate int
	NMels      int
	HopLength  int // usually SampleRate/100 (10ms)
	WinLength  int // usually SampleRate/40 (25ms)
	NFFT       int
	Center     bool // true: frames centered on hop*i (librosa default); false: left-aligned
}

// MelProcessor computes log-mel spectrograms for a fixed MelConfig.
type MelProcessor struct {
	config     MelConfig
	melFilters [][]float64
	window     []float64
	fft        *fourier.FFT
}

// NewMelProcessor precomputes the mel filterbank and analysis window for cfg.
func NewMelProcessor(cfg MelConfig) *MelProcessor {
	return &MelProcessor{
		config:     cfg,
		melFilters: createMelFilterbank(cfg.NFFT, cfg.NMels, cfg.SampleRate),
		window:     createHannWindow(cfg.WinLength),
		fft:        fourier.NewFFT(cfg.NFFT),
	}
}

// Compute returns the log-mel spectrogram as [frame][mel] and the frame count.
func (p *MelProcessor) Compute(samples []float32) ([][]float32, int) {
	var numFrames int
	if p.config.Center {
		numFrames = len(samples)/p.config.HopLength + 1
	} else if len(samples) >= p.config.WinLength {
		numFrames = (len(samples)-p.config.WinLength)/p.config.HopLength + 1
	} else {
		numFrames = 1
	}

	melSpec := make([][]float32, numFrames)

	for frame := 0; frame < numFrames; frame++ {
		var frameStart int
		if p.config.Center {
			frameStart = frame*p.config.HopLength - p.config.WinLength/2
		} else {
			frameStart = frame * p.config.HopLength
		}

		frameData := make([]float64, p.config.NFFT)
		for i := 0; i < p.config.WinLength; i++ {
			idx := frameStart + i
			if idx >= 0 && idx < len(samples) {
				frameData[i] = float64(samples[idx]) * p.window[i]
			}
		}

		coeffs := p.fft.Coefficients(nil, frameData)

		powerSpec := make([]float64, p.config.NFFT/2+1)
		for i := range powerSpec {
			re, im := real(coeffs[i]), imag(coeffs[i])
			powerSpec[i] = re*re + im*im
		}

		melSpec[frame] = make([]float32, p.config.NMels)
		for m := 0; m < p.config.NMels; m++ {
			var sum float64
			for k, pw := range powerSpec {
				sum += pw * p.melFilters[m][k]
			}
			if sum < 1e-9 {
				sum = 1e-9
			}
			melSpec[frame][m] = float32(math.Log(sum))
		}
	}

	return melSpec, numFrames
}

// createMelFilterbank builds a triangular mel filterbank compatible with the
// librosa/torchaudio HTK-mel convention.
func createMelFilterbank(nFFT, nMels, sampleRate int) [][]float64 {
	hzToMel := func(hz float64) float64 { return 2595.0 * math.Log10(1.0+hz/700.0) }
	melToHz := func(mel float64) float64 { return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0) }

	numBins := nFFT/2 + 1
	fMax := float64(sampleRate) / 2.0

	allFreqs := make([]float64, numBins)
	for i := range allFreqs {
		allFreqs[i] = float64(i) * fMax / float64(numBins-1)
	}

	mMin, mMax := hzToMel(0), hzToMel(fMax)
	fPts := make([]float64, nMels+2)
	for i := range fPts {
		fPts[i] = melToHz(mMin + float64(i)*(mMax-mMin)/float64(nMels+1))
	}

	fDiff := make([]float64, nMels+1)
	for i := range fDiff {
		fDiff[i] = fPts[i+1] - fPts[i]
	}

	filters := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		filters[m] = make([]float64, numBins)
		for k, freq := range allFreqs {
			lower := (freq - fPts[m]) / fDiff[m]
			upper := (fPts[m+2] - freq) / fDiff[m+1]
			val := math.Min(lower, upper)
			if val < 0 {
				val = 0
			}
			filters[m][k] = val
		}
	}
	return filters
}

func createHannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}
