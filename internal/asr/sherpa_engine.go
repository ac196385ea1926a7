package asr

import (
	"fmt"
	"os"
	"strings"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"transcore/internal/corerr"
)

// SherpaEngineConfig locates the ONNX Whisper-family encoder/decoder/tokens
// files for one model tier.
type SherpaEngineConfig struct {
	EncoderPath string
	DecoderPath string
	TokensPath  string
	Language    string // empty enables auto-detection, per spec §4.4
	NumThreads  int
	Provider    string // "cpu", "cuda", "coreml"; empty defaults to cpu
}

// SherpaEngine wraps a sherpa-onnx offline Whisper recognizer. A fresh
// sherpa.OfflineStream is created per Transcribe call since sherpa-onnx
// streams are not reusable across independent utterances.
type SherpaEngine struct {
	cfg        SherpaEngineConfig
	mu         sync.Mutex
	recognizer *sherpa.OfflineRecognizer
}

// NewSherpaEngine loads the encoder/decoder/tokens files named in cfg and
// builds a recognizer. It returns a *corerr.Error of KindModelNotLoaded if
// any file is missing, matching spec §4.4's ModelNotLoaded failure mode.
func NewSherpaEngine(cfg SherpaEngineConfig) (*SherpaEngine, error) {
	for _, p := range []string{cfg.EncoderPath, cfg.DecoderPath, cfg.TokensPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, corerr.New(corerr.KindModelNotLoaded, "asr", fmt.Errorf("model file not found: %s", p))
		}
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "cpu"
	}
	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = 2
	}

	sherpaCfg := &sherpa.OfflineRecognizerConfig{
		ModelConfig: sherpa.OfflineModelConfig{
			Whisper: sherpa.OfflineWhisperModelConfig{
				Encoder:  cfg.EncoderPath,
				Decoder:  cfg.DecoderPath,
				Language: cfg.Language, // "" lets the model auto-detect
				Task:     "transcribe",
			},
			Tokens:     cfg.TokensPath,
			NumThreads: numThreads,
			Provider:   provider,
			ModelType:  "whisper",
		},
		DecodingMethod: "greedy_search",
	}

	recognizer := sherpa.NewOfflineRecognizer(sherpaCfg)
	if recognizer == nil {
		return nil, corerr.New(corerr.KindModelNotLoaded, "asr", fmt.Errorf("failed to create sherpa-onnx recognizer for %s", cfg.EncoderPath))
	}

	return &SherpaEngine{cfg: cfg, recognizer: recognizer}, nil
}

// Transcribe implements Engine. samples must be 16kHz mono, 0.5-30s,
// amplitude in [-1, 1]; NewSherpaEngine's caller is responsible for
// resampling upstream, per the pipeline's component ordering.
func (e *SherpaEngine) Transcribe(samples []float32, tc Context) (Result, error) {
	if err := validateSamples(samples); err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prepared := preprocess(samples)

	stream := sherpa.NewOfflineStream(e.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(16000, prepared)
	e.recognizer.Decode(stream)
	out := stream.GetResult()

	words := resultToWords(out, len(prepared))
	words = stripOverlapPrefix(words, tc.OverlapBuffer)
	applyCustomVocabulary(words, tc.CustomVocabulary)

	lang := out.Lang
	langConfidence := float32(1.0)
	if lang == "" {
		lang = "unknown"
		langConfidence = 0
	}

	return Result{Words: words, Language: lang, LanguageConfidence: langConfidence}, nil
}

// Close releases the underlying recognizer.
func (e *SherpaEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(e.recognizer)
		e.recognizer = nil
	}
}

func validateSamples(samples []float32) error {
	durationSec := float64(len(samples)) / 16000.0
	if durationSec < MinSegmentSeconds || durationSec > MaxSegmentSeconds {
		return &InvalidAudioFormatError{Reason: fmt.Sprintf("segment duration %.2fs outside [%.1f, %.1f]s", durationSec, MinSegmentSeconds, MaxSegmentSeconds)}
	}
	return nil
}

// preprocess applies spec §4.4's pre-emphasis filter and peak normalization
// ahead of inference, without mutating the caller's slice.
func preprocess(samples []float32) []float32 {
	out := make([]float32, len(samples))
	if len(out) == 0 {
		return out
	}
	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = samples[i] - PreEmphasisCoefficient*samples[i-1]
	}

	var peak float32
	for _, s := range out {
		if a := abs32(s); a > peak {
			peak = a
		}
	}
	if peak > 1.0 {
		scale := 1.0 / peak
		for i := range out {
			out[i] *= scale
		}
	}
	return out
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// resultToWords converts a sherpa-onnx offline result into spec §4.4's Word
// contract: contiguous, non-overlapping times, and a uniform fallback
// distribution across the segment when the model carries no per-word
// timestamps.
func resultToWords(out *sherpa.OfflineRecognizerResult, numSamples int) []Word {
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return nil
	}

	durationMs := int64(numSamples) * 1000 / 16000

	if len(out.Tokens) > 0 && len(out.Timestamps) == len(out.Tokens) {
		words := make([]Word, 0, len(out.Tokens))
		for i, tok := range out.Tokens {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			start := int64(out.Timestamps[i] * 1000)
			end := durationMs
			if i+1 < len(out.Timestamps) {
				end = int64(out.Timestamps[i+1] * 1000)
			}
			words = append(words, Word{Start: start, End: end, Text: tok, Confidence: DefaultWordConfidence})
		}
		return words
	}

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	words := make([]Word, len(tokens))
	perWord := durationMs / int64(len(tokens))
	for i, tok := range tokens {
		words[i] = Word{
			Start:      int64(i) * perWord,
			End:        int64(i+1) * perWord,
			Text:       tok,
			Confidence: DefaultWordConfidence,
		}
	}
	words[len(words)-1].End = durationMs
	return words
}
