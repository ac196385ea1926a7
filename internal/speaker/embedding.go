// Package speaker extracts per-segment voice embeddings and clusters them
// into speaker identities online, per spec §4.5.
package speaker

import (
	"fmt"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"transcore/internal/dsp"
	"transcore/internal/onnxrt"
)

// MinEncodeDuration is the shortest segment the encoder can extract a
// reliable embedding from, per spec §4.5. Segments shorter than this are
// not encoded; the caller (the pipeline's attributeSpeaker) gives them the
// previous segment's speaker identity instead (continuity reuse). Encode
// itself rejects them with an error.
const MinEncodeDuration = 1.0 // seconds

// Embedding is a unit-L2-normalized voice embedding vector.
type Embedding []float32

// EncoderConfig parameterizes the mel front end feeding the ONNX model.
type EncoderConfig struct {
	ModelPath  string
	SampleRate int
	NMels      int
	HopLength  int
	WinLength  int
	NFFT       int
}

// DefaultEncoderConfig matches a WeSpeaker-ResNet34-style embedding model.
func DefaultEncoderConfig(modelPath string) EncoderConfig {
	return EncoderConfig{
		ModelPath:  modelPath,
		SampleRate: 16000,
		NMels:      80,
		HopLength:  160,
		WinLength:  400,
		NFFT:       512,
	}
}

// Encoder turns a segment of 16kHz mono audio into a normalized Embedding.
type Encoder struct {
	config EncoderConfig
	mel    *dsp.MelProcessor

	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	initialized bool
}

// NewEncoder loads cfg.ModelPath and builds an Encoder.
func NewEncoder(cfg EncoderConfig) (*Encoder, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("speaker encoder model not found: %s", cfg.ModelPath)
	}
	if err := onnxrt.Init(""); err != nil {
		return nil, err
	}

	e := &Encoder{
		config: cfg,
		mel: dsp.NewMelProcessor(dsp.MelConfig{
			SampleRate: cfg.SampleRate,
			NMels:      cfg.NMels,
			HopLength:  cfg.HopLength,
			WinLength:  cfg.WinLength,
			NFFT:       cfg.NFFT,
		}),
	}
	if err := e.loadModel(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Encoder) loadModel() error {
	inputInfo, outputInfo, err := ort.GetInputOutputInfo(e.config.ModelPath)
	if err != nil {
		return fmt.Errorf("speaker encoder model info: %w", err)
	}
	inputNames := make([]string, len(inputInfo))
	for i, info := range inputInfo {
		inputNames[i] = info.Name
	}
	outputNames := make([]string, len(outputInfo))
	for i, info := range outputInfo {
		outputNames[i] = info.Name
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("speaker encoder session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(e.config.ModelPath, inputNames, outputNames, options)
	if err != nil {
		return fmt.Errorf("speaker encoder session: %w", err)
	}
	e.session = session
	e.initialized = true
	return nil
}

// Encode extracts an Embedding from samples, which must be at least
// MinEncodeDuration seconds of 16kHz mono audio.
func (e *Encoder) Encode(samples []float32) (Embedding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, fmt.Errorf("speaker encoder not initialized")
	}
	if len(samples) < int(float64(e.config.SampleRate)*MinEncodeDuration) {
		return nil, fmt.Errorf("segment too short for embedding extraction: %d samples", len(samples))
	}

	melSpec, numFrames := e.mel.Compute(samples)

	// WeSpeaker-exported ONNX graphs take [batch, time, mels].
	flat := make([]float32, numFrames*e.config.NMels)
	for t := 0; t < numFrames; t++ {
		copy(flat[t*e.config.NMels:(t+1)*e.config.NMels], melSpec[t])
	}

	inputShape := ort.NewShape(1, int64(numFrames), int64(e.config.NMels))
	inputTensor, err := ort.NewTensor(inputShape, flat)
	if err != nil {
		return nil, fmt.Errorf("speaker encoder input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("speaker encoder inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("speaker encoder output: unexpected tensor type")
	}

	raw := outTensor.GetData()
	result := make(Embedding, len(raw))
	copy(result, normalize(raw))
	return result, nil
}

// Close releases the underlying ONNX session.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	e.initialized = false
}

// normalize scales v to unit L2 norm, the convention every embedding in
// this package is stored under (profiles, cluster centroids, and Encoder
// output alike).
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x * x)
	}
	norm := float32(math.Sqrt(sumSq))
	if norm < 1e-6 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
