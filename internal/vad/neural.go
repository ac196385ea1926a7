package vad

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"transcore/internal/onnxrt"
)

// NeuralDetector wraps a Silero-style streaming ONNX VAD model, used in
// place of EnergyDetector when higher accuracy on noisy or overlapping
// speech is worth the model dependency.
type NeuralDetector struct {
	session *ort.DynamicAdvancedSession

	sampleRate  int
	contextSize int // 64 samples at 16kHz, 32 at 8kHz

	mu      sync.Mutex
	state   []float32 // LSTM hidden+cell state, [2, 1, 128] flattened
	context []float32 // last contextSize samples of the previous window
}

// NewNeuralDetector loads modelPath and builds a NeuralDetector for
// sampleRate (8000 or 16000).
func NewNeuralDetector(modelPath string, sampleRate int) (*NeuralDetector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("vad model not found: %s", modelPath)
	}
	if sampleRate != 8000 && sampleRate != 16000 {
		return nil, fmt.Errorf("vad neural detector: sample rate must be 8000 or 16000, got %d", sampleRate)
	}
	if err := onnxrt.Init(""); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("vad session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("vad onnx session: %w", err)
	}

	contextSize := 64
	if sampleRate == 8000 {
		contextSize = 32
	}

	return &NeuralDetector{
		session:     session,
		sampleRate:  sampleRate,
		contextSize: contextSize,
		state:       make([]float32, 2*1*128),
		context:     make([]float32, contextSize),
	}, nil
}

// Probability runs one inference step over window, using and updating the
// detector's streaming LSTM state and sample context.
func (d *NeuralDetector) Probability(window []float32) (float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	input := make([]float32, d.contextSize+len(window))
	copy(input[:d.contextSize], d.context)
	copy(input[d.contextSize:], window)

	if len(window) >= d.contextSize {
		copy(d.context, window[len(window)-d.contextSize:])
	} else {
		copy(d.context, d.context[len(window):])
		copy(d.context[d.contextSize-len(window):], window)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return 0, fmt.Errorf("vad input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), d.state)
	if err != nil {
		return 0, fmt.Errorf("vad state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(d.sampleRate)})
	if err != nil {
		return 0, fmt.Errorf("vad sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := d.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs); err != nil {
		return 0, fmt.Errorf("vad inference: %w", err)
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
		return 0, fmt.Errorf("vad output: unexpected tensor type")
	}
	stateN, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return 0, fmt.Errorf("vad state output: unexpected tensor type")
	}
	copy(d.state, stateN.GetData())

	data := outTensor.GetData()
	if len(data) == 0 {
		return 0, nil
	}
	return data[0], nil
}

// Reset clears the LSTM state and sample context, used between segments
// that should not share streaming continuity.
func (d *NeuralDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.state {
		d.state[i] = 0
	}
	for i := range d.context {
		d.context[i] = 0
	}
}

// Close releases the underlying ONNX session.
func (d *NeuralDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
}
