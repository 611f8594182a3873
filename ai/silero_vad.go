package ai

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// Пороги вероятности речи Silero по уровню агрессивности 0-3
var sileroThresholds = [4]float32{0.3, 0.5, 0.65, 0.8}

// sileroWindowSize окно модели для 16kHz (32 мс)
const sileroWindowSize = 512

// sileroContextSize контекст из предыдущего окна для 16kHz
const sileroContextSize = 64

// SileroClassifier классификатор фреймов на модели Silero VAD v5 (ONNX Runtime)
type SileroClassifier struct {
	session   *ort.DynamicAdvancedSession
	threshold float32

	// LSTM состояние [2, 1, 128] и контекст последних сэмплов
	state   []float32
	context []float32

	mu sync.Mutex
}

// NewSileroClassifier загружает модель Silero VAD
func NewSileroClassifier(modelPath string, aggressiveness int) (*SileroClassifier, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("silero model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("aggressiveness must be 0-3, got %d", aggressiveness)
	}

	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	// Silero VAD inputs: input, state, sr; outputs: output, stateN
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log.Info().Float32("threshold", sileroThresholds[aggressiveness]).Msg("silero vad initialized")
	return &SileroClassifier{
		session:   session,
		threshold: sileroThresholds[aggressiveness],
		state:     make([]float32, 2*1*128),
		context:   make([]float32, sileroContextSize),
	}, nil
}

// Name возвращает имя бэкенда
func (c *SileroClassifier) Name() string { return VADBackendSilero }

// Begin сбрасывает рекуррентное состояние и захватывает модель на один прогон
func (c *SileroClassifier) Begin() func() {
	c.mu.Lock()
	for i := range c.state {
		c.state[i] = 0
	}
	for i := range c.context {
		c.context[i] = 0
	}
	return c.mu.Unlock
}

// IsSpeech прогоняет фрейм через модель. Фреймы короче окна дополняются нулями.
// Вызывать между Begin и release.
func (c *SileroClassifier) IsSpeech(frame []float32, sampleRate int) (bool, error) {
	if sampleRate != TargetSampleRate {
		return false, fmt.Errorf("silero vad expects %d Hz, got %d", TargetSampleRate, sampleRate)
	}
	if len(frame) == 0 || len(frame) > sileroWindowSize {
		return false, fmt.Errorf("invalid frame size %d", len(frame))
	}
	if c.session == nil {
		return false, fmt.Errorf("silero vad is closed")
	}

	window := make([]float32, sileroWindowSize)
	copy(window, frame)

	prob, err := c.processWindow(window)
	c.carryContext(frame)
	if err != nil {
		return false, err
	}
	return prob >= c.threshold, nil
}

// carryContext сохраняет последние реальные сэмплы фрейма как контекст
// следующего окна, нулевое дополнение в контекст не попадает
func (c *SileroClassifier) carryContext(frame []float32) {
	if len(frame) >= sileroContextSize {
		copy(c.context, frame[len(frame)-sileroContextSize:])
		return
	}
	keep := sileroContextSize - len(frame)
	copy(c.context, c.context[len(frame):])
	copy(c.context[keep:], frame)
}

// processWindow возвращает вероятность речи для одного окна
func (c *SileroClassifier) processWindow(window []float32) (float32, error) {
	// Silero VAD ожидает [batch, context_size + window_size]
	inputData := make([]float32, sileroContextSize+len(window))
	copy(inputData[:sileroContextSize], c.context)
	copy(inputData[sileroContextSize:], window)

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(inputData))), inputData)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), c.state)
	if err != nil {
		return 0, fmt.Errorf("failed to create state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(TargetSampleRate)})
	if err != nil {
		return 0, fmt.Errorf("failed to create sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := c.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs); err != nil {
		return 0, fmt.Errorf("failed to run inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	outputData := outputs[0].(*ort.Tensor[float32]).GetData()
	copy(c.state, outputs[1].(*ort.Tensor[float32]).GetData())

	if len(outputData) > 0 {
		return outputData[0], nil
	}
	return 0, nil
}

// Close освобождает ресурсы
func (c *SileroClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
}
