package ai

import (
	"fmt"
	"os"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
	"github.com/rs/zerolog/log"
)

// SherpaClassifier классификатор фреймов на Silero VAD через sherpa-onnx.
// sherpa-onnx поставляет собственный ONNX Runtime, поэтому работает там,
// где системной библиотеки onnxruntime нет.
type SherpaClassifier struct {
	vad *sherpa.VoiceActivityDetector
	mu  sync.Mutex
}

// NewSherpaClassifier создаёт VAD на модели Silero
func NewSherpaClassifier(modelPath string, aggressiveness int) (*SherpaClassifier, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("silero model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("aggressiveness must be 0-3, got %d", aggressiveness)
	}

	config := sherpa.VadModelConfig{}
	config.SileroVad.Model = modelPath
	config.SileroVad.Threshold = sileroThresholds[aggressiveness]
	// Паузы и минимальную длительность речи решает сегментатор, модели нужен только флаг речи
	config.SileroVad.MinSilenceDuration = 0.05
	config.SileroVad.MinSpeechDuration = 0.03
	config.SileroVad.WindowSize = sileroWindowSize
	config.SileroVad.MaxSpeechDuration = 3600
	config.SampleRate = TargetSampleRate
	config.NumThreads = 1
	config.Provider = "cpu"

	vad := sherpa.NewVoiceActivityDetector(&config, 30)
	if vad == nil {
		return nil, fmt.Errorf("failed to create sherpa-onnx voice activity detector")
	}

	log.Info().Float32("threshold", config.SileroVad.Threshold).Msg("sherpa silero vad initialized")
	return &SherpaClassifier{vad: vad}, nil
}

// Name возвращает имя бэкенда
func (c *SherpaClassifier) Name() string { return VADBackendSherpa }

// Begin сбрасывает состояние детектора и захватывает его на один прогон
func (c *SherpaClassifier) Begin() func() {
	c.mu.Lock()
	if c.vad != nil {
		c.vad.Reset()
	}
	return c.mu.Unlock
}

// IsSpeech подаёт фрейм в детектор и возвращает текущее состояние речи.
// Это сглаженное состояние сегментатора sherpa: после конца речи флаг держится
// ещё MinSilenceDuration (50 мс, 1-2 фрейма), поэтому классификация не строго
// пофреймовая.
func (c *SherpaClassifier) IsSpeech(frame []float32, sampleRate int) (bool, error) {
	if sampleRate != TargetSampleRate {
		return false, fmt.Errorf("sherpa vad expects %d Hz, got %d", TargetSampleRate, sampleRate)
	}
	if len(frame) == 0 {
		return false, fmt.Errorf("empty frame")
	}
	if c.vad == nil {
		return false, fmt.Errorf("sherpa vad is closed")
	}

	c.vad.AcceptWaveform(frame)
	speech := c.vad.IsSpeech()

	// Готовые сегменты не нужны, очищаем очередь чтобы буфер не рос
	for !c.vad.IsEmpty() {
		c.vad.Pop()
	}
	return speech, nil
}

// Close освобождает ресурсы
func (c *SherpaClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vad != nil {
		sherpa.DeleteVoiceActivityDetector(c.vad)
		c.vad = nil
	}
}
