package ai

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// NewFrameClassifier выбирает реализацию VAD один раз при старте.
// Для "auto": Silero через ONNX Runtime, затем Silero через sherpa-onnx,
// затем энергетический детектор. Явно заданный бэкенд ошибку не маскирует.
func NewFrameClassifier(cfg DiarizationConfig) (FrameClassifier, error) {
	switch cfg.VADBackend {
	case VADBackendEnergy:
		return NewEnergyClassifier(cfg.VADAggressiveness), nil
	case VADBackendSilero:
		return NewSileroClassifier(cfg.VADModelPath, cfg.VADAggressiveness)
	case VADBackendSherpa:
		return NewSherpaClassifier(cfg.VADModelPath, cfg.VADAggressiveness)
	case "", VADBackendAuto:
	default:
		return nil, fmt.Errorf("%w: unknown vad backend %q", ErrInvalidConfig, cfg.VADBackend)
	}

	if cfg.VADModelPath != "" {
		silero, err := NewSileroClassifier(cfg.VADModelPath, cfg.VADAggressiveness)
		if err == nil {
			return silero, nil
		}
		log.Warn().Err(err).Msg("silero vad unavailable, trying sherpa-onnx")

		sherpaVAD, err := NewSherpaClassifier(cfg.VADModelPath, cfg.VADAggressiveness)
		if err == nil {
			return sherpaVAD, nil
		}
		log.Warn().Err(err).Msg("sherpa-onnx vad unavailable, using energy vad")
	}

	return NewEnergyClassifier(cfg.VADAggressiveness), nil
}

// closer классификаторы с ресурсами модели
type closer interface {
	Close()
}

// CloseClassifier освобождает ресурсы классификатора, если они есть
func CloseClassifier(c FrameClassifier) {
	if cl, ok := c.(closer); ok {
		cl.Close()
	}
}
