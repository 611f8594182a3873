package ai

import "fmt"

// VAD бэкенды
const (
	VADBackendAuto   = "auto"
	VADBackendEnergy = "energy"
	VADBackendSilero = "silero"
	VADBackendSherpa = "sherpa"
)

// DiarizationConfig параметры одного запуска диаризации.
// Передаётся явно в каждый вызов, глобального состояния нет.
type DiarizationConfig struct {
	VADAggressiveness int     `mapstructure:"vad_aggressiveness" json:"vadAggressiveness" yaml:"vad_aggressiveness"` // 0-3, больше = строже
	FrameMs           int     `mapstructure:"frame_ms" json:"frameMs" yaml:"frame_ms"`                               // 10, 20 или 30
	MinSpeechDuration float64 `mapstructure:"min_speech_duration" json:"minSpeechDuration" yaml:"min_speech_duration"` // сек
	MergeGap          float64 `mapstructure:"merge_gap" json:"mergeGap" yaml:"merge_gap"`                            // сек

	NumSpeakers    int    `mapstructure:"num_speakers" json:"numSpeakers" yaml:"num_speakers"` // 0 = автоопределение
	MaxSpeakers    int    `mapstructure:"max_speakers" json:"maxSpeakers" yaml:"max_speakers"`
	MinClusterSize int    `mapstructure:"min_cluster_size" json:"minClusterSize" yaml:"min_cluster_size"`
	Seed           uint64 `mapstructure:"seed" json:"seed" yaml:"seed"`

	VADBackend   string `mapstructure:"vad_backend" json:"vadBackend" yaml:"vad_backend"`
	VADModelPath string `mapstructure:"vad_model_path" json:"vadModelPath,omitempty" yaml:"vad_model_path"`
}

// DefaultDiarizationConfig возвращает конфигурацию по умолчанию
func DefaultDiarizationConfig() DiarizationConfig {
	return DiarizationConfig{
		VADAggressiveness: 2,
		FrameMs:           30,
		MinSpeechDuration: 0.5,
		MergeGap:          0.3,
		NumSpeakers:       0,
		MaxSpeakers:       3,
		MinClusterSize:    3,
		Seed:              42,
		VADBackend:        VADBackendAuto,
	}
}

// Validate проверяет диапазоны параметров
func (c DiarizationConfig) Validate() error {
	if c.VADAggressiveness < 0 || c.VADAggressiveness > 3 {
		return fmt.Errorf("%w: vad aggressiveness must be 0-3, got %d", ErrInvalidConfig, c.VADAggressiveness)
	}
	switch c.FrameMs {
	case 10, 20, 30:
	default:
		return fmt.Errorf("%w: frame duration must be 10, 20 or 30 ms, got %d", ErrInvalidConfig, c.FrameMs)
	}
	if c.MinSpeechDuration < 0 {
		return fmt.Errorf("%w: negative min speech duration", ErrInvalidConfig)
	}
	if c.MergeGap < 0 {
		return fmt.Errorf("%w: negative merge gap", ErrInvalidConfig)
	}
	if c.MaxSpeakers < 1 {
		return fmt.Errorf("%w: max speakers must be >= 1, got %d", ErrInvalidConfig, c.MaxSpeakers)
	}
	if c.NumSpeakers < 0 {
		return fmt.Errorf("%w: negative speaker count", ErrInvalidConfig)
	}
	if c.MinClusterSize < 1 {
		return fmt.Errorf("%w: min cluster size must be >= 1, got %d", ErrInvalidConfig, c.MinClusterSize)
	}
	switch c.VADBackend {
	case "", VADBackendAuto, VADBackendEnergy, VADBackendSilero, VADBackendSherpa:
	default:
		return fmt.Errorf("%w: unknown vad backend %q", ErrInvalidConfig, c.VADBackend)
	}
	return nil
}
