// Package ai содержит локальный пайплайн диаризации: VAD, извлечение признаков,
// кластеризацию спикеров, сглаживание и сопоставление с транскрипцией
package ai

import (
	"errors"
	"fmt"
)

// DefaultSpeaker метка, которая назначается, когда спикера определить не удалось
const DefaultSpeaker = "SPEAKER_0"

var (
	// ErrInput входные данные нечитаемы (файл отсутствует, повреждён, неверная структура)
	ErrInput = errors.New("invalid input")
	// ErrInvalidConfig параметры диаризации вне допустимого диапазона
	ErrInvalidConfig = errors.New("invalid diarization config")
)

// SpeechInterval участок речи в секундах, End > Start
type SpeechInterval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration длительность интервала в секундах
func (iv SpeechInterval) Duration() float64 {
	return iv.End - iv.Start
}

// SpeechFeatures интервал речи вместе с его вектором признаков.
// Одна запись на интервал, порядок совпадает с порядком интервалов.
type SpeechFeatures struct {
	Interval SpeechInterval
	Vector   []float64
}

// SpeakerSegment сегмент речи с меткой спикера
type SpeakerSegment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Speaker  string  `json:"speaker"`
	Duration float64 `json:"duration"`
}

// TranscriptSegment сегмент внешней транскрипции (Whisper и т.п.)
type TranscriptSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"` // заполняется только сервисами с собственной диаризацией
}

// LabeledSegment сегмент транскрипции с назначенным спикером.
// Start/End всегда берутся из TranscriptSegment.
type LabeledSegment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Speaker  string  `json:"speaker"`
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

// SpeakerLabel возвращает метку спикера для индекса кластера
func SpeakerLabel(cluster int) string {
	return fmt.Sprintf("SPEAKER_%d", cluster)
}

// WarningKind тип некритичного предупреждения
type WarningKind string

const (
	WarningNoSpeech        WarningKind = "no_speech"
	WarningTooFewIntervals WarningKind = "too_few_intervals"
	WarningSingleSpeaker   WarningKind = "single_speaker_collapse"
	WarningFeatureFallback WarningKind = "feature_fallback"
)

// Warning некритичное состояние: результат валиден, но минимален
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}
