package ai

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// FrameClassifier бинарный детектор речи для одного фрейма.
// Ошибка означает, что фрейм отвергнут (например, неверный размер).
type FrameClassifier interface {
	IsSpeech(frame []float32, sampleRate int) (bool, error)
	Name() string
}

// StatefulClassifier классификатор с внутренним состоянием (рекуррентные модели).
// Begin сбрасывает состояние и захватывает классификатор на время одного прогона,
// возвращаемая функция освобождает его.
type StatefulClassifier interface {
	FrameClassifier
	Begin() (release func())
}

// Пороги энергетического детектора по уровню агрессивности 0-3
var (
	energyRMSThresholds = [4]float64{0.005, 0.01, 0.02, 0.03}
	energyZCRCeilings   = [4]float64{1.0, 0.5, 0.35, 0.25}
)

// EnergyClassifier детектор речи на основе RMS энергии и zero-crossing rate.
// Не хранит состояния между фреймами.
type EnergyClassifier struct {
	rmsThreshold float64
	zcrCeiling   float64
}

// NewEnergyClassifier создаёт детектор для уровня агрессивности 0-3
func NewEnergyClassifier(aggressiveness int) *EnergyClassifier {
	if aggressiveness < 0 {
		aggressiveness = 0
	}
	if aggressiveness > 3 {
		aggressiveness = 3
	}
	return &EnergyClassifier{
		rmsThreshold: energyRMSThresholds[aggressiveness],
		zcrCeiling:   energyZCRCeilings[aggressiveness],
	}
}

// Name возвращает имя бэкенда
func (c *EnergyClassifier) Name() string { return VADBackendEnergy }

// IsSpeech классифицирует фрейм. Принимаются только фреймы 10, 20 или 30 мс.
func (c *EnergyClassifier) IsSpeech(frame []float32, sampleRate int) (bool, error) {
	if sampleRate <= 0 {
		return false, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	switch len(frame) * 1000 {
	case sampleRate * 10, sampleRate * 20, sampleRate * 30:
	default:
		return false, fmt.Errorf("invalid frame size %d for %d Hz", len(frame), sampleRate)
	}

	if calculateWindowEnergy(frame) < c.rmsThreshold {
		return false, nil
	}
	return zeroCrossingRate(frame) <= c.zcrCeiling, nil
}

// calculateWindowEnergy вычисляет RMS энергию окна
func calculateWindowEnergy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// zeroCrossingRate доля соседних пар сэмплов со сменой знака
func zeroCrossingRate(samples []float32) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

// VoiceActivitySegmenter режет моно сигнал на участки речи
type VoiceActivitySegmenter struct {
	classifier        FrameClassifier
	sampleRate        int
	frameMs           int
	minSpeechDuration float64
	mergeGap          float64
}

// NewVoiceActivitySegmenter создаёт сегментатор с заданным классификатором фреймов
func NewVoiceActivitySegmenter(classifier FrameClassifier, cfg DiarizationConfig) *VoiceActivitySegmenter {
	frameMs := cfg.FrameMs
	if frameMs <= 0 {
		frameMs = 30
	}
	return &VoiceActivitySegmenter{
		classifier:        classifier,
		sampleRate:        TargetSampleRate,
		frameMs:           frameMs,
		minSpeechDuration: cfg.MinSpeechDuration,
		mergeGap:          cfg.MergeGap,
	}
}

// Segment возвращает упорядоченные непересекающиеся интервалы речи.
// samples - моно 16kHz. Пустой вход или тишина дают пустой список.
func (s *VoiceActivitySegmenter) Segment(samples []float32) []SpeechInterval {
	frameLen := s.sampleRate * s.frameMs / 1000
	if len(samples) < frameLen || frameLen == 0 {
		return []SpeechInterval{}
	}

	if st, ok := s.classifier.(StatefulClassifier); ok {
		release := st.Begin()
		defer release()
	}

	// Последовательные речевые фреймы склеиваются в сырые интервалы
	var raw []SpeechInterval
	runStart := -1
	frame := 0
	rejected := 0
	flush := func(endFrame int) {
		if runStart < 0 {
			return
		}
		raw = append(raw, SpeechInterval{
			Start: float64(runStart*frameLen) / float64(s.sampleRate),
			End:   float64(endFrame*frameLen) / float64(s.sampleRate),
		})
		runStart = -1
	}

	for i := 0; i+frameLen <= len(samples); i += frameLen {
		speech, err := s.classifier.IsSpeech(samples[i:i+frameLen], s.sampleRate)
		if err != nil {
			rejected++
			speech = false
		}
		if speech {
			if runStart < 0 {
				runStart = frame
			}
		} else {
			flush(frame)
		}
		frame++
	}
	flush(frame)

	if rejected > 0 {
		log.Debug().Int("frames", rejected).Str("classifier", s.classifier.Name()).Msg("vad: frames rejected, treated as non-speech")
	}

	merged := mergeIntervals(raw, s.mergeGap, s.minSpeechDuration)
	log.Debug().Int("raw", len(raw)).Int("merged", len(merged)).Msg("vad: speech intervals")
	return merged
}

// mergeIntervals склеивает интервалы с паузой меньше gap и отбрасывает короче minDuration
func mergeIntervals(raw []SpeechInterval, gap, minDuration float64) []SpeechInterval {
	merged := []SpeechInterval{}
	if len(raw) == 0 {
		return merged
	}

	current := raw[0]
	for _, next := range raw[1:] {
		if next.Start-current.End < gap {
			current.End = next.End
			continue
		}
		if current.Duration() >= minDuration {
			merged = append(merged, current)
		}
		current = next
	}
	if current.Duration() >= minDuration {
		merged = append(merged, current)
	}
	return merged
}
