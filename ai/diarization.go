package ai

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"voicesplit/audio"
)

// TargetSampleRate частота сигнала внутри пайплайна
const TargetSampleRate = audio.TargetSampleRate

// DiarizationResult результат диаризации одного сигнала
type DiarizationResult struct {
	Intervals   []SpeechInterval `json:"intervals"`
	Segments    []SpeakerSegment `json:"segments"`
	NumSpeakers int              `json:"numSpeakers"`
	Duration    float64          `json:"duration"` // длительность сигнала, сек
	Warnings    []Warning        `json:"warnings,omitempty"`
}

// Diarizer выполняет VAD, извлечение признаков, кластеризацию и сглаживание.
// Не хранит состояния между вызовами, независимые файлы можно
// обрабатывать параллельно.
type Diarizer struct {
	config     DiarizationConfig
	classifier FrameClassifier
	segmenter  *VoiceActivitySegmenter
	extractor  *FeatureExtractor
	clusterer  *SpeakerClusterer
}

// NewDiarizer создаёт диаризатор. Если classifier == nil, реализация VAD
// выбирается по конфигурации.
func NewDiarizer(cfg DiarizationConfig, classifier FrameClassifier) (*Diarizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if classifier == nil {
		var err error
		classifier, err = NewFrameClassifier(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create vad: %w", err)
		}
	}
	log.Info().Str("vad", classifier.Name()).Int("aggressiveness", cfg.VADAggressiveness).Msg("diarizer initialized")

	return &Diarizer{
		config:     cfg,
		classifier: classifier,
		segmenter:  NewVoiceActivitySegmenter(classifier, cfg),
		extractor:  NewFeatureExtractor(),
		clusterer:  NewSpeakerClusterer(cfg),
	}, nil
}

// Config возвращает конфигурацию диаризатора
func (d *Diarizer) Config() DiarizationConfig {
	return d.config
}

// VADName имя выбранной реализации VAD
func (d *Diarizer) VADName() string {
	return d.classifier.Name()
}

// SegmentSpeakers читает файл и возвращает сегменты спикеров.
// Тишина или пустой файл дают пустой список без ошибки.
func (d *Diarizer) SegmentSpeakers(path string) ([]SpeakerSegment, error) {
	result, err := d.DiarizeFile(path)
	if err != nil {
		return nil, err
	}
	return result.Segments, nil
}

// DiarizeFile читает файл, приводит к моно 16kHz и выполняет диаризацию
func (d *Diarizer) DiarizeFile(path string) (*DiarizationResult, error) {
	samples, err := audio.LoadMono16k(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	return d.Diarize(samples)
}

// Diarize выполняет диаризацию моно 16kHz сигнала
func (d *Diarizer) Diarize(samples []float32) (*DiarizationResult, error) {
	result := &DiarizationResult{
		Intervals: []SpeechInterval{},
		Segments:  []SpeakerSegment{},
		Duration:  float64(len(samples)) / float64(TargetSampleRate),
	}

	// 1. VAD
	intervals := d.segmenter.Segment(samples)
	result.Intervals = intervals
	if len(intervals) == 0 {
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningNoSpeech,
			Message: "no speech detected",
		})
		log.Info().Float64("duration", result.Duration).Msg("diarization: no speech detected")
		return result, nil
	}

	// 2. Признаки, по одной записи на интервал
	features, fallbacks := d.extractor.Extract(samples, intervals)
	if len(features) != len(intervals) {
		return nil, fmt.Errorf("feature rows %d do not match intervals %d", len(features), len(intervals))
	}
	if fallbacks > 0 {
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningFeatureFallback,
			Message: fmt.Sprintf("%d of %d intervals used zero feature vectors", fallbacks, len(intervals)),
		})
	}
	if len(intervals) < 2 {
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningTooFewIntervals,
			Message: fmt.Sprintf("only %d speech interval, labeled as a single speaker", len(intervals)),
		})
	}

	// 3. Кластеризация
	clusters := d.clusterer.Cluster(features)
	switch {
	case clusters.Collapsed:
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningSingleSpeaker,
			Message: clusters.Reason,
		})
	case clusters.NumClusters == 1 && clusters.Reason != "":
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningTooFewIntervals,
			Message: clusters.Reason,
		})
	}

	// 4. Сегменты спикеров и сглаживание
	segments := make([]SpeakerSegment, len(features))
	for i, f := range features {
		segments[i] = SpeakerSegment{
			Start:    f.Interval.Start,
			End:      f.Interval.End,
			Speaker:  SpeakerLabel(clusters.Labels[i]),
			Duration: f.Interval.Duration(),
		}
	}
	result.Segments = SmoothSegments(segments)
	result.NumSpeakers = countSpeakers(result.Segments)

	log.Info().
		Int("intervals", len(intervals)).
		Int("clusters", clusters.NumClusters).
		Int("segments", len(result.Segments)).
		Int("speakers", result.NumSpeakers).
		Msg("diarization completed")

	return result, nil
}

// Close освобождает ресурсы VAD
func (d *Diarizer) Close() {
	CloseClassifier(d.classifier)
}

// countSpeakers подсчитывает уникальных спикеров
func countSpeakers(segments []SpeakerSegment) int {
	speakers := make(map[string]bool)
	for _, seg := range segments {
		speakers[seg.Speaker] = true
	}
	return len(speakers)
}
