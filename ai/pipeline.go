package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Режимы результата пайплайна
const (
	ModeLocal       = "local"
	ModeLocalFailed = "local_failed"
)

// PipelineResult результат обработки файла: сегменты спикеров и, если
// передана транскрипция, размеченный текст
type PipelineResult struct {
	Mode            string             `json:"mode" yaml:"mode"`
	SpeakerSegments []SpeakerSegment   `json:"speakerSegments" yaml:"speaker_segments"`
	Labeled         []LabeledSegment   `json:"labeled,omitempty" yaml:"labeled,omitempty"`
	LabeledText     string             `json:"labeledText" yaml:"labeled_text"`
	Percentages     map[string]float64 `json:"percentages,omitempty" yaml:"percentages,omitempty"`
	Stats           []SpeakerStat      `json:"stats,omitempty" yaml:"stats,omitempty"`
	SpeakerCount    int                `json:"speakerCount" yaml:"speaker_count"`
	TotalDuration   float64            `json:"totalDuration" yaml:"total_duration"`
	Warnings        []Warning          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error           string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// FailedResult результат при ошибке диаризации, отличимый от успешного
// результата с одним спикером
func FailedResult(err error) *PipelineResult {
	return &PipelineResult{
		Mode:            ModeLocalFailed,
		SpeakerSegments: []SpeakerSegment{},
		LabeledText:     fmt.Sprintf("diarization failed: %v", err),
		Error:           err.Error(),
	}
}

// AudioPipeline оркестрирует диаризацию файла и сопоставление с транскрипцией
type AudioPipeline struct {
	diarizer *Diarizer
}

// NewAudioPipeline создаёт новый пайплайн обработки аудио
func NewAudioPipeline(diarizer *Diarizer) (*AudioPipeline, error) {
	if diarizer == nil {
		return nil, fmt.Errorf("diarizer is required")
	}
	return &AudioPipeline{diarizer: diarizer}, nil
}

// Diarizer возвращает диаризатор пайплайна
func (p *AudioPipeline) Diarizer() *Diarizer {
	return p.diarizer
}

// Process диаризует файл и сопоставляет с транскрипцией (может быть пустой).
// При ошибке возвращает FailedResult вместе с ошибкой.
// Контекст проверяется только между этапами.
func (p *AudioPipeline) Process(ctx context.Context, path string, transcript []TranscriptSegment) (*PipelineResult, error) {
	if err := ctx.Err(); err != nil {
		return FailedResult(err), err
	}

	diarization, err := p.diarizer.DiarizeFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("diarization failed")
		return FailedResult(err), err
	}

	if err := ctx.Err(); err != nil {
		return FailedResult(err), err
	}

	return BuildResult(diarization, transcript), nil
}

// BuildResult собирает результат из диаризации и транскрипции
func BuildResult(diarization *DiarizationResult, transcript []TranscriptSegment) *PipelineResult {
	result := &PipelineResult{
		Mode:            ModeLocal,
		SpeakerSegments: diarization.Segments,
		SpeakerCount:    diarization.NumSpeakers,
		TotalDuration:   diarization.Duration,
		Warnings:        diarization.Warnings,
		Stats:           SpeakerStats(diarization.Segments),
	}

	if len(transcript) == 0 {
		result.LabeledText = FormatSpeakerTimeline(diarization.Segments)
		return result
	}

	result.Labeled = AlignTranscript(transcript, diarization.Segments)
	result.LabeledText = FormatLabeledTranscript(result.Labeled)
	result.Percentages = SpeakerTimePercentages(result.Labeled)
	return result
}
