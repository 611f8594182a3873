// Package store хранит результаты диаризации в JSON файлах
package store

import (
	"errors"
	"time"

	"voicesplit/ai"
)

// ErrNotFound запись с таким ID отсутствует
var ErrNotFound = errors.New("record not found")

// Status состояние задачи диаризации
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record задача диаризации вместе с результатом
type Record struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
	AudioPath string    `json:"audioPath" yaml:"audio_path"`
	Status    Status    `json:"status" yaml:"status"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`

	Transcript []ai.TranscriptSegment `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	Result     *ai.PipelineResult     `json:"result,omitempty" yaml:"result,omitempty"`

	// Пути MP3 фрагментов по меткам спикеров
	SpeakerSamples map[string]string `json:"speakerSamples,omitempty" yaml:"speaker_samples,omitempty"`
}

// Done задача завершена (успешно или с ошибкой)
func (r *Record) Done() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
