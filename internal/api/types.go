package api

import (
	"time"

	"voicesplit/ai"
	"voicesplit/models"
	"voicesplit/store"
)

// Типы сообщений протокола управления (WebSocket и gRPC stream)
const (
	MsgDiarize      = "diarize"
	MsgJobQueued    = "job_queued"
	MsgJobCompleted = "job_completed"
	MsgJobFailed    = "job_failed"

	MsgAlign     = "align"
	MsgAligned   = "aligned"
	MsgFormat    = "format"
	MsgFormatted = "formatted"

	MsgGetResults    = "get_results"
	MsgResultsList   = "results_list"
	MsgGetResult     = "get_result"
	MsgResultDetails = "result_details"
	MsgDeleteResult  = "delete_result"
	MsgResultDeleted = "result_deleted"

	MsgGetModels       = "get_models"
	MsgModelsList      = "models_list"
	MsgDownloadModel   = "download_model"
	MsgDownloadStarted = "download_started"
	MsgModelProgress   = "model_progress"

	MsgError = "error"
)

// Message сообщение протокола управления
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`

	// diarize
	AudioPath string `json:"audioPath,omitempty"`
	JobID     string `json:"jobId,omitempty"`

	// align / format
	Transcript      []ai.TranscriptSegment `json:"transcript,omitempty"`
	SpeakerSegments []ai.SpeakerSegment    `json:"speakerSegments,omitempty"`
	Alternate       bool                   `json:"alternate,omitempty"` // смена спикера по паузам, без диаризации
	Labeled         []ai.LabeledSegment    `json:"labeled,omitempty"`
	Text            string                 `json:"text,omitempty"`
	Percentages     map[string]float64     `json:"percentages,omitempty"`

	// Results
	Result  *store.Record `json:"result,omitempty"`
	Results []ResultInfo  `json:"results,omitempty"`

	// Models
	Models   []models.ModelState `json:"models,omitempty"`
	ModelID  string              `json:"modelId,omitempty"`
	Progress float64             `json:"progress,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// ResultInfo краткая информация о задаче для списков
type ResultInfo struct {
	ID           string       `json:"id"`
	CreatedAt    time.Time    `json:"createdAt"`
	AudioPath    string       `json:"audioPath"`
	Status       store.Status `json:"status"`
	SpeakerCount int          `json:"speakerCount"`
	Duration     float64      `json:"duration"`
}

func newResultInfo(rec store.Record) ResultInfo {
	info := ResultInfo{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		AudioPath: rec.AudioPath,
		Status:    rec.Status,
	}
	if rec.Result != nil {
		info.SpeakerCount = rec.Result.SpeakerCount
		info.Duration = rec.Result.TotalDuration
	}
	return info
}
