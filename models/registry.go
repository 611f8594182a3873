// Package models предоставляет управление моделями VAD
package models

// ModelType тип модели
type ModelType string

const (
	ModelTypeONNX ModelType = "onnx" // ONNX модели
)

// EngineType назначение модели
type EngineType string

const (
	EngineTypeVAD EngineType = "vad" // Voice Activity Detection
)

// ModelInfo информация о модели
type ModelInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        ModelType  `json:"type"`
	Engine      EngineType `json:"engine"`
	Size        string     `json:"size"`
	SizeBytes   int64      `json:"sizeBytes"`
	Description string     `json:"description"`
	Recommended bool       `json:"recommended,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
}

// ModelStatus статус модели на устройстве
type ModelStatus string

const (
	ModelStatusNotDownloaded ModelStatus = "not_downloaded"
	ModelStatusDownloading   ModelStatus = "downloading"
	ModelStatusDownloaded    ModelStatus = "downloaded"
	ModelStatusError         ModelStatus = "error"
)

// ModelState состояние модели с информацией
type ModelState struct {
	ModelInfo
	Status   ModelStatus `json:"status"`
	Progress float64     `json:"progress,omitempty"` // 0-100
	Error    string      `json:"error,omitempty"`
	Path     string      `json:"path,omitempty"` // Путь к скачанной модели
}

// DefaultVADModelID модель VAD по умолчанию
const DefaultVADModelID = "silero-vad-v5"

// Registry реестр доступных моделей
var Registry = []ModelInfo{
	{
		ID:          DefaultVADModelID,
		Name:        "Silero VAD v5",
		Type:        ModelTypeONNX,
		Engine:      EngineTypeVAD,
		Size:        "2.2 MB",
		SizeBytes:   2_327_524,
		Description: "Enterprise-grade Voice Activity Detector (Silero)",
		Recommended: true,
		DownloadURL: "https://github.com/snakers4/silero-vad/raw/master/src/silero_vad/data/silero_vad.onnx",
	},
}

// GetModelByID возвращает модель по ID
func GetModelByID(id string) *ModelInfo {
	for _, m := range Registry {
		if m.ID == id {
			return &m
		}
	}
	return nil
}

// GetModelsByEngine возвращает модели для определённого назначения
func GetModelsByEngine(engine EngineType) []ModelInfo {
	var result []ModelInfo
	for _, m := range Registry {
		if m.Engine == engine {
			result = append(result, m)
		}
	}
	return result
}
