package models

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// ProgressCallback функция обратного вызова для прогресса
type ProgressCallback func(modelID string, progress float64, status ModelStatus, err error)

// Manager менеджер моделей
type Manager struct {
	modelsDir  string
	downloads  map[string]context.CancelFunc // Активные загрузки
	mu         sync.RWMutex
	onProgress ProgressCallback
}

// NewManager создаёт новый менеджер моделей
func NewManager(modelsDir string) (*Manager, error) {
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	return &Manager{
		modelsDir: modelsDir,
		downloads: make(map[string]context.CancelFunc),
	}, nil
}

// SetProgressCallback устанавливает callback для прогресса
func (m *Manager) SetProgressCallback(cb ProgressCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProgress = cb
}

// GetModelsDir возвращает путь к директории моделей
func (m *Manager) GetModelsDir() string {
	return m.modelsDir
}

// GetModelPath возвращает путь к модели
func (m *Manager) GetModelPath(modelID string) string {
	info := GetModelByID(modelID)
	if info == nil {
		return ""
	}
	return filepath.Join(m.modelsDir, modelID+".onnx")
}

// IsModelDownloaded проверяет, скачана ли модель
func (m *Manager) IsModelDownloaded(modelID string) bool {
	info := GetModelByID(modelID)
	if info == nil {
		return false
	}

	stat, err := os.Stat(m.GetModelPath(modelID))
	if err != nil {
		return false
	}
	// Оборванная загрузка даёт файл заметно меньше ожидаемого
	return stat.Size() >= info.SizeBytes/2
}

// GetAllModelsState возвращает состояние всех моделей
func (m *Manager) GetAllModelsState() []ModelState {
	m.mu.RLock()
	downloads := make(map[string]bool)
	for id := range m.downloads {
		downloads[id] = true
	}
	m.mu.RUnlock()

	states := make([]ModelState, len(Registry))
	for i, info := range Registry {
		state := ModelState{
			ModelInfo: info,
			Path:      m.GetModelPath(info.ID),
		}

		switch {
		case downloads[info.ID]:
			state.Status = ModelStatusDownloading
		case m.IsModelDownloaded(info.ID):
			state.Status = ModelStatusDownloaded
		default:
			state.Status = ModelStatusNotDownloaded
		}

		states[i] = state
	}

	return states
}

// EnsureModel возвращает путь к модели, скачивая её при отсутствии.
// Блокирует до завершения загрузки.
func (m *Manager) EnsureModel(ctx context.Context, modelID string) (string, error) {
	info := GetModelByID(modelID)
	if info == nil {
		return "", fmt.Errorf("unknown model: %s", modelID)
	}

	path := m.GetModelPath(modelID)
	if m.IsModelDownloaded(modelID) {
		return path, nil
	}

	log.Info().Str("model", modelID).Str("url", info.DownloadURL).Msg("downloading model")
	progressCb := func(progress float64) {
		m.notifyProgress(modelID, progress, ModelStatusDownloading, nil)
	}
	if err := DownloadFile(ctx, info.DownloadURL, path, info.SizeBytes, progressCb); err != nil {
		m.notifyProgress(modelID, 0, ModelStatusError, err)
		return "", fmt.Errorf("failed to download %s: %w", modelID, err)
	}

	m.notifyProgress(modelID, 100, ModelStatusDownloaded, nil)
	log.Info().Str("model", modelID).Str("path", path).Msg("model downloaded")
	return path, nil
}

// DownloadModel скачивает модель в фоне, прогресс приходит в ProgressCallback
func (m *Manager) DownloadModel(modelID string) error {
	if GetModelByID(modelID) == nil {
		return fmt.Errorf("unknown model: %s", modelID)
	}

	m.mu.Lock()
	if _, exists := m.downloads[modelID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("model %s is already downloading", modelID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.downloads[modelID] = cancel
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.downloads, modelID)
			m.mu.Unlock()
			cancel()
		}()

		if _, err := m.EnsureModel(ctx, modelID); err != nil {
			if ctx.Err() == context.Canceled {
				log.Info().Str("model", modelID).Msg("download cancelled")
				m.notifyProgress(modelID, 0, ModelStatusNotDownloaded, nil)
				m.cleanupPartialDownload(modelID)
				return
			}
			log.Error().Err(err).Str("model", modelID).Msg("download failed")
		}
	}()

	return nil
}

// CancelDownload отменяет скачивание модели
func (m *Manager) CancelDownload(modelID string) error {
	m.mu.Lock()
	cancel, exists := m.downloads[modelID]
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("model %s is not downloading", modelID)
	}

	cancel()
	return nil
}

// DeleteModel удаляет скачанную модель
func (m *Manager) DeleteModel(modelID string) error {
	if !m.IsModelDownloaded(modelID) {
		return fmt.Errorf("model %s is not downloaded", modelID)
	}

	if err := os.Remove(m.GetModelPath(modelID)); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	log.Info().Str("model", modelID).Msg("model deleted")
	return nil
}

// notifyProgress уведомляет о прогрессе
func (m *Manager) notifyProgress(modelID string, progress float64, status ModelStatus, err error) {
	m.mu.RLock()
	cb := m.onProgress
	m.mu.RUnlock()

	if cb != nil {
		cb(modelID, progress, status, err)
	}
}

// cleanupPartialDownload удаляет .part файлы, оставшиеся от прерванных загрузок
func (m *Manager) cleanupPartialDownload(modelID string) {
	modelPath := m.GetModelPath(modelID)
	if modelPath == "" {
		return
	}
	parts, _ := filepath.Glob(modelPath + ".*.part")
	for _, part := range parts {
		os.Remove(part)
	}
}
