package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"voicesplit/ai"
)

// Store хранилище результатов: один JSON файл на задачу в <dataDir>/results
type Store struct {
	dir     string
	records map[string]*Record
	mu      sync.RWMutex
}

// NewStore создаёт хранилище и загружает существующие записи
func NewStore(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, "results")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	s := &Store{
		dir:     dir,
		records: make(map[string]*Record),
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	log.Info().Str("dir", dir).Int("records", len(s.records)).Msg("result store initialized")
	return s, nil
}

// load читает все записи из директории, повреждённые файлы пропускаются
func (s *Store) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read results directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to read record")
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to parse record")
			continue
		}
		if rec.ID == "" {
			continue
		}
		s.records[rec.ID] = &rec
	}
	return nil
}

// Create регистрирует новую задачу в статусе queued
func (s *Store) Create(audioPath string, transcript []ai.TranscriptSegment) (*Record, error) {
	now := time.Now()
	rec := &Record{
		ID:         uuid.New().String(),
		CreatedAt:  now,
		UpdatedAt:  now,
		AudioPath:  audioPath,
		Status:     StatusQueued,
		Transcript: transcript,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveUnsafe(rec); err != nil {
		return nil, err
	}
	s.records[rec.ID] = rec

	copied := *rec
	return &copied, nil
}

// Save сохраняет запись (создаёт или перезаписывает)
func (s *Store) Save(rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	stored.UpdatedAt = time.Now()
	if err := s.saveUnsafe(&stored); err != nil {
		return err
	}
	s.records[stored.ID] = &stored
	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

// saveUnsafe пишет запись атомарно (вызывать только при удержании lock)
func (s *Store) saveUnsafe(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	path := s.recordPath(rec.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Cleanup
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get возвращает копию записи по ID
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *rec
	return &copied, nil
}

// List возвращает все записи, новые первыми
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		result = append(result, *rec)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Delete удаляет запись и её фрагменты спикеров
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	os.RemoveAll(s.SamplesDir(id))
	delete(s.records, id)

	log.Info().Str("id", id).Msg("record deleted")
	return nil
}

// SamplesDir директория MP3 фрагментов спикеров для задачи
func (s *Store) SamplesDir(id string) string {
	return filepath.Join(s.dir, id)
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}
