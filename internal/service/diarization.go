package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"voicesplit/ai"
	"voicesplit/audio"
	"voicesplit/store"
)

var (
	// ErrQueueFull очередь задач заполнена
	ErrQueueFull = errors.New("job queue is full")
	// ErrNotRunning сервис не запущен или уже остановлен
	ErrNotRunning = errors.New("diarization service is not running")
)

// DiarizeRequest запрос на диаризацию файла
type DiarizeRequest struct {
	AudioPath  string                 `json:"audioPath"`
	Transcript []ai.TranscriptSegment `json:"transcript,omitempty"`
}

// DiarizationService обрабатывает задачи диаризации в пуле воркеров.
// Результаты сохраняются в Store, MP3 фрагменты спикеров пишутся рядом.
type DiarizationService struct {
	Store    *store.Store
	Pipeline *ai.AudioPipeline

	Workers       int
	SampleSeconds float64 // длина фрагмента спикера, 0 = не экспортировать

	// Callback по завершении задачи (успешной или нет)
	OnJobDone func(rec *store.Record)

	jobs    chan string
	wg      sync.WaitGroup
	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func NewDiarizationService(st *store.Store, pipeline *ai.AudioPipeline, workers, queueSize int) *DiarizationService {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &DiarizationService{
		Store:         st,
		Pipeline:      pipeline,
		Workers:       workers,
		SampleSeconds: 10,
		jobs:          make(chan string, queueSize),
	}
}

// Start запускает воркеров. Задачи, оставшиеся в статусе queued после
// предыдущего запуска, ставятся в очередь повторно.
func (s *DiarizationService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("diarization service already started")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for i := 0; i < s.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	for _, rec := range s.Store.List() {
		if rec.Status != store.StatusQueued && rec.Status != store.StatusProcessing {
			continue
		}
		select {
		case s.jobs <- rec.ID:
			log.Info().Str("id", rec.ID).Msg("requeued pending job")
		default:
			log.Warn().Str("id", rec.ID).Msg("queue full, pending job left unprocessed")
		}
	}

	log.Info().Int("workers", s.Workers).Int("queue", cap(s.jobs)).Msg("diarization service started")
	return nil
}

// Submit регистрирует задачу и ставит её в очередь. Возвращает ID сразу,
// результат приходит через OnJobDone или Store.
func (s *DiarizationService) Submit(req DiarizeRequest) (string, error) {
	if req.AudioPath == "" {
		return "", fmt.Errorf("%w: audio path is required", ai.ErrInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return "", ErrNotRunning
	}

	rec, err := s.Store.Create(req.AudioPath, req.Transcript)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	select {
	case s.jobs <- rec.ID:
	default:
		if delErr := s.Store.Delete(rec.ID); delErr != nil {
			log.Warn().Err(delErr).Str("id", rec.ID).Msg("failed to drop rejected job")
		}
		return "", ErrQueueFull
	}

	log.Info().Str("id", rec.ID).Str("path", req.AudioPath).Msg("job queued")
	return rec.ID, nil
}

// Stop останавливает воркеров и ждёт завершения текущих задач
func (s *DiarizationService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	log.Info().Msg("diarization service stopped")
}

func (s *DiarizationService) worker(ctx context.Context, n int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("worker", n).Msg("worker stopped")
			return
		case id := <-s.jobs:
			s.process(ctx, id)
		}
	}
}

// process выполняет одну задачу и обновляет запись
func (s *DiarizationService) process(ctx context.Context, id string) {
	rec, err := s.Store.Get(id)
	if err != nil {
		// Задачу удалили, пока она ждала в очереди
		log.Debug().Str("id", id).Msg("job vanished before processing")
		return
	}

	rec.Status = store.StatusProcessing
	if err := s.Store.Save(rec); err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to update job")
	}

	result, err := s.Pipeline.Process(ctx, rec.AudioPath, rec.Transcript)
	if err != nil && ctx.Err() != nil {
		// Остановка сервиса: задача вернётся в очередь при следующем Start
		rec.Status = store.StatusQueued
		if err := s.Store.Save(rec); err != nil {
			log.Error().Err(err).Str("id", id).Msg("failed to requeue job")
		}
		return
	}

	rec.Result = result
	if err != nil {
		rec.Status = store.StatusFailed
		rec.Error = err.Error()
		log.Warn().Err(err).Str("id", id).Msg("job failed")
	} else {
		rec.Status = store.StatusCompleted
		rec.Error = ""
		if s.SampleSeconds > 0 && len(result.SpeakerSegments) > 0 {
			samples, err := s.exportSamples(id, rec.AudioPath, result.SpeakerSegments)
			if err != nil {
				// Фрагменты необязательны, задача остаётся успешной
				log.Warn().Err(err).Str("id", id).Msg("failed to export speaker samples")
			}
			rec.SpeakerSamples = samples
		}
		log.Info().Str("id", id).Int("speakers", result.SpeakerCount).Msg("job completed")
	}

	if err := s.Store.Save(rec); err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to save job result")
	}

	if s.OnJobDone != nil {
		s.OnJobDone(rec)
	}
}

// exportSamples пишет по одному MP3 фрагменту на спикера
func (s *DiarizationService) exportSamples(id, audioPath string, segments []ai.SpeakerSegment) (map[string]string, error) {
	samples, err := audio.LoadMono16k(audioPath)
	if err != nil {
		return nil, err
	}

	clips := make([]audio.Clip, len(segments))
	for i, seg := range segments {
		clips[i] = audio.Clip{Label: seg.Speaker, Start: seg.Start, End: seg.End}
	}

	return audio.ExportSpeakerSamples(s.Store.SamplesDir(id), samples, audio.TargetSampleRate, clips, s.SampleSeconds)
}
