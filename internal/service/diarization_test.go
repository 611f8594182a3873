package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicesplit/ai"
	"voicesplit/audio"
	"voicesplit/store"
)

func newTestService(t *testing.T, workers, queue int) *DiarizationService {
	t.Helper()

	cfg := ai.DefaultDiarizationConfig()
	cfg.VADBackend = ai.VADBackendEnergy
	cfg.NumSpeakers = 2
	cfg.MinClusterSize = 1

	d, err := ai.NewDiarizer(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	pipeline, err := ai.NewAudioPipeline(d)
	require.NoError(t, err)

	st, err := store.NewStore(t.TempDir())
	require.NoError(t, err)

	return NewDiarizationService(st, pipeline, workers, queue)
}

func writeDialogue(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialogue.wav")
	require.NoError(t, audio.WriteWAV(path, audio.TwoToneDialogue(audio.TargetSampleRate), audio.TargetSampleRate, 1))
	return path
}

func waitDone(t *testing.T, done <-chan *store.Record) *store.Record {
	t.Helper()
	select {
	case rec := <-done:
		return rec
	case <-time.After(30 * time.Second):
		t.Fatal("job did not finish in time")
		return nil
	}
}

func TestSubmitCompletes(t *testing.T) {
	svc := newTestService(t, 2, 4)
	done := make(chan *store.Record, 1)
	svc.OnJobDone = func(rec *store.Record) { done <- rec }

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	id, err := svc.Submit(DiarizeRequest{
		AudioPath: writeDialogue(t),
		Transcript: []ai.TranscriptSegment{
			{Start: 0.5, End: 4.5, Text: "low"},
			{Start: 6.5, End: 10.5, Text: "high"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec := waitDone(t, done)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, store.StatusCompleted, rec.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, ai.ModeLocal, rec.Result.Mode)
	assert.Equal(t, 2, rec.Result.SpeakerCount)
	require.Len(t, rec.Result.Labeled, 2)
	assert.NotEqual(t, rec.Result.Labeled[0].Speaker, rec.Result.Labeled[1].Speaker)

	// По одному MP3 на спикера
	assert.Len(t, rec.SpeakerSamples, 2)
	for _, path := range rec.SpeakerSamples {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	stored, err := svc.Store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, stored.Status)
}

func TestSubmitMissingFileFails(t *testing.T) {
	svc := newTestService(t, 1, 1)
	done := make(chan *store.Record, 1)
	svc.OnJobDone = func(rec *store.Record) { done <- rec }

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	_, err := svc.Submit(DiarizeRequest{AudioPath: filepath.Join(t.TempDir(), "missing.wav")})
	require.NoError(t, err)

	rec := waitDone(t, done)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.Error)
	require.NotNil(t, rec.Result)
	assert.Equal(t, ai.ModeLocalFailed, rec.Result.Mode)
	assert.Empty(t, rec.SpeakerSamples)
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(t, 1, 1)

	_, err := svc.Submit(DiarizeRequest{AudioPath: "a.wav"})
	assert.True(t, errors.Is(err, ErrNotRunning))

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	_, err = svc.Submit(DiarizeRequest{})
	assert.True(t, errors.Is(err, ai.ErrInput))

	assert.Error(t, svc.Start(context.Background()), "double start must fail")
}

func TestSubmitQueueFull(t *testing.T) {
	svc := newTestService(t, 1, 1)

	// Воркеры не запущены, но сервис помечен как работающий: очередь не разбирается
	svc.running = true
	_, err := svc.Submit(DiarizeRequest{AudioPath: "a.wav"})
	require.NoError(t, err)

	_, err = svc.Submit(DiarizeRequest{AudioPath: "b.wav"})
	assert.True(t, errors.Is(err, ErrQueueFull))
	// Отклонённая задача не остаётся в хранилище
	assert.Len(t, svc.Store.List(), 1)
}

func TestStopIdempotent(t *testing.T) {
	svc := newTestService(t, 2, 2)
	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
	svc.Stop()

	_, err := svc.Submit(DiarizeRequest{AudioPath: "a.wav"})
	assert.True(t, errors.Is(err, ErrNotRunning))
}
