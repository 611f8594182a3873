package models

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withTestRegistry подменяет реестр на модель, которая отдаётся тестовым сервером
func withTestRegistry(t *testing.T, url string, size int64) {
	t.Helper()
	orig := Registry
	Registry = []ModelInfo{{
		ID:          "test-vad",
		Name:        "Test VAD",
		Type:        ModelTypeONNX,
		Engine:      EngineTypeVAD,
		SizeBytes:   size,
		DownloadURL: url,
	}}
	t.Cleanup(func() { Registry = orig })
}

func TestDownloadFile(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "sub", "model.onnx")
	var reports []float64
	err := DownloadFile(context.Background(), srv.URL, dest, 0, func(p float64) { reports = append(reports, p) })
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	require.NotEmpty(t, reports)
	assert.Equal(t, 100.0, reports[len(reports)-1])
	assert.IsIncreasing(t, reports)

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "partial file must be renamed")
}

func TestDownloadFileIncomplete(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"empty body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}},
		{"truncated body", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "8192")
			w.Write(make([]byte, 1024))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			dir := t.TempDir()
			err := DownloadFile(context.Background(), srv.URL, filepath.Join(dir, "model.onnx"), 0, nil)
			require.Error(t, err)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries, "no partial or final file may remain")
		})
	}
}

func TestDownloadFileCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "model.onnx")
	err := DownloadFile(ctx, srv.URL, dest, 0, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dest)
}

func TestDownloadFileBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.onnx")
	err := DownloadFile(context.Background(), srv.URL, dest, 0, nil)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnsureModel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()
	withTestRegistry(t, srv.URL, 2048)

	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	var statuses []ModelStatus
	m.SetProgressCallback(func(id string, progress float64, status ModelStatus, err error) {
		statuses = append(statuses, status)
	})

	assert.False(t, m.IsModelDownloaded("test-vad"))

	path, err := m.EnsureModel(context.Background(), "test-vad")
	require.NoError(t, err)
	assert.Equal(t, m.GetModelPath("test-vad"), path)
	assert.True(t, m.IsModelDownloaded("test-vad"))
	assert.Contains(t, statuses, ModelStatusDownloaded)

	// Повторный вызов не скачивает заново
	_, err = m.EnsureModel(context.Background(), "test-vad")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	states := m.GetAllModelsState()
	require.Len(t, states, 1)
	assert.Equal(t, ModelStatusDownloaded, states[0].Status)

	require.NoError(t, m.DeleteModel("test-vad"))
	assert.False(t, m.IsModelDownloaded("test-vad"))
}

func TestEnsureModelUnknown(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.EnsureModel(context.Background(), "no-such-model")
	assert.Error(t, err)
	assert.Empty(t, m.GetModelPath("no-such-model"))
}

func TestRegistryHasDefaultVAD(t *testing.T) {
	info := GetModelByID(DefaultVADModelID)
	require.NotNil(t, info)
	assert.Equal(t, EngineTypeVAD, info.Engine)
	assert.Len(t, GetModelsByEngine(EngineTypeVAD), 1)
}
