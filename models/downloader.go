package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// ErrIncompleteDownload сервер отдал меньше данных, чем обещал, или пустое тело
var ErrIncompleteDownload = errors.New("incomplete download")

// ProgressFunc функция для отчёта о прогрессе (0-100)
type ProgressFunc func(progress float64)

// DownloadFile скачивает модель по URL в destPath.
// Данные пишутся в .part файл рядом с destPath и появляются под итоговым
// именем только целиком, поэтому IsModelDownloaded не видит обрывков.
func DownloadFile(ctx context.Context, url, destPath string, expectedSize int64, onProgress ProgressFunc) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// Без таймаута клиента, отмена через контекст
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	part, err := os.CreateTemp(dir, filepath.Base(destPath)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	keep := false
	defer func() {
		part.Close()
		if !keep {
			os.Remove(part.Name())
		}
	}()

	total := resp.ContentLength
	if total <= 0 {
		total = expectedSize
	}
	counter := &progressCounter{total: total, onProgress: onProgress, lastPercent: -1}

	written, err := io.Copy(part, io.TeeReader(resp.Body, counter))
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if written == 0 || (resp.ContentLength > 0 && written != resp.ContentLength) {
		return fmt.Errorf("%w: got %d of %d bytes", ErrIncompleteDownload, written, resp.ContentLength)
	}
	if err := part.Close(); err != nil {
		return fmt.Errorf("failed to flush file: %w", err)
	}

	if err := os.Rename(part.Name(), destPath); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	keep = true

	if onProgress != nil {
		onProgress(100)
	}
	log.Debug().Str("url", url).Int64("bytes", written).Msg("download completed")
	return nil
}

// progressCounter считает байты и сообщает о каждом новом целом проценте.
// Последние 100% отправляет DownloadFile после переименования.
type progressCounter struct {
	total       int64
	done        int64
	lastPercent int
	onProgress  ProgressFunc
}

func (pc *progressCounter) Write(p []byte) (int, error) {
	pc.done += int64(len(p))
	if pc.onProgress == nil || pc.total <= 0 {
		return len(p), nil
	}

	percent := int(min(pc.done*100/pc.total, 99))
	if percent > pc.lastPercent {
		pc.lastPercent = percent
		pc.onProgress(float64(percent))
	}
	return len(p), nil
}
