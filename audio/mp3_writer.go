package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/braheezy/shine-mp3/pkg/mp3"
	"github.com/rs/zerolog/log"
)

// MP3Writer пишет MP3 через shine-mp3 (чистый Go, без FFmpeg)
type MP3Writer struct {
	file       *os.File
	encoder    *mp3.Encoder
	filePath   string
	sampleRate int
	channels   int

	// Буфер для накопления сэмплов (shine кодирует блоками)
	buffer []int16

	samplesWritten int64
	mu             sync.Mutex
	closed         bool
}

// NewMP3Writer создаёт новый MP3 writer
func NewMP3Writer(filePath string, sampleRate, channels int) (*MP3Writer, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("mp3 supports 1 or 2 channels, got %d", channels)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &MP3Writer{
		file:       file,
		encoder:    mp3.NewEncoder(sampleRate, channels),
		filePath:   filePath,
		sampleRate: sampleRate,
		channels:   channels,
		buffer:     make([]int16, 0, 8192),
	}, nil
}

// Write записывает float32 семплы (каналы чередуются)
func (w *MP3Writer) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	for _, s := range samples {
		w.buffer = append(w.buffer, int16(clampSample(s)*32767))
	}
	w.samplesWritten += int64(len(samples))

	// Shine кодирует блоками по 1152 сэмплов на канал для MP3 Layer III
	minBufferSize := 1152 * w.channels * 4
	if len(w.buffer) >= minBufferSize {
		full := len(w.buffer) - len(w.buffer)%(1152*w.channels)
		w.encoder.Write(w.file, w.buffer[:full])
		w.buffer = append(w.buffer[:0], w.buffer[full:]...)
	}

	return nil
}

// Duration возвращает длительность записанного
func (w *MP3Writer) Duration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	frames := w.samplesWritten / int64(w.channels)
	return time.Duration(frames) * time.Second / time.Duration(w.sampleRate)
}

// Close дописывает остаток буфера и закрывает файл
func (w *MP3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.buffer) > 0 {
		// Дополняем до размера блока нулями
		blockSize := 1152 * w.channels
		for len(w.buffer)%blockSize != 0 {
			w.buffer = append(w.buffer, 0)
		}
		w.encoder.Write(w.file, w.buffer)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	frames := w.samplesWritten / int64(w.channels)
	log.Debug().Str("path", w.filePath).Int64("frames", frames).Msg("mp3 written")
	return nil
}

// FilePath возвращает путь к файлу
func (w *MP3Writer) FilePath() string {
	return w.filePath
}
