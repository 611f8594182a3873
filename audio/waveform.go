// Package audio загружает аудиофайлы (WAV, MP3), приводит их к моно 16kHz
// и пишет WAV/MP3 для экспорта фрагментов спикеров
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// TargetSampleRate частота, с которой работает пайплайн диаризации
const TargetSampleRate = 16000

// ErrUnsupportedFormat контейнер файла не распознан
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Waveform декодированный сигнал: float32 [-1, 1], каналы чередуются
type Waveform struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration длительность в секундах
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 || w.Channels == 0 {
		return 0
	}
	return float64(len(w.Samples)/w.Channels) / float64(w.SampleRate)
}

// Mono сводит каналы в один усреднением
func (w *Waveform) Mono() []float32 {
	if w.Channels <= 1 {
		return w.Samples
	}

	frames := len(w.Samples) / w.Channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < w.Channels; c++ {
			sum += w.Samples[i*w.Channels+c]
		}
		mono[i] = sum / float32(w.Channels)
	}
	return mono
}

// Load декодирует файл по расширению, для неизвестного расширения по заголовку.
// Файл нулевой длины даёт пустой сигнал без ошибки.
func Load(path string) (*Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	if len(data) == 0 {
		log.Debug().Str("path", path).Msg("empty audio file")
		return &Waveform{SampleRate: TargetSampleRate, Channels: 1}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return decodeWAV(bytes.NewReader(data))
	case ".mp3":
		return decodeMP3(bytes.NewReader(data))
	}

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return decodeWAV(bytes.NewReader(data))
	case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return decodeMP3(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

// LoadMono16k загружает файл и приводит к моно 16kHz
func LoadMono16k(path string) ([]float32, error) {
	w, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Resample(w.Mono(), w.SampleRate, TargetSampleRate), nil
}

// Resample выполняет линейную интерполяцию для ресемплинга
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(samples) {
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		} else if srcIdx < len(samples) {
			resampled[i] = samples[srcIdx]
		}
	}

	return resampled
}

// readAllFrom читает поток целиком, io.EOF не считается ошибкой
func readAllFrom(r io.Reader, size int64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}
