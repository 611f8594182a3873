package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Reader читает MP3 файлы используя чистый Go (без FFmpeg)
type MP3Reader struct {
	decoder    *mp3.Decoder
	closer     io.Closer
	sampleRate int
	length     int64 // длина в байтах (signed 16-bit PCM)
}

// NewMP3Reader открывает MP3 файл для чтения
func NewMP3Reader(filePath string) (*MP3Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	r, err := newMP3Reader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

func newMP3Reader(src io.Reader) (*MP3Reader, error) {
	decoder, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	return &MP3Reader{
		decoder:    decoder,
		sampleRate: decoder.SampleRate(),
		length:     decoder.Length(),
	}, nil
}

// SampleRate возвращает частоту дискретизации
func (r *MP3Reader) SampleRate() int {
	return r.sampleRate
}

// Duration возвращает длительность в секундах
func (r *MP3Reader) Duration() float64 {
	// length в байтах, 4 байта на сэмпл (16-bit stereo)
	samples := r.length / 4
	return float64(samples) / float64(r.sampleRate)
}

// ReadAll читает весь файл, go-mp3 всегда декодирует в стерео (L, R чередуются)
func (r *MP3Reader) ReadAll() ([]float32, error) {
	size := r.length
	if size < 0 {
		// Длина неизвестна (поток без seek)
		data, err := io.ReadAll(r.decoder)
		if err != nil {
			return nil, fmt.Errorf("failed to read PCM data: %w", err)
		}
		return pcm16ToFloat32(data), nil
	}

	pcmData, err := readAllFrom(r.decoder, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}
	return pcm16ToFloat32(pcmData), nil
}

// Close закрывает файл
func (r *MP3Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// decodeMP3 декодирует MP3 поток в стерео Waveform
func decodeMP3(src io.Reader) (*Waveform, error) {
	r, err := newMP3Reader(src)
	if err != nil {
		return nil, err
	}
	samples, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return &Waveform{Samples: samples, SampleRate: r.SampleRate(), Channels: 2}, nil
}

// pcm16ToFloat32 конвертирует signed 16-bit little-endian в float32 [-1.0, 1.0]
func pcm16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out
}
