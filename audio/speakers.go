package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

// ExportSampleRate частота MP3 фрагментов спикеров (MPEG-1 Layer III)
const ExportSampleRate = 44100

// Clip фрагмент сигнала, принадлежащий спикеру
type Clip struct {
	Label string
	Start float64 // сек
	End   float64 // сек
}

// ExportSpeakerSamples пишет для каждого спикера MP3 с первыми maxSeconds его речи.
// samples - моно сигнал. Возвращает пути файлов по меткам спикеров.
func ExportSpeakerSamples(dir string, samples []float32, sampleRate int, clips []Clip, maxSeconds float64) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create samples dir: %w", err)
	}

	ordered := append([]Clip(nil), clips...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	maxSamples := int(maxSeconds * float64(sampleRate))
	collected := map[string][]float32{}
	var labels []string
	for _, clip := range ordered {
		start := int(clip.Start * float64(sampleRate))
		end := int(clip.End * float64(sampleRate))
		if start < 0 {
			start = 0
		}
		if end > len(samples) {
			end = len(samples)
		}
		if end <= start {
			continue
		}

		buf, seen := collected[clip.Label]
		if !seen {
			labels = append(labels, clip.Label)
		}
		if maxSamples > 0 && len(buf) >= maxSamples {
			continue
		}
		chunk := samples[start:end]
		if maxSamples > 0 && len(buf)+len(chunk) > maxSamples {
			chunk = chunk[:maxSamples-len(buf)]
		}
		collected[clip.Label] = append(buf, chunk...)
	}

	paths := make(map[string]string, len(labels))
	for _, label := range labels {
		path := filepath.Join(dir, label+".mp3")
		w, err := NewMP3Writer(path, ExportSampleRate, 1)
		if err != nil {
			return paths, err
		}
		if err := w.Write(Resample(collected[label], sampleRate, ExportSampleRate)); err != nil {
			w.Close()
			return paths, err
		}
		if err := w.Close(); err != nil {
			return paths, err
		}
		paths[label] = path
	}

	log.Debug().Str("dir", dir).Int("speakers", len(paths)).Msg("speaker samples exported")
	return paths, nil
}
