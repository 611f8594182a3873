package ai

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	numMFCC = 20

	// FeatureDim длина вектора признаков: 4 блока MFCC + 6 скалярных признаков
	FeatureDim = 4*numMFCC + 6

	pitchMinHz     = 150.0
	pitchMaxHz     = 4000.0
	voicedRatio    = 0.1
	rolloffPercent = 0.85
	deltaWidth     = 2
)

// FeatureExtractor вычисляет вектор признаков для каждого интервала речи
type FeatureExtractor struct {
	sampleRate int
	mel        MelConfig
}

// NewFeatureExtractor создаёт экстрактор для 16kHz
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{
		sampleRate: TargetSampleRate,
		mel:        DefaultMelConfig(),
	}
}

// Extract возвращает по одной записи на каждый интервал в том же порядке.
// Интервал, для которого признаки посчитать не удалось, получает нулевой вектор;
// второе значение - количество таких интервалов.
func (e *FeatureExtractor) Extract(samples []float32, intervals []SpeechInterval) ([]SpeechFeatures, int) {
	result := make([]SpeechFeatures, len(intervals))
	if len(intervals) == 0 {
		return result, 0
	}

	processor := NewMelProcessor(e.mel)
	fallbacks := 0

	for i, iv := range intervals {
		vector, err := e.intervalVector(processor, samples, iv)
		if err != nil {
			log.Warn().Err(err).Float64("start", iv.Start).Float64("end", iv.End).Msg("feature extraction failed, using zero vector")
			vector = make([]float64, FeatureDim)
			fallbacks++
		}
		result[i] = SpeechFeatures{Interval: iv, Vector: vector}
	}

	return result, fallbacks
}

// intervalVector вычисляет вектор для одного интервала
func (e *FeatureExtractor) intervalVector(p *MelProcessor, samples []float32, iv SpeechInterval) ([]float64, error) {
	startIdx := int(iv.Start * float64(e.sampleRate))
	endIdx := int(iv.End * float64(e.sampleRate))
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(samples) {
		endIdx = len(samples)
	}
	if endIdx <= startIdx {
		return nil, fmt.Errorf("interval %.2f-%.2f is outside the waveform", iv.Start, iv.End)
	}
	segment := samples[startIdx:endIdx]

	frames := p.Analyze(segment)
	if len(frames.MFCC) == 0 {
		return nil, fmt.Errorf("no analysis frames")
	}

	vector := make([]float64, 0, FeatureDim)

	// MFCC: среднее и стандартное отклонение по фреймам
	means := make([]float64, numMFCC)
	stds := make([]float64, numMFCC)
	column := make([]float64, len(frames.MFCC))
	for c := 0; c < numMFCC; c++ {
		for f, coeffs := range frames.MFCC {
			column[f] = coeffs[c]
		}
		means[c], stds[c] = stat.PopMeanStdDev(column, nil)
	}
	vector = append(vector, means...)
	vector = append(vector, stds...)

	delta := deltas(frames.MFCC, deltaWidth)
	delta2 := deltas(delta, deltaWidth)
	vector = append(vector, columnMeans(delta, numMFCC)...)
	vector = append(vector, columnMeans(delta2, numMFCC)...)

	centroid, bandwidth, rolloff := e.spectralShape(p, frames.Magnitude)
	vector = append(vector,
		zeroCrossingRate(segment),
		calculateWindowEnergy(segment),
		centroid,
		bandwidth,
		rolloff,
		e.estimatePitch(p, frames.Magnitude),
	)

	for _, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite feature value")
		}
	}
	return vector, nil
}

// deltas регрессионная производная по времени с повтором крайних фреймов
func deltas(frames [][]float64, width int) [][]float64 {
	n := len(frames)
	out := make([][]float64, n)
	if n == 0 {
		return out
	}
	dim := len(frames[0])

	denom := 0.0
	for k := 1; k <= width; k++ {
		denom += float64(2 * k * k)
	}

	clamp := func(i int) int {
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}

	for t := 0; t < n; t++ {
		row := make([]float64, dim)
		for k := 1; k <= width; k++ {
			next := frames[clamp(t+k)]
			prev := frames[clamp(t-k)]
			for d := 0; d < dim; d++ {
				row[d] += float64(k) * (next[d] - prev[d])
			}
		}
		floats.Scale(1/denom, row)
		out[t] = row
	}
	return out
}

// columnMeans среднее по фреймам для каждого коэффициента
func columnMeans(frames [][]float64, dim int) []float64 {
	means := make([]float64, dim)
	if len(frames) == 0 {
		return means
	}
	for _, row := range frames {
		floats.Add(means, row[:dim])
	}
	floats.Scale(1/float64(len(frames)), means)
	return means
}

// spectralShape средние по фреймам центроид, ширина полосы и rolloff спектра
func (e *FeatureExtractor) spectralShape(p *MelProcessor, magnitude [][]float64) (centroid, bandwidth, rolloff float64) {
	if len(magnitude) == 0 {
		return 0, 0, 0
	}

	freqs := make([]float64, len(magnitude[0]))
	for k := range freqs {
		freqs[k] = p.BinFrequency(k)
	}

	for _, spec := range magnitude {
		total := floats.Sum(spec)
		if total <= 0 {
			continue
		}

		c := floats.Dot(freqs, spec) / total
		var spread float64
		for k, m := range spec {
			d := freqs[k] - c
			spread += m * d * d
		}

		// Минимальная частота, ниже которой лежит 85% энергии спектра
		var cum float64
		r := freqs[len(freqs)-1]
		for k, m := range spec {
			cum += m
			if cum >= rolloffPercent*total {
				r = freqs[k]
				break
			}
		}

		centroid += c
		bandwidth += math.Sqrt(spread / total)
		rolloff += r
	}

	n := float64(len(magnitude))
	return centroid / n, bandwidth / n, rolloff / n
}

// estimatePitch средняя доминирующая частота по озвученным фреймам.
// Фрейм озвучен, если его пик в диапазоне 150-4000 Hz не ниже 10% от
// максимального пика сегмента. Без озвученных фреймов возвращает 0.
func (e *FeatureExtractor) estimatePitch(p *MelProcessor, magnitude [][]float64) float64 {
	if len(magnitude) == 0 {
		return 0
	}

	lo, hi := -1, -1
	for k := range magnitude[0] {
		f := p.BinFrequency(k)
		if f < pitchMinHz || f > pitchMaxHz {
			continue
		}
		if lo < 0 {
			lo = k
		}
		hi = k
	}
	if lo < 0 {
		return 0
	}

	peaks := make([]int, len(magnitude))
	globalMax := 0.0
	for i, spec := range magnitude {
		peak := lo + floats.MaxIdx(spec[lo:hi+1])
		peaks[i] = peak
		if spec[peak] > globalMax {
			globalMax = spec[peak]
		}
	}
	if globalMax <= 0 {
		return 0
	}

	var sum float64
	voiced := 0
	for i, spec := range magnitude {
		peak := peaks[i]
		if spec[peak] < voicedRatio*globalMax {
			continue
		}

		// Взвешенная частота пика и соседних bins
		var weighted, weight float64
		for k := peak - 1; k <= peak+1; k++ {
			if k < lo || k > hi {
				continue
			}
			weighted += p.BinFrequency(k) * spec[k]
			weight += spec[k]
		}
		if weight <= 0 {
			continue
		}
		sum += weighted / weight
		voiced++
	}

	if voiced == 0 {
		return 0
	}
	return sum / float64(voiced)
}
