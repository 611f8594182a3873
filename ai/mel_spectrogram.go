package ai

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MelConfig конфигурация спектрального анализа
type MelConfig struct {
	SampleRate int
	NMels      int
	NMFCC      int // количество кепстральных коэффициентов, <= NMels
	HopLength  int // Usually SampleRate / 100 (10ms)
	WinLength  int // Usually SampleRate / 40 (25ms)
	NFFT       int
	Center     bool // true = center frames (librosa default), false = left-aligned
}

// DefaultMelConfig параметры анализа для признаков спикера на 16kHz
func DefaultMelConfig() MelConfig {
	return MelConfig{
		SampleRate: TargetSampleRate,
		NMels:      40,
		NMFCC:      20,
		HopLength:  160,
		WinLength:  400,
		NFFT:       512,
		Center:     true,
	}
}

// SpectralFrames результат анализа: амплитудный спектр и MFCC по фреймам
type SpectralFrames struct {
	Magnitude [][]float64 // [frame][NFFT/2+1]
	MFCC      [][]float64 // [frame][NMFCC]
}

// MelProcessor вычисляет спектр и кепстральные коэффициенты.
// Не потокобезопасен: FFT и DCT держат рабочие буферы.
type MelProcessor struct {
	config     MelConfig
	melFilters [][]float64
	window     []float64
	fft        *fourier.FFT
	dct        *fourier.DCT
}

// NewMelProcessor создаёт новый процессор
func NewMelProcessor(config MelConfig) *MelProcessor {
	if config.NMFCC <= 0 || config.NMFCC > config.NMels {
		config.NMFCC = config.NMels
	}
	p := &MelProcessor{
		config: config,
	}

	p.melFilters = createMelFilterbank(config.NFFT, config.NMels, config.SampleRate)
	p.window = createHannWindow(config.WinLength)
	p.fft = fourier.NewFFT(config.NFFT)
	p.dct = fourier.NewDCT(config.NMels)

	return p
}

// BinFrequency частота FFT bin в Hz
func (p *MelProcessor) BinFrequency(bin int) float64 {
	return float64(bin) * float64(p.config.SampleRate) / float64(p.config.NFFT)
}

// numFrames количество фреймов анализа для сигнала длиной n
func (p *MelProcessor) numFrames(n int) int {
	if p.config.Center {
		// center=true: фреймы центрированы, начинаются с sample 0
		return n/p.config.HopLength + 1
	}
	if n >= p.config.WinLength {
		return (n-p.config.WinLength)/p.config.HopLength + 1
	}
	return 1
}

// Analyze вычисляет амплитудный спектр и MFCC для каждого фрейма
func (p *MelProcessor) Analyze(samples []float32) SpectralFrames {
	numFrames := p.numFrames(len(samples))
	numBins := p.config.NFFT/2 + 1

	result := SpectralFrames{
		Magnitude: make([][]float64, numFrames),
		MFCC:      make([][]float64, numFrames),
	}

	frameData := make([]float64, p.config.NFFT)
	coeffs := make([]complex128, numBins)
	logMel := make([]float64, p.config.NMels)
	cepstrum := make([]float64, p.config.NMels)

	for frame := 0; frame < numFrames; frame++ {
		var frameStart int
		if p.config.Center {
			// center=true: центр фрейма на позиции frame * hop_length
			frameStart = frame*p.config.HopLength - p.config.WinLength/2
		} else {
			frameStart = frame * p.config.HopLength
		}

		// Извлекаем фрейм с паддингом
		for i := range frameData {
			frameData[i] = 0
		}
		for i := 0; i < p.config.WinLength; i++ {
			sampleIdx := frameStart + i
			if sampleIdx >= 0 && sampleIdx < len(samples) {
				frameData[i] = float64(samples[sampleIdx]) * p.window[i]
			}
		}

		coeffs = p.fft.Coefficients(coeffs, frameData)

		magnitude := make([]float64, numBins)
		for i := 0; i < numBins; i++ {
			magnitude[i] = math.Hypot(real(coeffs[i]), imag(coeffs[i]))
		}
		result.Magnitude[frame] = magnitude

		// Mel-фильтры по спектру мощности
		for m := 0; m < p.config.NMels; m++ {
			sum := float64(0)
			for k := 0; k < numBins; k++ {
				sum += magnitude[k] * magnitude[k] * p.melFilters[m][k]
			}
			// Log с клампингом
			if sum < 1e-10 {
				sum = 1e-10
			}
			logMel[m] = 10 * math.Log10(sum)
		}

		// DCT-II по log-mel, оставляем первые NMFCC коэффициентов
		cepstrum = p.dct.Transform(cepstrum, logMel)
		mfcc := make([]float64, p.config.NMFCC)
		copy(mfcc, cepstrum[:p.config.NMFCC])
		result.MFCC[frame] = mfcc
	}

	return result
}

// createMelFilterbank создаёт mel-фильтры
// Реализация совместима с torchaudio/librosa (работает в Hz, не bin indices)
func createMelFilterbank(nFFT, nMels, sampleRate int) [][]float64 {
	// Преобразование Hz в mel (HTK formula)
	hzToMel := func(hz float64) float64 {
		return 2595.0 * math.Log10(1.0+hz/700.0)
	}
	melToHz := func(mel float64) float64 {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}

	numBins := nFFT/2 + 1
	fMax := float64(sampleRate) / 2.0

	allFreqs := make([]float64, numBins)
	for i := 0; i < numBins; i++ {
		allFreqs[i] = float64(i) * fMax / float64(numBins-1)
	}

	// Mel points (nMels + 2 точек: left edge, centers, right edge)
	mMin := hzToMel(0)
	mMax := hzToMel(fMax)
	fPts := make([]float64, nMels+2)
	for i := 0; i < nMels+2; i++ {
		mel := mMin + float64(i)*(mMax-mMin)/float64(nMels+1)
		fPts[i] = melToHz(mel)
	}

	fDiff := make([]float64, nMels+1)
	for i := 0; i < nMels+1; i++ {
		fDiff[i] = fPts[i+1] - fPts[i]
	}

	filters := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		filters[m] = make([]float64, numBins)

		for k := 0; k < numBins; k++ {
			freq := allFreqs[k]

			lower := (freq - fPts[m]) / fDiff[m]
			upper := (fPts[m+2] - freq) / fDiff[m+1]

			val := math.Min(lower, upper)
			if val < 0 {
				val = 0
			}
			filters[m][k] = val
		}
	}

	return filters
}

// createHannWindow создаёт окно Ханна
func createHannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := 0; i < size; i++ {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}
