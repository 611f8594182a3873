package audio

import "math"

// Tone синусоида заданной частоты и амплитуды
func Tone(freq, seconds float64, amplitude float32, sampleRate int) []float32 {
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

// Silence нулевой сигнал заданной длительности
func Silence(seconds float64, sampleRate int) []float32 {
	return make([]float32, int(seconds*float64(sampleRate)))
}

// TwoToneDialogue синтетический «диалог»: 5 с тона 200 Гц, 1 с тишины,
// 5 с тона 1200 Гц. Используется как фикстура для проверки диаризации.
func TwoToneDialogue(sampleRate int) []float32 {
	var out []float32
	out = append(out, Tone(200, 5, 0.5, sampleRate)...)
	out = append(out, Silence(1, sampleRate)...)
	out = append(out, Tone(1200, 5, 0.5, sampleRate)...)
	return out
}
