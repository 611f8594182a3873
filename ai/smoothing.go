package ai

import "sort"

const (
	// Пауза, меньше которой соседние сегменты одного спикера склеиваются
	smoothMergeGap = 0.5
	// Сегменты короче считаются кандидатами на "мерцание"
	flickerMaxDuration = 1.0
	// Пауза для полного слияния тройки после перемаркировки
	flickerMergeGap = 0.3
)

// SmoothSegments склеивает соседние сегменты одного спикера и убирает короткие
// ложные смены спикера. Вход не изменяется. Результат упорядочен по началу
// и является неподвижной точкой: повторный вызов его не меняет.
func SmoothSegments(segments []SpeakerSegment) []SpeakerSegment {
	result := make([]SpeakerSegment, 0, len(segments))
	for _, s := range segments {
		if s.End > s.Start {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Start < result[j].Start
	})

	for {
		var merged, relabeled bool
		result, merged = mergeSameSpeaker(result)
		if len(result) >= 3 {
			result, relabeled = relabelFlicker(result)
		}
		if !merged && !relabeled {
			break
		}
	}

	for i := range result {
		result[i].Duration = result[i].End - result[i].Start
	}
	return result
}

// mergeSameSpeaker склеивает соседние сегменты одного спикера с паузой < 0.5 с
func mergeSameSpeaker(segments []SpeakerSegment) ([]SpeakerSegment, bool) {
	if len(segments) < 2 {
		return segments, false
	}

	changed := false
	out := []SpeakerSegment{segments[0]}
	for _, next := range segments[1:] {
		last := &out[len(out)-1]
		if next.Speaker == last.Speaker && next.Start-last.End < smoothMergeGap {
			if next.End > last.End {
				last.End = next.End
			}
			changed = true
			continue
		}
		out = append(out, next)
	}
	return out, changed
}

// relabelFlicker перемаркирует короткий сегмент между двумя сегментами другого
// спикера и сливает тройку, если паузы с обеих сторон меньше 0.3 с
func relabelFlicker(segments []SpeakerSegment) ([]SpeakerSegment, bool) {
	changed := false
	out := append([]SpeakerSegment(nil), segments...)

	for i := 1; i < len(out)-1; i++ {
		left, cur, right := out[i-1], out[i], out[i+1]
		if cur.End-cur.Start >= flickerMaxDuration {
			continue
		}
		if left.Speaker != right.Speaker || cur.Speaker == left.Speaker {
			continue
		}

		out[i].Speaker = left.Speaker
		changed = true

		if cur.Start-left.End < flickerMergeGap && right.Start-cur.End < flickerMergeGap {
			end := right.End
			if cur.End > end {
				end = cur.End
			}
			out[i-1].End = end
			out = append(out[:i], out[i+2:]...)
			i--
		}
	}
	return out, changed
}
