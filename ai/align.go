package ai

import (
	"math"
	"sort"
	"strings"
)

const (
	// Ближайший сегмент дальше этого расстояния не считается совпадением
	maxNearestDistance = 2.0
	// Пауза, после которой эвристика чередования меняет спикера
	alternatePauseThreshold = 2.0
)

// AlignTranscript назначает каждому сегменту транскрипции спикера по
// максимальному перекрытию, иначе по ближайшему сегменту спикера.
// Сегменты с пустым текстом пропускаются. Чистая функция.
func AlignTranscript(transcript []TranscriptSegment, speakers []SpeakerSegment) []LabeledSegment {
	labeled := make([]LabeledSegment, 0, len(transcript))

	for _, ts := range transcript {
		text := strings.TrimSpace(ts.Text)
		if text == "" {
			continue
		}

		labeled = append(labeled, LabeledSegment{
			Start:    ts.Start,
			End:      ts.End,
			Speaker:  resolveSpeaker(ts, speakers),
			Text:     text,
			Duration: ts.End - ts.Start,
		})
	}

	sort.SliceStable(labeled, func(i, j int) bool {
		return labeled[i].Start < labeled[j].Start
	})
	return labeled
}

// resolveSpeaker выбирает спикера для одного сегмента. При равенстве
// побеждает сегмент, встреченный первым.
func resolveSpeaker(ts TranscriptSegment, speakers []SpeakerSegment) string {
	if len(speakers) == 0 {
		return DefaultSpeaker
	}

	bestOverlap := 0.0
	best := -1
	for i, sp := range speakers {
		overlap := math.Min(ts.End, sp.End) - math.Max(ts.Start, sp.Start)
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = i
		}
	}
	if best >= 0 {
		return speakers[best].Speaker
	}

	nearestDist := math.Inf(1)
	nearest := -1
	for i, sp := range speakers {
		if d := segmentDistance(ts, sp); d < nearestDist {
			nearestDist = d
			nearest = i
		}
	}
	if nearest < 0 || nearestDist > maxNearestDistance {
		return DefaultSpeaker
	}
	return speakers[nearest].Speaker
}

// segmentDistance расстояние между сегментами, 0 при перекрытии или касании
func segmentDistance(ts TranscriptSegment, sp SpeakerSegment) float64 {
	switch {
	case ts.End <= sp.Start:
		return sp.Start - ts.End
	case sp.End <= ts.Start:
		return ts.Start - sp.End
	default:
		return 0
	}
}

// AlternateSpeakersOnPause грубая эвристика для транскрипций без диаризации:
// сегмент без спикера получает SPEAKER_0, а после паузы больше 2 с спикер
// переключается между SPEAKER_0 и SPEAKER_1. Явно заданные спикеры сохраняются.
// Это приближение, не настоящая диаризация.
func AlternateSpeakersOnPause(transcript []TranscriptSegment) []LabeledSegment {
	labeled := make([]LabeledSegment, 0, len(transcript))

	for _, ts := range transcript {
		speaker := ts.Speaker
		if speaker == "" {
			speaker = DefaultSpeaker
		}

		if speaker == DefaultSpeaker && len(labeled) > 0 {
			last := labeled[len(labeled)-1]
			if ts.Start-last.End > alternatePauseThreshold {
				if last.Speaker == DefaultSpeaker {
					speaker = SpeakerLabel(1)
				} else {
					speaker = DefaultSpeaker
				}
			}
		}

		labeled = append(labeled, LabeledSegment{
			Start:    ts.Start,
			End:      ts.End,
			Speaker:  speaker,
			Text:     strings.TrimSpace(ts.Text),
			Duration: ts.End - ts.Start,
		})
	}
	return labeled
}
