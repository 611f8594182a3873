package ai

import (
	"fmt"
	"sort"
	"strings"
)

// NoSegmentsPlaceholder текст для пустой размеченной транскрипции
const NoSegmentsPlaceholder = "No segments available."

// NoSpeakerSegmentsPlaceholder текст для пустого таймлайна спикеров
const NoSpeakerSegmentsPlaceholder = "No speaker segments found."

// FormatLabeledTranscript группирует подряд идущие сегменты по спикеру:
// заголовок [SPEAKER_n]: при каждой смене спикера, затем текст сегментов.
func FormatLabeledTranscript(segments []LabeledSegment) string {
	if len(segments) == 0 {
		return NoSegmentsPlaceholder
	}

	var sb strings.Builder
	current := ""
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.Speaker != current {
			current = seg.Speaker
			fmt.Fprintf(&sb, "\n[%s]: ", seg.Speaker)
		}
		sb.WriteString(text)
		sb.WriteString(" ")
	}

	return strings.TrimSpace(sb.String())
}

// SpeakerTimePercentages доля времени каждого спикера в процентах от
// максимальной метки конца среди всех сегментов
func SpeakerTimePercentages(segments []LabeledSegment) map[string]float64 {
	totals := map[string]float64{}
	maxEnd := 0.0
	for _, seg := range segments {
		totals[seg.Speaker] += seg.Duration
		if seg.End > maxEnd {
			maxEnd = seg.End
		}
	}

	percentages := make(map[string]float64, len(totals))
	for speaker, total := range totals {
		if maxEnd > 0 {
			percentages[speaker] = total / maxEnd * 100
		} else {
			percentages[speaker] = 0
		}
	}
	return percentages
}

// FormatSpeakerTimeline таймлайн спикеров без текста, для результатов без транскрипции
func FormatSpeakerTimeline(segments []SpeakerSegment) string {
	if len(segments) == 0 {
		return NoSpeakerSegmentsPlaceholder
	}

	lines := []string{"=== Speaker timeline ==="}
	current := ""
	speakers := map[string]struct{}{}
	for _, seg := range segments {
		speakers[seg.Speaker] = struct{}{}
		if seg.Speaker != current {
			current = seg.Speaker
			lines = append(lines, "", fmt.Sprintf("[%s]:", seg.Speaker))
		}
		lines = append(lines, fmt.Sprintf("  %.1fs - %.1fs (%.1fs)", seg.Start, seg.End, seg.Duration))
	}
	lines = append(lines, "", fmt.Sprintf("Speakers detected: %d", len(speakers)))

	return strings.Join(lines, "\n")
}

// SpeakerStat статистика одного спикера
type SpeakerStat struct {
	Speaker    string  `json:"speaker" yaml:"speaker"`
	TotalTime  float64 `json:"totalTime" yaml:"total_time"`
	Segments   int     `json:"segments" yaml:"segments"`
	Percentage float64 `json:"percentage" yaml:"percentage"` // от суммарного времени речи
}

// SpeakerStats считает время и количество сегментов по спикерам, по метке спикера
func SpeakerStats(segments []SpeakerSegment) []SpeakerStat {
	byLabel := map[string]*SpeakerStat{}
	total := 0.0
	for _, seg := range segments {
		st, ok := byLabel[seg.Speaker]
		if !ok {
			st = &SpeakerStat{Speaker: seg.Speaker}
			byLabel[seg.Speaker] = st
		}
		st.TotalTime += seg.Duration
		st.Segments++
		total += seg.Duration
	}

	stats := make([]SpeakerStat, 0, len(byLabel))
	for _, st := range byLabel {
		if total > 0 {
			st.Percentage = st.TotalTime / total * 100
		}
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Speaker < stats[j].Speaker
	})
	return stats
}
