package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labeled(start, end float64, speaker, text string) LabeledSegment {
	return LabeledSegment{Start: start, End: end, Speaker: speaker, Text: text, Duration: end - start}
}

func TestFormatLabeledTranscript(t *testing.T) {
	assert.Equal(t, NoSegmentsPlaceholder, FormatLabeledTranscript(nil))
	assert.Equal(t, NoSegmentsPlaceholder, FormatLabeledTranscript([]LabeledSegment{}))

	got := FormatLabeledTranscript([]LabeledSegment{
		labeled(0, 1, "SPEAKER_0", "hello"),
		labeled(1, 2, "SPEAKER_0", "there"),
		labeled(2, 3, "SPEAKER_1", ""),
		labeled(3, 4, "SPEAKER_1", "hi"),
		labeled(4, 5, "SPEAKER_0", "bye"),
	})
	want := "[SPEAKER_0]: hello there \n[SPEAKER_1]: hi \n[SPEAKER_0]: bye"
	assert.Equal(t, want, got)
}

func TestSpeakerTimePercentages(t *testing.T) {
	got := SpeakerTimePercentages([]LabeledSegment{
		labeled(0, 2, "SPEAKER_0", "a"),
		labeled(2, 3, "SPEAKER_1", "b"),
		labeled(3, 4, "SPEAKER_0", "c"),
	})

	require.Len(t, got, 2)
	assert.InDelta(t, 75.0, got["SPEAKER_0"], 1e-9)
	assert.InDelta(t, 25.0, got["SPEAKER_1"], 1e-9)

	assert.Empty(t, SpeakerTimePercentages(nil))

	zero := SpeakerTimePercentages([]LabeledSegment{labeled(0, 0, "SPEAKER_0", "x")})
	assert.Equal(t, 0.0, zero["SPEAKER_0"])
}

func TestFormatSpeakerTimeline(t *testing.T) {
	assert.Equal(t, NoSpeakerSegmentsPlaceholder, FormatSpeakerTimeline(nil))

	got := FormatSpeakerTimeline([]SpeakerSegment{
		seg(0, 2, "SPEAKER_0"),
		seg(3, 4.5, "SPEAKER_1"),
	})
	assert.True(t, strings.HasPrefix(got, "=== Speaker timeline ==="))
	assert.Contains(t, got, "[SPEAKER_0]:\n  0.0s - 2.0s (2.0s)")
	assert.Contains(t, got, "[SPEAKER_1]:\n  3.0s - 4.5s (1.5s)")
	assert.True(t, strings.HasSuffix(got, "Speakers detected: 2"))
}

func TestSpeakerStats(t *testing.T) {
	stats := SpeakerStats([]SpeakerSegment{
		seg(0, 3, "SPEAKER_1"),
		seg(3, 4, "SPEAKER_0"),
		seg(5, 9, "SPEAKER_1"),
	})

	require.Len(t, stats, 2)
	assert.Equal(t, "SPEAKER_0", stats[0].Speaker)
	assert.Equal(t, 1, stats[0].Segments)
	assert.InDelta(t, 12.5, stats[0].Percentage, 1e-9)
	assert.Equal(t, 2, stats[1].Segments)
	assert.InDelta(t, 7.0, stats[1].TotalTime, 1e-9)
}
