package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignTranscript(t *testing.T) {
	speakers := []SpeakerSegment{
		seg(0, 2, "SPEAKER_0"),
		seg(2, 4, "SPEAKER_1"),
		seg(10, 12, "SPEAKER_2"),
	}

	tests := []struct {
		name    string
		segment TranscriptSegment
		want    string
	}{
		{"tie resolves to first", TranscriptSegment{Start: 1.0, End: 3.0, Text: "hello"}, "SPEAKER_0"},
		{"max overlap wins", TranscriptSegment{Start: 1.5, End: 3.8, Text: "hi"}, "SPEAKER_1"},
		{"nearest within 2s", TranscriptSegment{Start: 8.5, End: 9.0, Text: "near"}, "SPEAKER_2"},
		{"nearest beyond 2s", TranscriptSegment{Start: 6.5, End: 7.0, Text: "far"}, "SPEAKER_0"},
		{"touching boundary", TranscriptSegment{Start: 12.0, End: 13.0, Text: "after"}, "SPEAKER_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AlignTranscript([]TranscriptSegment{tt.segment}, speakers)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Speaker)
			assert.Equal(t, tt.segment.Start, got[0].Start)
			assert.Equal(t, tt.segment.End, got[0].End)
			assert.InDelta(t, tt.segment.End-tt.segment.Start, got[0].Duration, 1e-12)
		})
	}
}

func TestAlignTranscriptSpecScenario(t *testing.T) {
	got := AlignTranscript(
		[]TranscriptSegment{{Start: 1.0, End: 3.0, Text: "hello"}},
		[]SpeakerSegment{{Start: 0, End: 2, Speaker: "SPEAKER_0"}, {Start: 2, End: 4, Speaker: "SPEAKER_1"}},
	)
	require.Len(t, got, 1)
	assert.Equal(t, "SPEAKER_0", got[0].Speaker)
}

func TestAlignTranscriptNoSpeakers(t *testing.T) {
	got := AlignTranscript([]TranscriptSegment{{Start: 0, End: 1, Text: "hello"}}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, DefaultSpeaker, got[0].Speaker)
}

func TestAlignTranscriptSkipsEmptyAndSorts(t *testing.T) {
	transcript := []TranscriptSegment{
		{Start: 5, End: 6, Text: "second"},
		{Start: 2, End: 3, Text: "   "},
		{Start: 1, End: 2, Text: " first "},
	}
	got := AlignTranscript(transcript, []SpeakerSegment{seg(0, 10, "SPEAKER_1")})

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
	assert.Equal(t, "SPEAKER_1", got[0].Speaker)
}

func TestAlternateSpeakersOnPause(t *testing.T) {
	transcript := []TranscriptSegment{
		{Start: 0, End: 1, Text: "a"},
		{Start: 1.5, End: 2, Text: "b"}, // пауза 0.5 с
		{Start: 5, End: 6, Text: "c"},   // пауза 3 с, смена
		{Start: 9, End: 10, Text: "d"},  // пауза 3 с после SPEAKER_1
		{Start: 10.2, End: 11, Text: "e", Speaker: "SPEAKER_7"},
	}

	got := AlternateSpeakersOnPause(transcript)
	require.Len(t, got, 5)

	want := []string{"SPEAKER_0", "SPEAKER_0", "SPEAKER_1", "SPEAKER_0", "SPEAKER_7"}
	for i, w := range want {
		assert.Equal(t, w, got[i].Speaker, "segment %d", i)
	}
}
