package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	tone := Tone(440, 0.5, 0.5, TargetSampleRate)
	require.NoError(t, WriteWAV(path, tone, TargetSampleRate, 1))

	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, TargetSampleRate, w.SampleRate)
	assert.Equal(t, 1, w.Channels)
	require.Len(t, w.Samples, len(tone))
	assert.InDelta(t, 0.5, w.Duration(), 1e-9)

	for i := 0; i < len(tone); i += 97 {
		assert.InDelta(t, tone[i], w.Samples[i], 1e-3)
	}
}

func TestLoadMono16kStereo44k(t *testing.T) {
	left := Tone(300, 1, 0.4, 44100)
	stereo := make([]float32, 0, len(left)*2)
	for _, s := range left {
		stereo = append(stereo, s, 0)
	}

	path := filepath.Join(t.TempDir(), "stereo.wav")
	require.NoError(t, WriteWAV(path, stereo, 44100, 2))

	mono, err := LoadMono16k(path)
	require.NoError(t, err)
	assert.InDelta(t, TargetSampleRate, len(mono), 2)

	var peak float32
	for _, s := range mono {
		peak = max(peak, float32(math.Abs(float64(s))))
	}
	// Каналы усредняются: пик 0.4 в одном канале даёт 0.2
	assert.InDelta(t, 0.2, peak, 0.01)
}

func TestLoadEmptyAndInvalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	w, err := Load(empty)
	require.NoError(t, err)
	assert.Empty(t, w.Samples)
	assert.Zero(t, w.Duration())

	unknown := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unknown, []byte("hello world"), 0644))
	_, err = Load(unknown)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	corrupt := filepath.Join(dir, "corrupt.wav")
	require.NoError(t, os.WriteFile(corrupt, []byte("RIFF....garbage"), 0644))
	_, err = Load(corrupt)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.wav"))
	assert.Error(t, err)
}

func TestLoadSniffsWAVWithoutExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.bin")
	require.NoError(t, WriteWAV(path, Tone(200, 0.1, 0.5, 8000), 8000, 1))

	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, w.SampleRate)
	assert.Len(t, w.Samples, 800)
}

func TestResample(t *testing.T) {
	src := Tone(100, 1, 0.5, 48000)

	out := Resample(src, 48000, TargetSampleRate)
	assert.Len(t, out, TargetSampleRate)

	same := Resample(src, 48000, 48000)
	assert.Equal(t, len(src), len(same))

	assert.Empty(t, Resample(nil, 48000, 16000))
}

func TestMP3RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.mp3")
	w, err := NewMP3Writer(path, ExportSampleRate, 1)
	require.NoError(t, err)
	require.NoError(t, w.Write(Tone(440, 1, 0.5, ExportSampleRate)))
	require.NoError(t, w.Close())

	r, err := NewMP3Reader(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, ExportSampleRate, r.SampleRate())
	assert.InDelta(t, 1.0, r.Duration(), 0.1)

	wf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, wf.Channels)
	assert.InDelta(t, 1.0, wf.Duration(), 0.1)

	mono, err := LoadMono16k(path)
	require.NoError(t, err)
	assert.InDelta(t, TargetSampleRate, len(mono), 0.1*TargetSampleRate)
}

func TestMP3WriterRejectsChannels(t *testing.T) {
	_, err := NewMP3Writer(filepath.Join(t.TempDir(), "x.mp3"), ExportSampleRate, 3)
	assert.Error(t, err)
}

func TestExportSpeakerSamples(t *testing.T) {
	samples := TwoToneDialogue(TargetSampleRate)
	clips := []Clip{
		{Label: "SPEAKER_1", Start: 6, End: 11},
		{Label: "SPEAKER_0", Start: 0, End: 5},
		{Label: "SPEAKER_0", Start: 5, End: 5}, // пустой фрагмент пропускается
	}

	dir := filepath.Join(t.TempDir(), "samples")
	paths, err := ExportSpeakerSamples(dir, samples, TargetSampleRate, clips, 2)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for label, path := range paths {
		assert.Equal(t, filepath.Join(dir, label+".mp3"), path)
		r, err := NewMP3Reader(path)
		require.NoError(t, err)
		// Ограничение maxSeconds
		assert.InDelta(t, 2.0, r.Duration(), 0.15, label)
		r.Close()
	}
}
