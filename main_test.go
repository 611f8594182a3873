package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"voicesplit/ai"
	"voicesplit/audio"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--data", filepath.Join(t.TempDir(), "data")}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAlignCommand(t *testing.T) {
	transcript := writeFile(t, "t.json", `{"segments":[
		{"start":0,"end":2,"text":"Hello"},
		{"start":3,"end":5,"text":"Hi"}]}`)
	speakers := writeFile(t, "s.json", `[
		{"start":0,"end":2.5,"speaker":"SPEAKER_0"},
		{"start":2.5,"end":5,"speaker":"SPEAKER_1"}]`)

	out, err := runCLI(t, "align", "--transcript", transcript, "--speakers", speakers)
	require.NoError(t, err)
	assert.Equal(t, "[SPEAKER_0]: Hello \n[SPEAKER_1]: Hi\n", out)

	out, err = runCLI(t, "align", "--transcript", transcript, "--speakers", speakers, "-f", "json")
	require.NoError(t, err)
	var parsed labeledOutput
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Segments, 2)
	assert.InDelta(t, 40.0, parsed.Percentages["SPEAKER_0"], 1e-9)
}

func TestAlignAlternate(t *testing.T) {
	transcript := writeFile(t, "t.json", `[
		{"start":0,"end":1,"text":"one"},
		{"start":1.5,"end":2,"text":"two"},
		{"start":5,"end":6,"text":"three"}]`)

	out, err := runCLI(t, "align", "--transcript", transcript, "--alternate", "-f", "yaml")
	require.NoError(t, err)

	var parsed labeledOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Segments, 3)
	assert.Equal(t, "SPEAKER_0", parsed.Segments[0].Speaker)
	assert.Equal(t, "SPEAKER_0", parsed.Segments[1].Speaker)
	assert.Equal(t, "SPEAKER_1", parsed.Segments[2].Speaker)
}

func TestAlignInputErrors(t *testing.T) {
	malformed := writeFile(t, "bad.json", `{"text": "no segments"}`)

	_, err := runCLI(t, "align", "--transcript", malformed, "--alternate")
	assert.True(t, errors.Is(err, ai.ErrInput), "got %v", err)

	_, err = runCLI(t, "align", "--alternate")
	assert.True(t, errors.Is(err, ai.ErrInput), "got %v", err)

	_, err = runCLI(t, "align", "--transcript", filepath.Join(t.TempDir(), "missing.json"), "--alternate")
	assert.True(t, errors.Is(err, ai.ErrInput), "got %v", err)
}

func TestFormatCommand(t *testing.T) {
	labeled := writeFile(t, "l.json", `[
		{"start":0,"end":1,"speaker":"SPEAKER_0","text":"a"},
		{"start":1,"end":2,"speaker":"SPEAKER_0","text":"b"},
		{"start":2,"end":3,"speaker":"SPEAKER_1","text":"c"}]`)

	out, err := runCLI(t, "format", "--labeled", labeled)
	require.NoError(t, err)
	assert.Equal(t, "[SPEAKER_0]: a b \n[SPEAKER_1]: c\n", out)

	speakers := writeFile(t, "s.json", `[]`)
	out, err = runCLI(t, "format", "--speakers", speakers)
	require.NoError(t, err)
	assert.Equal(t, ai.NoSpeakerSegmentsPlaceholder+"\n", out)

	_, err = runCLI(t, "format")
	assert.True(t, errors.Is(err, ai.ErrInput))
}

func TestDiarizeCommand(t *testing.T) {
	wav := filepath.Join(t.TempDir(), "dialogue.wav")
	require.NoError(t, audio.WriteWAV(wav, audio.TwoToneDialogue(audio.TargetSampleRate), audio.TargetSampleRate, 1))
	samplesDir := filepath.Join(t.TempDir(), "samples")

	out, err := runCLI(t, "diarize", wav,
		"--vad", "energy", "--speakers", "2", "--min-cluster-size", "1",
		"--samples", samplesDir, "-f", "json")
	require.NoError(t, err)

	var result ai.PipelineResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, ai.ModeLocal, result.Mode)
	assert.Equal(t, 2, result.SpeakerCount)
	require.Len(t, result.SpeakerSegments, 2)
	assert.True(t, strings.HasPrefix(result.LabeledText, "=== Speaker timeline ==="))

	entries, err := os.ReadDir(samplesDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDiarizeCommandFailures(t *testing.T) {
	out, err := runCLI(t, "diarize", filepath.Join(t.TempDir(), "missing.wav"), "--vad", "energy")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.ErrInput))
	assert.Contains(t, out, "diarization failed:")

	_, err = runCLI(t, "diarize", "x.wav", "--vad", "energy", "--frame-ms", "25")
	assert.True(t, errors.Is(err, ai.ErrInvalidConfig), "got %v", err)

	_, err = runCLI(t, "diarize", "x.wav", "--vad", "energy", "-f", "xml")
	assert.True(t, errors.Is(err, ai.ErrInput), "got %v", err)
}
