package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"voicesplit/ai"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return usageError("unknown output format %q", format)
	}
}

// writeResult печатает результат пайплайна в выбранном формате
func writeResult(w io.Writer, result *ai.PipelineResult, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, result)
	case formatYAML:
		return writeYAML(w, result)
	}

	fmt.Fprintln(w, result.LabeledText)
	if len(result.Percentages) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Speaker time:")
		for _, speaker := range sortedSpeakers(result.Percentages) {
			fmt.Fprintf(w, "  %s: %.1f%%\n", speaker, result.Percentages[speaker])
		}
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning.Message)
	}
	return nil
}

// labeledOutput размеченная транскрипция для json/yaml вывода
type labeledOutput struct {
	Segments    []ai.LabeledSegment `json:"segments" yaml:"segments"`
	Text        string              `json:"text" yaml:"text"`
	Percentages map[string]float64  `json:"percentages" yaml:"percentages"`
}

func writeLabeled(w io.Writer, labeled []ai.LabeledSegment, format string) error {
	out := labeledOutput{
		Segments:    labeled,
		Text:        ai.FormatLabeledTranscript(labeled),
		Percentages: ai.SpeakerTimePercentages(labeled),
	}
	if out.Segments == nil {
		out.Segments = []ai.LabeledSegment{}
	}

	switch format {
	case formatJSON:
		return writeJSON(w, out)
	case formatYAML:
		return writeYAML(w, out)
	}

	fmt.Fprintln(w, out.Text)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
