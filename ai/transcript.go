package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// segmentsEnvelope ответ сервиса транскрипции вида {"segments": [...]}
type segmentsEnvelope[T any] struct {
	Segments *[]T `json:"segments"`
}

// decodeSegments принимает JSON массив сегментов либо объект с полем segments
func decodeSegments[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInput)
	}

	switch trimmed[0] {
	case '[':
		var segments []T
		if err := json.Unmarshal(trimmed, &segments); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInput, err)
		}
		return segments, nil
	case '{':
		var env segmentsEnvelope[T]
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInput, err)
		}
		if env.Segments == nil {
			return nil, fmt.Errorf("%w: object has no segments field", ErrInput)
		}
		return *env.Segments, nil
	default:
		return nil, fmt.Errorf("%w: expected JSON array or object", ErrInput)
	}
}

// ParseTranscript разбирает транскрипцию (Whisper/WhisperX JSON)
func ParseTranscript(data []byte) ([]TranscriptSegment, error) {
	segments, err := decodeSegments[TranscriptSegment](data)
	if err != nil {
		return nil, err
	}
	for i, seg := range segments {
		if seg.End < seg.Start {
			return nil, fmt.Errorf("%w: segment %d ends before it starts", ErrInput, i)
		}
	}
	return segments, nil
}

// ParseSpeakerSegments разбирает сегменты спикеров. Duration, если не задана,
// вычисляется из границ.
func ParseSpeakerSegments(data []byte) ([]SpeakerSegment, error) {
	segments, err := decodeSegments[SpeakerSegment](data)
	if err != nil {
		return nil, err
	}
	for i := range segments {
		if segments[i].End < segments[i].Start {
			return nil, fmt.Errorf("%w: speaker segment %d ends before it starts", ErrInput, i)
		}
		if segments[i].Duration == 0 {
			segments[i].Duration = segments[i].End - segments[i].Start
		}
	}
	return segments, nil
}

// ParseLabeledSegments разбирает размеченную транскрипцию
func ParseLabeledSegments(data []byte) ([]LabeledSegment, error) {
	segments, err := decodeSegments[LabeledSegment](data)
	if err != nil {
		return nil, err
	}
	for i := range segments {
		if segments[i].Duration == 0 {
			segments[i].Duration = segments[i].End - segments[i].Start
		}
	}
	return segments, nil
}
