package stt

import (
	"context"
	"fmt"

	"github.com/lexiqai/meeting-listener/internal/audio"
)

// MockRecognizer needs no external engine. It inspects the WAV itself and
// reports a placeholder sentence for chunks that contain speech energy,
// and empty text for silent ones.
type MockRecognizer struct {
	VAD *audio.VADConfig
}

// NewMockRecognizer creates a mock recognizer using the given VAD settings
func NewMockRecognizer(vad *audio.VADConfig) *MockRecognizer {
	return &MockRecognizer{VAD: vad}
}

// Name identifies the backend
func (m *MockRecognizer) Name() string {
	return "mock"
}

// Transcribe returns "[speech N.Ns]" for voiced chunks
func (m *MockRecognizer) Transcribe(ctx context.Context, path string, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	samples, format, err := audio.ReadWAVFile(path)
	if err != nil {
		return Result{}, err
	}
	if len(samples) == 0 {
		return Result{}, ErrEmptyAudio
	}

	stats := audio.AnalyzeSpeech(samples, format.SampleRate, format.Channels, m.VAD)
	duration := audio.DurationSeconds(len(samples), format.SampleRate, format.Channels)
	if stats.Utterances == 0 {
		return Result{Segments: []Segment{{Start: 0, End: duration, NoSpeechProb: 1}}}, nil
	}

	text := fmt.Sprintf("[speech %.1fs]", duration*stats.SpeechRatio)
	return Result{
		Text:     text,
		Language: opts.LanguageHint,
		Segments: []Segment{{Start: 0, End: duration, Text: text, NoSpeechProb: 1 - stats.SpeechRatio}},
	}, nil
}
