package stt

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyAudio is returned when an artifact holds no decodable samples
var ErrEmptyAudio = errors.New("audio artifact is empty")

// Segment is one recognized span inside a chunk
type Segment struct {
	Start        float64 `json:"start"` // seconds from chunk start
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// Result is the recognition output for one chunk
type Result struct {
	Text     string
	Language string
	Segments []Segment
}

// Empty reports whether the chunk produced no words
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// MeanNoSpeechProb averages the non-speech probability across segments.
// A result without segments reports 0.
func (r Result) MeanNoSpeechProb() float64 {
	if len(r.Segments) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range r.Segments {
		sum += s.NoSpeechProb
	}
	return sum / float64(len(r.Segments))
}

// Options tune a single recognition call
type Options struct {
	LanguageHint string // empty lets the engine detect
	VADFilter    bool   // ask the engine to skip non-speech regions
}

// Recognizer turns a WAV artifact into text
type Recognizer interface {
	// Transcribe recognizes the WAV file at path
	Transcribe(ctx context.Context, path string, opts Options) (Result, error)

	// Name identifies the backend in logs and metrics
	Name() string
}
