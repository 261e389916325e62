package stt

import (
	"context"
	"encoding/json"
	"fmt"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"
)

// DeepgramRecognizer transcribes finished chunks with Deepgram's
// prerecorded REST API
type DeepgramRecognizer struct {
	model  string
	client *prerecorded.Client
	logger zerolog.Logger
}

// NewDeepgramRecognizer creates a prerecorded Deepgram client
func NewDeepgramRecognizer(apiKey, model string, logger zerolog.Logger) (*DeepgramRecognizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key is empty")
	}
	c := listenClient.NewREST(apiKey, &interfaces.ClientOptions{})
	return &DeepgramRecognizer{
		model:  model,
		client: prerecorded.New(c),
		logger: logger.With().Str("component", "stt").Str("backend", "deepgram").Logger(),
	}, nil
}

// Name identifies the backend
func (d *DeepgramRecognizer) Name() string {
	return "deepgram"
}

// Transcribe uploads the WAV file and maps utterances onto segments.
// Deepgram has no voice-activity filter switch; opts.VADFilter is ignored.
func (d *DeepgramRecognizer) Transcribe(ctx context.Context, path string, opts Options) (Result, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    opts.LanguageHint,
		Punctuate:   true,
		SmartFormat: true,
		Utterances:  true,
	}

	res, err := d.client.FromFile(ctx, path, options)
	if err != nil {
		return Result{}, fmt.Errorf("deepgram transcription failed: %w", err)
	}

	// Round-trip through JSON so only the wire fields we read matter
	raw, err := json.Marshal(res)
	if err != nil {
		return Result{}, fmt.Errorf("encode deepgram response: %w", err)
	}
	result, err := resultFromDeepgram(raw)
	if err != nil {
		return Result{}, err
	}

	d.logger.Debug().
		Str("path", path).
		Int("segments", len(result.Segments)).
		Int("chars", len(result.Text)).
		Msg("Deepgram transcription complete")
	return result, nil
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Confidence float64 `json:"confidence"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

// resultFromDeepgram maps a prerecorded response onto a Result.
// Deepgram reports confidence, so the non-speech probability is its complement.
func resultFromDeepgram(raw []byte) (Result, error) {
	var resp deepgramResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("decode deepgram response: %w", err)
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return Result{}, nil
	}

	channel := resp.Results.Channels[0]
	best := channel.Alternatives[0]
	result := Result{Text: best.Transcript, Language: channel.DetectedLanguage}

	for _, u := range resp.Results.Utterances {
		result.Segments = append(result.Segments, Segment{
			Start:        u.Start,
			End:          u.End,
			Text:         u.Transcript,
			NoSpeechProb: complement(u.Confidence),
		})
	}
	if len(result.Segments) == 0 && !result.Empty() {
		result.Segments = []Segment{{
			Start:        0,
			End:          resp.Metadata.Duration,
			Text:         best.Transcript,
			NoSpeechProb: complement(best.Confidence),
		}}
	}
	return result, nil
}

func complement(confidence float64) float64 {
	switch {
	case confidence <= 0:
		return 1
	case confidence >= 1:
		return 0
	}
	return 1 - confidence
}
