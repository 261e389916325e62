package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lexiqai/meeting-listener/internal/capture"
	"github.com/lexiqai/meeting-listener/internal/events"
	"github.com/lexiqai/meeting-listener/internal/llm"
	"github.com/lexiqai/meeting-listener/internal/memory"
	"github.com/lexiqai/meeting-listener/internal/observability"
	"github.com/lexiqai/meeting-listener/internal/stt"
	"github.com/rs/zerolog"
)

// Source is the consumer side of the dispatch queue
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (capture.Artifact, bool)
	Len() int
}

// Config holds the worker settings
type Config struct {
	MeetingID    string
	LanguageHint string
	VADFilter    bool
	PollTimeout  time.Duration
	KeepFiles    bool // leave WAV artifacts on disk after processing
	Summary      bool // fold every persisted chunk into the running summary
}

// Worker consumes artifacts one at a time: recognize, translate when the
// session asks for it, persist, then update the summary and notify viewers.
type Worker struct {
	source     Source
	recognizer stt.Recognizer
	translator llm.Translator
	store      memory.Store
	publisher  events.Publisher
	translate  func() bool
	cfg        Config
	logger     zerolog.Logger
}

// New creates a worker. translate is polled per chunk; publisher may be nil.
func New(source Source, recognizer stt.Recognizer, translator llm.Translator, store memory.Store,
	publisher events.Publisher, translate func() bool, cfg Config, logger zerolog.Logger) *Worker {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 500 * time.Millisecond
	}
	if publisher == nil {
		publisher = events.Fanout(nil)
	}
	return &Worker{
		source:     source,
		recognizer: recognizer,
		translator: translator,
		store:      store,
		publisher:  publisher,
		translate:  translate,
		cfg:        cfg,
		logger:     logger.With().Str("component", "worker").Str("meeting_id", cfg.MeetingID).Logger(),
	}
}

// Run processes artifacts until ctx is done, or until producerDone is closed
// and the queue has been drained.
func (w *Worker) Run(ctx context.Context, producerDone <-chan struct{}) {
	w.logger.Info().Msg("Worker started")
	processed := 0
	for {
		artifact, ok := w.source.Pop(ctx, w.cfg.PollTimeout)
		if !ok {
			if ctx.Err() != nil {
				w.logger.Warn().Int("pending", w.source.Len()).Msg("Worker cancelled")
				return
			}
			select {
			case <-producerDone:
				if w.source.Len() == 0 {
					w.logger.Info().Int("processed", processed).Msg("Worker drained")
					return
				}
			default:
			}
			continue
		}

		w.handle(ctx, artifact)
		processed++
	}
}

// handle runs Process and absorbs its per-chunk failures
func (w *Worker) handle(ctx context.Context, a capture.Artifact) {
	logger := w.logger.With().Int("seq", a.Seq).Int("slot", a.Slot).Logger()

	chunk, err := w.Process(ctx, a)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn().Err(err).Msg("Chunk abandoned, pipeline cancelled")
	case err != nil:
		var te *TranscriptionError
		var se *StoreWriteError
		switch {
		case errors.As(err, &te):
			observability.RecordError("transcription", "worker")
		case errors.As(err, &se):
			observability.RecordError("store_write", "worker")
		}
		logger.Error().Err(err).Msg("Chunk dropped")
	case chunk == nil:
		logger.Debug().Msg("No speech in chunk")
	default:
		logger.Info().Int("chunk_seq", chunk.Seq).Bool("translated", chunk.Translated != nil).Msg("Chunk persisted")
	}

	if !w.cfg.KeepFiles {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", a.Path).Msg("Failed to remove chunk artifact")
		}
	}
}

// Process turns one artifact into a persisted chunk. It returns nil without
// error when the chunk holds no speech.
func (w *Worker) Process(ctx context.Context, a capture.Artifact) (*memory.Chunk, error) {
	logger := w.logger.With().Int("seq", a.Seq).Logger()

	result, err := w.recognizer.Transcribe(ctx, a.Path, stt.Options{
		LanguageHint: w.cfg.LanguageHint,
		VADFilter:    w.cfg.VADFilter,
	})
	if err != nil {
		return nil, &TranscriptionError{Seq: a.Seq, Err: err}
	}

	noSpeech := result.MeanNoSpeechProb()
	observability.RecordNoSpeech(noSpeech)
	logger.Debug().
		Float64("no_speech_prob", noSpeech).
		Int("segments", len(result.Segments)).
		Str("language", result.Language).
		Msg("Chunk recognized")

	if result.Empty() {
		return nil, nil
	}
	text := strings.TrimSpace(result.Text)

	var translated *string
	if w.translate != nil && w.translate() {
		out, err := w.translator.Translate(ctx, text)
		if err != nil {
			logger.Warn().Err(&TranslationError{Seq: a.Seq, Err: err}).Msg("Translation failed, keeping raw text")
			observability.RecordError("translation", "worker")
			out = text
		}
		translated = &out
	}

	// A cancelled pipeline belongs to a meeting that may already be reset.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("chunk %d abandoned: %w", a.Seq, err)
	}
	chunk, err := w.store.AppendChunk(ctx, text, translated)
	if err != nil {
		return nil, &StoreWriteError{Seq: a.Seq, Err: err}
	}
	observability.RecordChunkPersisted(translated != nil)

	if w.cfg.Summary {
		w.updateSummary(ctx, chunk, logger)
	}

	if err := w.publisher.Publish(ctx, events.ChunkAppended(w.cfg.MeetingID, chunk)); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish chunk event")
	}
	return &chunk, nil
}

// updateSummary extends the running summary; on failure the previous one stays
func (w *Worker) updateSummary(ctx context.Context, chunk memory.Chunk, logger zerolog.Logger) {
	current, err := w.store.Summary(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read summary")
		return
	}
	updated, err := w.translator.UpdateSummary(ctx, current, chunk.Text, chunk.Display())
	if err != nil {
		logger.Warn().Err(err).Msg("Summary update failed, keeping previous summary")
		return
	}
	if err := w.store.SetSummary(ctx, updated); err != nil {
		logger.Warn().Err(err).Msg("Failed to store summary")
	}
}
