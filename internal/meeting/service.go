package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexiqai/meeting-listener/internal/llm"
	"github.com/lexiqai/meeting-listener/internal/memory"
	"github.com/rs/zerolog"
)

const (
	// RecentChunks is how many chunks the live state shows
	RecentChunks = 6
	// QAChunks is how many recent chunks back a meeting question
	QAChunks = 10
	// exportContextChars caps the transcript tail sent for an export summary
	exportContextChars = 8000
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrEmptyAction   = errors.New("action item is empty")
)

// Service builds the read models of the current meeting
type Service struct {
	store      memory.Store
	translator llm.Translator
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService creates a meeting service over the store and translator
func NewService(store memory.Store, translator llm.Translator, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		translator: translator,
		logger:     logger.With().Str("component", "meeting").Logger(),
		now:        time.Now,
	}
}

type LiveChunk struct {
	Seq        int    `json:"seq"`
	Source     string `json:"source"`
	Translated string `json:"translated"`
}

type LiveState struct {
	Status       string      `json:"status"`
	MeetLink     string      `json:"meet_link,omitempty"`
	Participants []string    `json:"participants"`
	Speaker      string      `json:"speaker,omitempty"`
	RecentChunks []LiveChunk `json:"recent_chunks"`
}

type FinalReport struct {
	EndedAt time.Time `json:"ended_at"`
	Summary string    `json:"summary"`
	Actions []string  `json:"actions"`
}

type ExportReport struct {
	Title         string         `json:"title"`
	MeetLink      string         `json:"meet_link"`
	Start         *time.Time     `json:"start"`
	End           *time.Time     `json:"end"`
	Summary       string         `json:"summary"`
	Actions       []string       `json:"actions"`
	RawTranscript []memory.Chunk `json:"raw_transcript"`
}

// LiveState combines the session snapshot with the latest chunks.
// Detected participants win over the ones saved with the meeting info.
func (s *Service) LiveState(ctx context.Context, status, speaker string, participants []string) (LiveState, error) {
	info, err := s.store.Info(ctx)
	if err != nil {
		return LiveState{}, fmt.Errorf("load meeting info: %w", err)
	}
	recent, err := s.store.LastChunks(ctx, RecentChunks)
	if err != nil {
		return LiveState{}, fmt.Errorf("load recent chunks: %w", err)
	}

	if len(participants) == 0 {
		participants = info.Participants
	}
	state := LiveState{
		Status:       status,
		MeetLink:     info.MeetLink,
		Participants: append([]string{}, participants...),
		Speaker:      speaker,
		RecentChunks: make([]LiveChunk, 0, len(recent)),
	}
	for _, c := range recent {
		lc := LiveChunk{Seq: c.Seq, Source: c.Text}
		if c.Translated != nil {
			lc.Translated = *c.Translated
		}
		state.RecentChunks = append(state.RecentChunks, lc)
	}
	return state, nil
}

// FinalReport is returned when a session stops
func (s *Service) FinalReport(ctx context.Context) (FinalReport, error) {
	info, err := s.store.Info(ctx)
	if err != nil {
		return FinalReport{}, fmt.Errorf("load meeting info: %w", err)
	}
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return FinalReport{}, fmt.Errorf("load summary: %w", err)
	}
	actions, err := s.store.ActionItems(ctx)
	if err != nil {
		return FinalReport{}, fmt.Errorf("load action items: %w", err)
	}

	ended := s.now().UTC().Truncate(time.Second)
	if info.End != nil {
		ended = *info.End
	}
	return FinalReport{EndedAt: ended, Summary: summary, Actions: actions}, nil
}

// Export builds the full meeting report. Without a running summary one is
// generated from the tail of the transcript.
func (s *Service) Export(ctx context.Context) (ExportReport, error) {
	info, err := s.store.Info(ctx)
	if err != nil {
		return ExportReport{}, fmt.Errorf("load meeting info: %w", err)
	}
	chunks, err := s.store.Chunks(ctx)
	if err != nil {
		return ExportReport{}, fmt.Errorf("load chunks: %w", err)
	}
	actions, err := s.store.ActionItems(ctx)
	if err != nil {
		return ExportReport{}, fmt.Errorf("load action items: %w", err)
	}
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return ExportReport{}, fmt.Errorf("load summary: %w", err)
	}

	if strings.TrimSpace(summary) == "" {
		summary = s.summarizeTranscript(ctx, chunks)
	}

	title := "Meeting report"
	if info.Start != nil {
		title += " " + info.Start.Format(time.RFC3339)
	}
	return ExportReport{
		Title:         title,
		MeetLink:      info.MeetLink,
		Start:         info.Start,
		End:           info.End,
		Summary:       summary,
		Actions:       actions,
		RawTranscript: chunks,
	}, nil
}

func (s *Service) summarizeTranscript(ctx context.Context, chunks []memory.Chunk) string {
	lines := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if text := c.Display(); text != "" {
			lines = append(lines, text)
		}
	}
	transcript := tailRunes(strings.Join(lines, "\n"), exportContextChars)

	summary, err := s.translator.Summarize(ctx, transcript)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Export summary failed")
		return llm.SummaryUnavailable
	}
	return summary
}

// Answer responds to a question from the summary and the latest chunks
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return "", fmt.Errorf("load summary: %w", err)
	}
	recent, err := s.store.LastChunks(ctx, QAChunks)
	if err != nil {
		return "", fmt.Errorf("load recent chunks: %w", err)
	}
	return s.translator.Answer(ctx, qaContext(summary, recent), question)
}

func qaContext(summary string, recent []memory.Chunk) string {
	var b strings.Builder
	b.WriteString("Current meeting summary:\n")
	b.WriteString(summary)
	b.WriteString("\n\nRecent excerpts (with translation):\n")
	for _, c := range recent {
		translated := ""
		if c.Translated != nil {
			translated = *c.Translated
		}
		fmt.Fprintf(&b, "- %s / %s\n", c.Text, translated)
	}
	return b.String()
}

// AddAction records a follow-up action for the meeting
func (s *Service) AddAction(ctx context.Context, item string) error {
	item = strings.TrimSpace(item)
	if item == "" {
		return ErrEmptyAction
	}
	return s.store.AddActionItem(ctx, item)
}

// Info returns the meeting metadata
func (s *Service) Info(ctx context.Context) (memory.Info, error) {
	return s.store.Info(ctx)
}

// UpdateInfo sets the meeting link and invitees, keeping start and end
func (s *Service) UpdateInfo(ctx context.Context, meetLink string, participants []string) (memory.Info, error) {
	info, err := s.store.Info(ctx)
	if err != nil {
		return memory.Info{}, fmt.Errorf("load meeting info: %w", err)
	}
	if meetLink != "" {
		info.MeetLink = meetLink
	}
	if participants != nil {
		info.Participants = participants
	}
	if err := s.store.SaveInfo(ctx, info); err != nil {
		return memory.Info{}, fmt.Errorf("save meeting info: %w", err)
	}
	return info, nil
}

// tailRunes keeps the last n characters of s
func tailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
