package meeting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lexiqai/meeting-listener/internal/llm"
	"github.com/lexiqai/meeting-listener/internal/memory"
	"github.com/rs/zerolog"
)

type stubTranslator struct {
	summarized string
	err        error
	question   string
	context    string
}

func (s *stubTranslator) Translate(ctx context.Context, text string) (string, error) { return text, nil }

func (s *stubTranslator) Summarize(ctx context.Context, transcript string) (string, error) {
	s.summarized = transcript
	if s.err != nil {
		return "", s.err
	}
	return "generated summary", nil
}

func (s *stubTranslator) UpdateSummary(ctx context.Context, cur, raw, tr string) (string, error) {
	return cur, nil
}

func (s *stubTranslator) Answer(ctx context.Context, meetingContext, question string) (string, error) {
	s.context, s.question = meetingContext, question
	return "answer", nil
}

func str(s string) *string { return &s }

func seeded(t *testing.T, n int) memory.Store {
	t.Helper()
	store := memory.NewMemoryStore()
	for i := 0; i < n; i++ {
		var tr *string
		if i%2 == 0 {
			tr = str("fr-" + string(rune('a'+i)))
		}
		if _, err := store.AppendChunk(context.Background(), "en-"+string(rune('a'+i)), tr); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store
}

func TestLiveState(t *testing.T) {
	store := seeded(t, 8)
	store.SaveInfo(context.Background(), memory.Info{MeetLink: "https://meet.example/x", Participants: []string{"Saved"}})
	svc := NewService(store, &stubTranslator{}, zerolog.Nop())

	state, err := svc.LiveState(context.Background(), "listening", "Ana", nil)
	if err != nil {
		t.Fatalf("LiveState: %v", err)
	}
	if len(state.RecentChunks) != RecentChunks || state.RecentChunks[0].Seq != 2 {
		t.Errorf("Expected the last %d chunks from seq 2, got %+v", RecentChunks, state.RecentChunks)
	}
	if state.RecentChunks[0].Translated != "fr-c" || state.RecentChunks[1].Translated != "" {
		t.Errorf("Unexpected translations %+v", state.RecentChunks[:2])
	}
	if len(state.Participants) != 1 || state.Participants[0] != "Saved" {
		t.Errorf("Expected saved participants as fallback, got %v", state.Participants)
	}

	state, _ = svc.LiveState(context.Background(), "listening", "", []string{"Detected"})
	if state.Participants[0] != "Detected" || state.MeetLink != "https://meet.example/x" {
		t.Errorf("Unexpected live state %+v", state)
	}
}

func TestExport_UsesLiveSummary(t *testing.T) {
	store := seeded(t, 2)
	store.SetSummary(context.Background(), "live summary")
	store.AddActionItem(context.Background(), "ship it")
	tr := &stubTranslator{}

	report, err := NewService(store, tr, zerolog.Nop()).Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if report.Summary != "live summary" || tr.summarized != "" {
		t.Errorf("Expected live summary without LLM call, got %q", report.Summary)
	}
	if len(report.RawTranscript) != 2 || len(report.Actions) != 1 {
		t.Errorf("Unexpected report %+v", report)
	}
}

func TestExport_SummarizesTranscriptTail(t *testing.T) {
	store := memory.NewMemoryStore()
	ctx := context.Background()
	store.AppendChunk(ctx, "raw only", nil)
	store.AppendChunk(ctx, "raw", str("translated"))
	long := strings.Repeat("x", exportContextChars)
	store.AppendChunk(ctx, long, nil)
	tr := &stubTranslator{}

	report, err := NewService(store, tr, zerolog.Nop()).Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if report.Summary != "generated summary" {
		t.Errorf("Expected generated summary, got %q", report.Summary)
	}
	if len([]rune(tr.summarized)) != exportContextChars || !strings.HasSuffix(tr.summarized, "x") {
		t.Errorf("Expected the last %d characters, got %d", exportContextChars, len(tr.summarized))
	}

	store.Reset(ctx)
	store.AppendChunk(ctx, "raw", str("translated"))
	NewService(store, tr, zerolog.Nop()).Export(ctx)
	if tr.summarized != "translated" {
		t.Errorf("Expected translation preferred, got %q", tr.summarized)
	}
}

func TestExport_SummaryFailure(t *testing.T) {
	store := seeded(t, 1)
	report, err := NewService(store, &stubTranslator{err: llm.ErrUnavailable}, zerolog.Nop()).Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if report.Summary != llm.SummaryUnavailable {
		t.Errorf("Expected unavailable text, got %q", report.Summary)
	}
}

func TestFinalReport(t *testing.T) {
	store := memory.NewMemoryStore()
	end := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	store.SaveInfo(context.Background(), memory.Info{End: &end})
	store.SetSummary(context.Background(), "done")

	report, err := NewService(store, &stubTranslator{}, zerolog.Nop()).FinalReport(context.Background())
	if err != nil {
		t.Fatalf("FinalReport: %v", err)
	}
	if !report.EndedAt.Equal(end) || report.Summary != "done" || report.Actions == nil {
		t.Errorf("Unexpected final report %+v", report)
	}
}

func TestAnswer_UsesLastTenChunks(t *testing.T) {
	store := seeded(t, 12)
	store.SetSummary(context.Background(), "the summary")
	tr := &stubTranslator{}
	svc := NewService(store, tr, zerolog.Nop())

	if _, err := svc.Answer(context.Background(), "  "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("Expected ErrEmptyQuestion, got %v", err)
	}

	out, err := svc.Answer(context.Background(), " who decided? ")
	if err != nil || out != "answer" {
		t.Fatalf("Answer: %q %v", out, err)
	}
	if tr.question != "who decided?" {
		t.Errorf("Expected trimmed question, got %q", tr.question)
	}
	if strings.Contains(tr.context, "- en-b /") || !strings.Contains(tr.context, "- en-c / fr-c") {
		t.Errorf("Expected chunks from seq 2 onwards, got %q", tr.context)
	}
	if !strings.HasPrefix(tr.context, "Current meeting summary:\nthe summary") {
		t.Errorf("Unexpected context header %q", tr.context)
	}
}

func TestActionsAndInfo(t *testing.T) {
	store := memory.NewMemoryStore()
	svc := NewService(store, &stubTranslator{}, zerolog.Nop())
	ctx := context.Background()

	if err := svc.AddAction(ctx, " "); !errors.Is(err, ErrEmptyAction) {
		t.Errorf("Expected ErrEmptyAction, got %v", err)
	}
	svc.AddAction(ctx, "send minutes")
	if items, _ := store.ActionItems(ctx); len(items) != 1 {
		t.Errorf("Expected one action, got %v", items)
	}

	start := time.Now().UTC()
	store.SaveInfo(ctx, memory.Info{Start: &start})
	info, err := svc.UpdateInfo(ctx, "https://meet.example/y", []string{"a@example.com"})
	if err != nil {
		t.Fatalf("UpdateInfo: %v", err)
	}
	if info.Start == nil || info.MeetLink != "https://meet.example/y" || len(info.Participants) != 1 {
		t.Errorf("Unexpected info %+v", info)
	}
}
