package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lexiqai/meeting-listener/internal/config"
	"github.com/redis/go-redis/v9"
)

func strPtr(s string) *string { return &s }

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	chunks, err := s.Chunks(ctx)
	if err != nil {
		t.Fatalf("Chunks on empty store: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("Expected no chunks, got %d", len(chunks))
	}

	first, err := s.AppendChunk(ctx, "hello", strPtr("bonjour"))
	if err != nil {
		t.Fatalf("AppendChunk: %v", err)
	}
	if first.Seq != 0 {
		t.Errorf("Expected seq 0, got %d", first.Seq)
	}
	for _, text := range []string{"one", "two", "three"} {
		if _, err := s.AppendChunk(ctx, text, nil); err != nil {
			t.Fatalf("AppendChunk(%s): %v", text, err)
		}
	}

	chunks, err = s.Chunks(ctx)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("Expected 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Seq != i {
			t.Errorf("Chunk %d has seq %d", i, c.Seq)
		}
	}
	if chunks[0].Translated == nil || *chunks[0].Translated != "bonjour" {
		t.Errorf("Expected translated 'bonjour', got %v", chunks[0].Translated)
	}
	if chunks[1].Translated != nil {
		t.Errorf("Expected nil translation, got %q", *chunks[1].Translated)
	}
	if chunks[0].Display() != "bonjour" || chunks[1].Display() != "one" {
		t.Error("Display should prefer the translation")
	}

	last, err := s.LastChunks(ctx, 2)
	if err != nil {
		t.Fatalf("LastChunks: %v", err)
	}
	if len(last) != 2 || last[0].Text != "two" || last[1].Text != "three" || last[0].Seq != 2 {
		t.Errorf("Unexpected tail %+v", last)
	}
	if all, _ := s.LastChunks(ctx, 10); len(all) != 4 || all[0].Seq != 0 {
		t.Errorf("Expected whole list when n exceeds length, got %+v", all)
	}

	if err := s.SetSummary(ctx, "summary v1"); err != nil {
		t.Fatalf("SetSummary: %v", err)
	}
	if err := s.SetSummary(ctx, "summary v2"); err != nil {
		t.Fatalf("SetSummary: %v", err)
	}
	if got, _ := s.Summary(ctx); got != "summary v2" {
		t.Errorf("Expected latest summary, got %q", got)
	}

	s.AddActionItem(ctx, "send notes")
	s.AddActionItem(ctx, "book follow-up")
	if items, _ := s.ActionItems(ctx); len(items) != 2 || items[1] != "book follow-up" {
		t.Errorf("Unexpected action items %v", items)
	}

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.SaveInfo(ctx, Info{MeetLink: "https://meet.example/abc", Start: &start, Participants: []string{"Ana", "Bo"}}); err != nil {
		t.Fatalf("SaveInfo: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if chunks, _ := s.Chunks(ctx); len(chunks) != 0 {
		t.Errorf("Expected no chunks after reset, got %d", len(chunks))
	}
	if got, _ := s.Summary(ctx); got != "" {
		t.Errorf("Expected empty summary after reset, got %q", got)
	}
	if items, _ := s.ActionItems(ctx); len(items) != 0 {
		t.Errorf("Expected no action items after reset, got %v", items)
	}

	info, err := s.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.MeetLink != "https://meet.example/abc" || info.Start == nil || !info.Start.Equal(start) || len(info.Participants) != 2 {
		t.Errorf("Info should survive reset, got %+v", info)
	}

	if c, _ := s.AppendChunk(ctx, "again", nil); c.Seq != 0 {
		t.Errorf("Expected seq to restart at 0 after reset, got %d", c.Seq)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "meeting.db"), "m1")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore_ScopedByMeeting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meeting.db")
	ctx := context.Background()
	a, err := OpenSQLite(ctx, path, "a")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer a.Close()
	b, err := OpenSQLite(ctx, path, "b")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer b.Close()

	a.AppendChunk(ctx, "from a", nil)
	if chunks, _ := b.Chunks(ctx); len(chunks) != 0 {
		t.Errorf("Expected meeting b to be empty, got %d chunks", len(chunks))
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0", "m1")
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "weekly")
	defer s.Close()
	ctx := context.Background()

	s.AppendChunk(ctx, "hello", nil)
	s.SetSummary(ctx, "short")
	s.AddActionItem(ctx, "todo")

	if !mr.Exists("meeting:weekly:raw") || !mr.Exists("meeting:weekly:actions") {
		t.Error("Expected list keys under meeting:weekly:")
	}
	if got, _ := mr.Get("meeting:weekly:summary"); got != "short" {
		t.Errorf("Expected summary key, got %q", got)
	}
}

func TestOpenRedis_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()
	if _, err := OpenRedis(context.Background(), "redis://"+addr, "m"); err == nil {
		t.Error("Expected ping error")
	}
}

func TestOpen_Modes(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, &config.Config{StoreMode: "memory"})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Expected *MemoryStore, got %T", s)
	}

	s, err = Open(ctx, &config.Config{StoreMode: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "m.db"), MeetingID: "x"})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	s.Close()

	if _, err := Open(ctx, &config.Config{StoreMode: "mongo"}); err == nil {
		t.Error("Expected error for unknown mode")
	}
}
