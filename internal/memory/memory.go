package memory

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the meeting memory in process. Used in tests and
// single-binary deployments without Redis.
type MemoryStore struct {
	mu      sync.RWMutex
	chunks  []Chunk
	summary string
	actions []string
	info    Info
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) AppendChunk(ctx context.Context, text string, translated *string) (Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Chunk{Seq: len(m.chunks), Text: text, Timestamp: m.now().UTC()}
	if translated != nil {
		t := *translated
		c.Translated = &t
	}
	m.chunks = append(m.chunks, c)
	return c, nil
}

func (m *MemoryStore) Chunks(ctx context.Context) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Chunk{}, m.chunks...), nil
}

func (m *MemoryStore) LastChunks(ctx context.Context, n int) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Chunk{}, tail(m.chunks, n)...), nil
}

func (m *MemoryStore) SetSummary(ctx context.Context, summary string) error {
	m.mu.Lock()
	m.summary = summary
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Summary(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary, nil
}

func (m *MemoryStore) AddActionItem(ctx context.Context, item string) error {
	m.mu.Lock()
	m.actions = append(m.actions, item)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ActionItems(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.actions...), nil
}

func (m *MemoryStore) SaveInfo(ctx context.Context, info Info) error {
	m.mu.Lock()
	info.Participants = append([]string(nil), info.Participants...)
	m.info = info
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Info(ctx context.Context) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := m.info
	info.Participants = append([]string{}, m.info.Participants...)
	return info, nil
}

func (m *MemoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.chunks = nil
	m.summary = ""
	m.actions = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
