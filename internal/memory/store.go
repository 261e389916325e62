package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/lexiqai/meeting-listener/internal/config"
)

// Chunk is one persisted transcript entry. Seq is its append position.
// Translated is nil when translation was inactive.
type Chunk struct {
	Seq        int       `json:"seq"`
	Text       string    `json:"text"`
	Translated *string   `json:"translated"`
	Timestamp  time.Time `json:"timestamp"`
}

// Display prefers the translation when there is one
func (c Chunk) Display() string {
	if c.Translated != nil && *c.Translated != "" {
		return *c.Translated
	}
	return c.Text
}

// Info is the metadata of the current meeting
type Info struct {
	MeetLink     string     `json:"meet_link,omitempty"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	Participants []string   `json:"participants"`
}

// Store is the meeting memory of the single current meeting.
// Chunks are append-only and returned in append order.
type Store interface {
	AppendChunk(ctx context.Context, text string, translated *string) (Chunk, error)
	Chunks(ctx context.Context) ([]Chunk, error)
	LastChunks(ctx context.Context, n int) ([]Chunk, error)

	SetSummary(ctx context.Context, summary string) error
	Summary(ctx context.Context) (string, error)

	AddActionItem(ctx context.Context, item string) error
	ActionItems(ctx context.Context) ([]string, error)

	SaveInfo(ctx context.Context, info Info) error
	Info(ctx context.Context) (Info, error)

	// Reset clears chunks, summary and action items. Info is kept.
	Reset(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by STORE_MODE
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreMode {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.SQLitePath, cfg.MeetingID)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := OpenRedis(ctx, cfg.RedisURL, cfg.MeetingID)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown STORE_MODE %q", cfg.StoreMode)
}

// tail returns the last n chunks of all
func tail(all []Chunk, n int) []Chunk {
	if n <= 0 {
		return []Chunk{}
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}
