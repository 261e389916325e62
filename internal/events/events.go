package events

import (
	"context"
	"errors"
	"time"

	"github.com/lexiqai/meeting-listener/internal/memory"
)

const (
	TypeChunk   = "chunk"
	TypeSession = "session"
)

// Event is what subscribers see when the meeting record changes
type Event struct {
	Type      string        `json:"type"`
	MeetingID string        `json:"meeting_id"`
	Chunk     *memory.Chunk `json:"chunk,omitempty"`
	Status    string        `json:"status,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ChunkAppended builds the event for a freshly persisted chunk
func ChunkAppended(meetingID string, c memory.Chunk) Event {
	return Event{Type: TypeChunk, MeetingID: meetingID, Chunk: &c, Timestamp: time.Now().UTC()}
}

// SessionChanged builds the event for a session status transition
func SessionChanged(meetingID, status string) Event {
	return Event{Type: TypeSession, MeetingID: meetingID, Status: status, Timestamp: time.Now().UTC()}
}

// Publisher delivers events to some audience. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout publishes to every member and joins their errors
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
