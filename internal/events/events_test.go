package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lexiqai/meeting-listener/internal/memory"
	"github.com/lexiqai/meeting-listener/internal/resilience"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Publish(ctx context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestFanout_PublishesToAll(t *testing.T) {
	a := &recorder{}
	b := &recorder{err: errors.New("b down")}
	c := &recorder{}

	err := Fanout{a, nil, b, c}.Publish(context.Background(), SessionChanged("m", "listening"))
	if err == nil {
		t.Error("Expected joined error from failing member")
	}
	if len(a.events) != 1 || len(b.events) != 1 || len(c.events) != 1 {
		t.Error("Every member should receive the event despite a failure")
	}
	if Fanout(nil).Publish(context.Background(), Event{}) != nil {
		t.Error("Empty fanout should be a no-op")
	}
}

func runNATSServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("create nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSPublisher_PublishesChunk(t *testing.T) {
	ns := runNATSServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()
	msgs := make(chan *nats.Msg, 1)
	if _, err := sub.ChanSubscribe("meeting.chunks.>", msgs); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub.Flush()

	pub, err := ConnectNATS(context.Background(), ns.ClientURL(), "meeting.chunks", &resilience.ReconnectConfig{MaxAttempts: 1}, zerolog.Nop())
	if err != nil {
		t.Fatalf("ConnectNATS: %v", err)
	}
	defer pub.Close()
	if !pub.Healthy() {
		t.Error("Expected healthy connection")
	}

	translated := "bonjour"
	ev := ChunkAppended("weekly", memory.Chunk{Seq: 3, Text: "hello", Translated: &translated})
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Subject != "meeting.chunks.chunk" {
			t.Errorf("Unexpected subject %s", msg.Subject)
		}
		var got Event
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.MeetingID != "weekly" || got.Chunk == nil || got.Chunk.Seq != 3 || *got.Chunk.Translated != "bonjour" {
			t.Errorf("Unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestConnectNATS_GivesUp(t *testing.T) {
	ns := runNATSServer(t)
	url := ns.ClientURL()
	ns.Shutdown()

	cfg := &resilience.ReconnectConfig{MaxAttempts: 2, Backoff: time.Millisecond, Multiplier: 1, MaxBackoff: time.Millisecond}
	if _, err := ConnectNATS(context.Background(), url, "s", cfg, zerolog.Nop()); err == nil {
		t.Error("Expected connect error")
	}
}
