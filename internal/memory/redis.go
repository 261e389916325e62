package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the meeting memory under meeting:<id>:* keys.
// raw is a list of JSON chunks, actions a list of strings, summary and
// info plain string keys.
type RedisStore struct {
	rdb       *redis.Client
	meetingID string
	clock     func() time.Time
}

type redisChunk struct {
	Text       string  `json:"text"`
	Translated *string `json:"translated"`
	Timestamp  string  `json:"timestamp"`
}

// OpenRedis connects to the server at url and pings it
func OpenRedis(ctx context.Context, url, meetingID string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	s := NewRedisStore(redis.NewClient(opts), meetingID)
	if err := s.Ping(ctx); err != nil {
		s.rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return s, nil
}

// NewRedisStore wraps an existing client
func NewRedisStore(rdb *redis.Client, meetingID string) *RedisStore {
	return &RedisStore{rdb: rdb, meetingID: meetingID, clock: time.Now}
}

func (s *RedisStore) key(name string) string {
	return "meeting:" + s.meetingID + ":" + name
}

func (s *RedisStore) AppendChunk(ctx context.Context, text string, translated *string) (Chunk, error) {
	c := Chunk{Text: text, Timestamp: s.clock().UTC()}
	if translated != nil {
		t := *translated
		c.Translated = &t
	}
	payload, err := json.Marshal(redisChunk{Text: c.Text, Translated: c.Translated, Timestamp: c.Timestamp.Format(time.RFC3339Nano)})
	if err != nil {
		return Chunk{}, err
	}
	n, err := s.rdb.RPush(ctx, s.key("raw"), payload).Result()
	if err != nil {
		return Chunk{}, err
	}
	c.Seq = int(n - 1)
	return c, nil
}

func (s *RedisStore) Chunks(ctx context.Context) ([]Chunk, error) {
	return s.lrange(ctx, 0, -1)
}

func (s *RedisStore) LastChunks(ctx context.Context, n int) ([]Chunk, error) {
	if n <= 0 {
		return []Chunk{}, nil
	}
	return s.lrange(ctx, int64(-n), -1)
}

func (s *RedisStore) lrange(ctx context.Context, start, stop int64) ([]Chunk, error) {
	length, err := s.rdb.LLen(ctx, s.key("raw")).Result()
	if err != nil {
		return nil, err
	}
	items, err := s.rdb.LRange(ctx, s.key("raw"), start, stop).Result()
	if err != nil {
		return nil, err
	}
	// Negative start offsets count from the tail.
	first := start
	if first < 0 {
		first = length + first
		if first < 0 {
			first = 0
		}
	}

	out := make([]Chunk, 0, len(items))
	for i, item := range items {
		var rc redisChunk
		if err := json.Unmarshal([]byte(item), &rc); err != nil {
			return nil, fmt.Errorf("decode chunk: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, rc.Timestamp)
		out = append(out, Chunk{Seq: int(first) + i, Text: rc.Text, Translated: rc.Translated, Timestamp: ts})
	}
	return out, nil
}

func (s *RedisStore) SetSummary(ctx context.Context, summary string) error {
	return s.rdb.Set(ctx, s.key("summary"), summary, 0).Err()
}

func (s *RedisStore) Summary(ctx context.Context) (string, error) {
	v, err := s.rdb.Get(ctx, s.key("summary")).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *RedisStore) AddActionItem(ctx context.Context, item string) error {
	return s.rdb.RPush(ctx, s.key("actions"), item).Err()
}

func (s *RedisStore) ActionItems(ctx context.Context) ([]string, error) {
	items, err := s.rdb.LRange(ctx, s.key("actions"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

func (s *RedisStore) SaveInfo(ctx context.Context, info Info) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key("info"), payload, 0).Err()
}

func (s *RedisStore) Info(ctx context.Context) (Info, error) {
	raw, err := s.rdb.Get(ctx, s.key("info")).Bytes()
	if errors.Is(err, redis.Nil) {
		return Info{Participants: []string{}}, nil
	}
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return Info{}, fmt.Errorf("decode meeting info: %w", err)
	}
	if info.Participants == nil {
		info.Participants = []string{}
	}
	return info, nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key("raw"), s.key("summary"), s.key("actions")).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
