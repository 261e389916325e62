package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the meeting memory in a local SQLite file
type SQLiteStore struct {
	db        *sql.DB
	meetingID string
	clock     func() time.Time
}

// OpenSQLite opens (or creates) the database at path
func OpenSQLite(ctx context.Context, path, meetingID string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Seq allocation relies on a single writer connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, meetingID: meetingID, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS chunks (
    meeting_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    text TEXT NOT NULL,
    translated TEXT,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (meeting_id, seq)
);
CREATE TABLE IF NOT EXISTS meetings (
    meeting_id TEXT PRIMARY KEY,
    summary TEXT NOT NULL DEFAULT '',
    info TEXT
);
CREATE TABLE IF NOT EXISTS action_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    meeting_id TEXT NOT NULL,
    item TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_items_meeting ON action_items(meeting_id, id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendChunk(ctx context.Context, text string, translated *string) (Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Chunk{}, err
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM chunks WHERE meeting_id = ?`, s.meetingID).Scan(&seq); err != nil {
		return Chunk{}, err
	}

	c := Chunk{Seq: seq, Text: text, Timestamp: s.clock().UTC()}
	var tr sql.NullString
	if translated != nil {
		t := *translated
		c.Translated = &t
		tr = sql.NullString{String: t, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chunks(meeting_id, seq, text, translated, created_at) VALUES(?, ?, ?, ?, ?)`,
		s.meetingID, seq, text, tr, c.Timestamp.UnixNano()); err != nil {
		return Chunk{}, err
	}
	if err := tx.Commit(); err != nil {
		return Chunk{}, err
	}
	return c, nil
}

func (s *SQLiteStore) Chunks(ctx context.Context) ([]Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT seq, text, translated, created_at FROM chunks WHERE meeting_id = ? ORDER BY seq`, s.meetingID)
}

func (s *SQLiteStore) LastChunks(ctx context.Context, n int) ([]Chunk, error) {
	if n <= 0 {
		return []Chunk{}, nil
	}
	rows, err := s.queryChunks(ctx,
		`SELECT seq, text, translated, created_at FROM chunks WHERE meeting_id = ? ORDER BY seq DESC LIMIT ?`,
		s.meetingID, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *SQLiteStore) queryChunks(ctx context.Context, query string, args ...any) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Chunk{}
	for rows.Next() {
		var (
			c  Chunk
			tr sql.NullString
			ts int64
		)
		if err := rows.Scan(&c.Seq, &c.Text, &tr, &ts); err != nil {
			return nil, err
		}
		if tr.Valid {
			t := tr.String
			c.Translated = &t
		}
		c.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetSummary(ctx context.Context, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings(meeting_id, summary) VALUES(?, ?)
		 ON CONFLICT(meeting_id) DO UPDATE SET summary = excluded.summary`,
		s.meetingID, summary)
	return err
}

func (s *SQLiteStore) Summary(ctx context.Context) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM meetings WHERE meeting_id = ?`, s.meetingID).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return summary, err
}

func (s *SQLiteStore) AddActionItem(ctx context.Context, item string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_items(meeting_id, item) VALUES(?, ?)`, s.meetingID, item)
	return err
}

func (s *SQLiteStore) ActionItems(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item FROM action_items WHERE meeting_id = ? ORDER BY id`, s.meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []string{}
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) SaveInfo(ctx context.Context, info Info) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meetings(meeting_id, info) VALUES(?, ?)
		 ON CONFLICT(meeting_id) DO UPDATE SET info = excluded.info`,
		s.meetingID, string(payload))
	return err
}

func (s *SQLiteStore) Info(ctx context.Context) (Info, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT info FROM meetings WHERE meeting_id = ?`, s.meetingID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return Info{Participants: []string{}}, nil
	}
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal([]byte(raw.String), &info); err != nil {
		return Info{}, fmt.Errorf("decode meeting info: %w", err)
	}
	if info.Participants == nil {
		info.Participants = []string{}
	}
	return info, nil
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM chunks WHERE meeting_id = ?`,
		`DELETE FROM action_items WHERE meeting_id = ?`,
		`UPDATE meetings SET summary = '' WHERE meeting_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, s.meetingID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
