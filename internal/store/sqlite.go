// Package store persists observation records in an embedded SQLite file and
// answers the aggregate queries behind the dashboard.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/invisible-tech/network-event-observer/pkg/observe"
)

// TableName is the table observation records are written to.
const TableName = "openai_records"

// Properties that may be grouped on by CountBy.
const (
	PropertyEventType = "event_type"
	PropertyRiskLevel = "risk_level"
	PropertyProtocol  = "protocol"
)

var groupable = map[string]bool{
	PropertyEventType: true,
	PropertyRiskLevel: true,
	PropertyProtocol:  true,
}

// Timestamps are stored fixed-width so text order is time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

type Store struct {
	db   *sql.DB
	path string
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn, err := fileDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	st := &Store{db: db, path: path}
	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// fileDSN renders path as an SQLite URI filename. The path is escaped so
// that '#', '?' and '%' stay part of the file name.
func fileDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	// The generator writes while the dashboard reads from another process.
	q := url.Values{
		"_pragma": []string{"busy_timeout(5000)", "journal_mode(WAL)"},
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: q.Encode()}
	return u.String(), nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS ` + TableName + ` (
  id TEXT PRIMARY KEY,
  model TEXT NOT NULL,
  timestamp TEXT NOT NULL,
  messages TEXT,
  assistant_message TEXT,
  prompt_tokens INTEGER NOT NULL DEFAULT 0,
  completion_tokens INTEGER NOT NULL DEFAULT 0,
  total_tokens INTEGER NOT NULL DEFAULT 0,
  finish_reason TEXT,
  latency_ms INTEGER NOT NULL DEFAULT 0,
  tags TEXT,
  properties TEXT,
  error TEXT,
  raw_response TEXT
);
CREATE INDEX IF NOT EXISTS idx_` + TableName + `_ts ON ` + TableName + `(timestamp);
`)
	return err
}

// Insert writes one observation record. It satisfies observe.Recorder.
func (s *Store) Insert(ctx context.Context, rec observe.Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("record id is empty")
	}
	if rec.Timestamp.IsZero() {
		return errors.New("timestamp is zero")
	}

	tags, err := nullableJSON(rec.Tags, len(rec.Tags) == 0)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	props, err := nullableJSON(rec.Properties, len(rec.Properties) == 0)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO `+TableName+` (id, model, timestamp, messages, assistant_message,
  prompt_tokens, completion_tokens, total_tokens, finish_reason, latency_ms,
  tags, properties, error, raw_response)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Model,
		rec.Timestamp.UTC().Format(timestampLayout),
		nullableString(string(rec.Messages)),
		nullableString(rec.AssistantMessage),
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		nullableString(rec.FinishReason),
		rec.LatencyMS,
		tags,
		props,
		nullableString(rec.Error),
		nullableString(string(rec.RawResponse)),
	)
	return err
}

// Get loads a record by id.
func (s *Store) Get(ctx context.Context, id string) (observe.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, model, timestamp, messages, assistant_message,
  prompt_tokens, completion_tokens, total_tokens, finish_reason, latency_ms,
  tags, properties, error, raw_response
FROM `+TableName+` WHERE id = ?`, id)

	var (
		rec                                      observe.Record
		ts                                       string
		messages, assistant, finish, tags, props sql.NullString
		errText, raw                             sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Model, &ts, &messages, &assistant,
		&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &finish, &rec.LatencyMS,
		&tags, &props, &errText, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return observe.Record{}, ErrNotFound
	}
	if err != nil {
		return observe.Record{}, err
	}

	rec.Timestamp, err = time.Parse(timestampLayout, ts)
	if err != nil {
		return observe.Record{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	rec.AssistantMessage = assistant.String
	rec.FinishReason = finish.String
	rec.Error = errText.String
	if messages.Valid {
		rec.Messages = json.RawMessage(messages.String)
	}
	if raw.Valid {
		rec.RawResponse = json.RawMessage(raw.String)
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &rec.Tags); err != nil {
			return observe.Record{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	if props.Valid {
		if err := json.Unmarshal([]byte(props.String), &rec.Properties); err != nil {
			return observe.Record{}, fmt.Errorf("decode properties: %w", err)
		}
	}
	return rec, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(v interface{}, empty bool) (interface{}, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
