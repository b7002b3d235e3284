package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maxPayloadChars caps the command text stored per row.
const maxPayloadChars = 4096

var ErrJournalClosed = errors.New("journal is closed")

// CommandRecord is one dispatched envelope.
type CommandRecord struct {
	ID           string
	Engine       string
	Kind         string
	Payload      string
	PayloadBytes int
	EnqueuedAt   time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Duration is how long the engine call took.
func (r CommandRecord) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Journal appends and reads command_log rows.
type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// OpenJournal opens the database at path and wraps it in a Journal.
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewJournal(db), nil
}

// Record appends rec. Weights payloads are stored by size only.
func (j *Journal) Record(ctx context.Context, rec CommandRecord) error {
	if j == nil || j.db == nil {
		return ErrJournalClosed
	}
	if rec.ID == "" {
		return fmt.Errorf("record id is empty")
	}

	payload := rec.Payload
	if len(payload) > maxPayloadChars {
		payload = payload[:maxPayloadChars]
	}
	var engine any
	if rec.Engine != "" {
		engine = rec.Engine
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO command_log(id, engine, kind, payload, payload_bytes, enqueued_at, started_at, completed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, engine, rec.Kind, payload, rec.PayloadBytes,
		formatTime(rec.EnqueuedAt), formatTime(rec.StartedAt), formatTime(rec.CompletedAt))
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. An empty engine matches all.
func (j *Journal) Recent(ctx context.Context, engine string, limit int) ([]CommandRecord, error) {
	if j == nil || j.db == nil {
		return nil, ErrJournalClosed
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, engine, kind, payload, payload_bytes, enqueued_at, started_at, completed_at
FROM command_log
WHERE (? = '' OR engine = ?)
ORDER BY seq DESC
LIMIT ?;
`, engine, engine, limit)
	if err != nil {
		return nil, fmt.Errorf("query command log: %w", err)
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var (
			rec                             CommandRecord
			engineS, payload                sql.NullString
			enqueuedS, startedS, completedS string
		)
		if err := rows.Scan(&rec.ID, &engineS, &rec.Kind, &payload, &rec.PayloadBytes, &enqueuedS, &startedS, &completedS); err != nil {
			return nil, fmt.Errorf("scan command log: %w", err)
		}
		rec.Engine = engineS.String
		rec.Payload = payload.String
		rec.EnqueuedAt = parseTime(enqueuedS)
		rec.StartedAt = parseTime(startedS)
		rec.CompletedAt = parseTime(completedS)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate command log: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
