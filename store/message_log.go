package store

import (
	"fmt"
	"time"

	"github.com/hupe1980/botmesh/core"
)

// MessageLog implements core.MessageLog backed by SQLite.
type MessageLog struct {
	db *DB
}

var _ core.MessageLog = (*MessageLog)(nil)

// NewMessageLog creates a message log using the given database.
func NewMessageLog(db *DB) *MessageLog {
	return &MessageLog{db: db}
}

// Record appends the message to the audit log. A message recorded twice (a
// retried attempt id never is, but a replayed copy could be) upserts in
// place.
func (l *MessageLog) Record(m core.Message) error {
	_, err := l.db.sql.Exec(
		`INSERT INTO a2a_messages
			(id, correlation_id, session_id, from_agent, to_agent, message_type, payload, hop_count, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status`,
		m.ID, m.CorrelationID, m.SessionID, m.From, m.To,
		string(m.Kind), m.Payload, m.HopCount, string(m.Status),
		m.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record message %s: %w", m.ID, err)
	}
	return nil
}

// UpdateStatus sets the terminal status of a previously recorded message.
func (l *MessageLog) UpdateStatus(id string, status core.Status) error {
	res, err := l.db.sql.Exec(
		"UPDATE a2a_messages SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update status of %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("message %s not recorded", id)
	}
	return nil
}

// History returns up to limit messages of a session, oldest first.
func (l *MessageLog) History(sessionID string, limit int) ([]core.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.sql.Query(
		`SELECT id, correlation_id, session_id, from_agent, to_agent, message_type, payload, hop_count, status, created_at
		 FROM a2a_messages WHERE session_id = ? ORDER BY created_at, id LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		var m core.Message
		var kind, status, createdAt string
		if err := rows.Scan(&m.ID, &m.CorrelationID, &m.SessionID, &m.From, &m.To,
			&kind, &m.Payload, &m.HopCount, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Kind = core.ParseKind(kind)
		m.Status = core.Status(status)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
