package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/botmesh/core"
)

// BindingStore implements core.BindingStore backed by SQLite, mirroring
// registry mutations.
type BindingStore struct {
	db *DB
}

var _ core.BindingStore = (*BindingStore)(nil)

// NewBindingStore creates a binding store using the given database.
func NewBindingStore(db *DB) *BindingStore {
	return &BindingStore{db: db}
}

// SaveBinding upserts the binding row.
func (s *BindingStore) SaveBinding(b core.Binding) error {
	active := 0
	if b.Active {
		active = 1
	}
	_, err := s.db.sql.Exec(
		`INSERT INTO session_bots
			(session_id, agent_id, triggers, tools, schedule, model_class, priority, active, activated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, agent_id) DO UPDATE SET
			triggers = excluded.triggers,
			tools = excluded.tools,
			schedule = excluded.schedule,
			model_class = excluded.model_class,
			priority = excluded.priority,
			active = excluded.active`,
		b.SessionID, b.AgentID,
		strings.Join(b.Triggers, ","), strings.Join(b.Tools, ","),
		b.Schedule, b.ModelClass, b.Priority, active,
		b.ActivatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save binding %s/%s: %w", b.SessionID, b.AgentID, err)
	}
	return nil
}

// DeleteBinding removes one binding row.
func (s *BindingStore) DeleteBinding(sessionID, agentID string) error {
	_, err := s.db.sql.Exec(
		"DELETE FROM session_bots WHERE session_id = ? AND agent_id = ?",
		sessionID, agentID)
	if err != nil {
		return fmt.Errorf("delete binding %s/%s: %w", sessionID, agentID, err)
	}
	return nil
}

// DeleteSessionBindings removes every binding of the session.
func (s *BindingStore) DeleteSessionBindings(sessionID string) error {
	_, err := s.db.sql.Exec(
		"DELETE FROM session_bots WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("delete bindings of %s: %w", sessionID, err)
	}
	return nil
}

// LoadSession reads back the bindings of one session, used to warm the
// registry after a restart.
func (s *BindingStore) LoadSession(sessionID string) ([]core.Binding, error) {
	rows, err := s.db.sql.Query(
		`SELECT agent_id, triggers, tools, schedule, model_class, priority, active, activated_at
		 FROM session_bots WHERE session_id = ? ORDER BY activated_at, agent_id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("load bindings of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []core.Binding
	for rows.Next() {
		b := core.Binding{SessionID: sessionID}
		var triggers, tools, activatedAt string
		var active int
		if err := rows.Scan(&b.AgentID, &triggers, &tools, &b.Schedule,
			&b.ModelClass, &b.Priority, &active, &activatedAt); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		b.Triggers = splitList(triggers)
		b.Tools = splitList(tools)
		b.Active = active != 0
		b.ActivatedAt, _ = time.Parse(time.RFC3339Nano, activatedAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
