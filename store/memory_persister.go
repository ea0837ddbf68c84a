package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hupe1980/botmesh/core"
)

// MemoryPersister implements core.MemoryPersister backed by SQLite, mirroring
// the in-process memory store write-through.
type MemoryPersister struct {
	db *DB
}

var _ core.MemoryPersister = (*MemoryPersister)(nil)

// NewMemoryPersister creates a memory persister using the given database.
func NewMemoryPersister(db *DB) *MemoryPersister {
	return &MemoryPersister{db: db}
}

// SaveEntry upserts one scoped value.
func (p *MemoryPersister) SaveEntry(e core.Entry) error {
	var expiresAt sql.NullString
	if !e.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: e.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := p.db.sql.Exec(
		`INSERT INTO scoped_memory (owner_scope, owner_id, key, value, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_scope, owner_id, key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		string(e.Scope), e.Owner, e.Key, e.Value, expiresAt,
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save %s/%s/%s: %w", e.Scope, e.Owner, e.Key, err)
	}
	return nil
}

// DeleteEntry removes one scoped value. Absent keys are a no-op.
func (p *MemoryPersister) DeleteEntry(scope core.Scope, owner, key string) error {
	_, err := p.db.sql.Exec(
		"DELETE FROM scoped_memory WHERE owner_scope = ? AND owner_id = ? AND key = ?",
		string(scope), owner, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s/%s: %w", scope, owner, key, err)
	}
	return nil
}

// DeleteOwner removes every value of one owner within a scope.
func (p *MemoryPersister) DeleteOwner(scope core.Scope, owner string) error {
	_, err := p.db.sql.Exec(
		"DELETE FROM scoped_memory WHERE owner_scope = ? AND owner_id = ?",
		string(scope), owner)
	if err != nil {
		return fmt.Errorf("delete owner %s/%s: %w", scope, owner, err)
	}
	return nil
}

// LoadOwner reads back every live value of one owner, used to warm the
// in-process store after a restart. Expired rows are skipped.
func (p *MemoryPersister) LoadOwner(scope core.Scope, owner string) ([]core.Entry, error) {
	rows, err := p.db.sql.Query(
		`SELECT key, value, expires_at, updated_at FROM scoped_memory
		 WHERE owner_scope = ? AND owner_id = ?`,
		string(scope), owner)
	if err != nil {
		return nil, fmt.Errorf("load owner %s/%s: %w", scope, owner, err)
	}
	defer rows.Close()

	now := time.Now()
	var out []core.Entry
	for rows.Next() {
		e := core.Entry{Scope: scope, Owner: owner}
		var expiresAt sql.NullString
		var updatedAt string
		if err := rows.Scan(&e.Key, &e.Value, &expiresAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if expiresAt.Valid {
			e.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt.String)
			if !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now) {
				continue
			}
		}
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
