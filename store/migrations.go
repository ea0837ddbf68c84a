package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create a2a message log",
		SQL: `
			CREATE TABLE a2a_messages (
				id             TEXT PRIMARY KEY,
				correlation_id TEXT NOT NULL,
				session_id     TEXT NOT NULL,
				from_agent     TEXT NOT NULL,
				to_agent       TEXT NOT NULL,
				message_type   TEXT NOT NULL,
				payload        TEXT NOT NULL,
				hop_count      INTEGER NOT NULL DEFAULT 0,
				status         TEXT NOT NULL,
				created_at     TEXT NOT NULL
			);

			CREATE INDEX idx_a2a_session ON a2a_messages (session_id, created_at);
			CREATE INDEX idx_a2a_correlation ON a2a_messages (correlation_id);
		`,
	},
	{
		Version: 2,
		Name:    "create scoped memory",
		SQL: `
			CREATE TABLE scoped_memory (
				owner_scope TEXT NOT NULL,
				owner_id    TEXT NOT NULL,
				key         TEXT NOT NULL,
				value       TEXT NOT NULL,
				expires_at  TEXT,
				updated_at  TEXT NOT NULL,
				PRIMARY KEY (owner_scope, owner_id, key)
			);

			CREATE INDEX idx_memory_owner ON scoped_memory (owner_scope, owner_id);
		`,
	},
	{
		Version: 3,
		Name:    "create session bots",
		SQL: `
			CREATE TABLE session_bots (
				session_id   TEXT NOT NULL,
				agent_id     TEXT NOT NULL,
				triggers     TEXT NOT NULL DEFAULT '',
				tools        TEXT NOT NULL DEFAULT '',
				schedule     TEXT NOT NULL DEFAULT '',
				model_class  TEXT NOT NULL DEFAULT '',
				priority     INTEGER NOT NULL DEFAULT 0,
				active       INTEGER NOT NULL DEFAULT 1,
				activated_at TEXT NOT NULL,
				PRIMARY KEY (session_id, agent_id)
			);
		`,
	},
}
