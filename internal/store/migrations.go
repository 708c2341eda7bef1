package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
//
// Aggregates are stored one row per root. Embedded collections (a project's
// tasks with their subtasks and notes, a record's entries) live in a JSON
// column and are only ever rewritten as a whole inside one transaction.
// Timestamps are fixed-width UTC text so they compare lexically.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id                       TEXT PRIMARY KEY,
	email                    TEXT NOT NULL UNIQUE,
	weekly_productivity_goal INTEGER NOT NULL DEFAULT 0 CHECK(weekly_productivity_goal >= 0),
	created_at               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	tasks      TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_projects (
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	PRIMARY KEY (user_id, project_id)
);

CREATE INDEX IF NOT EXISTS idx_user_projects_project_id ON user_projects(project_id);

CREATE TABLE IF NOT EXISTS attachments (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	data         BLOB NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attachments_created_at ON attachments(created_at);

CREATE TABLE IF NOT EXISTS productivity_records (
	id                    TEXT PRIMARY KEY,
	productivity_goal     INTEGER NOT NULL DEFAULT 0 CHECK(productivity_goal >= 0),
	productivity_achieved INTEGER NOT NULL DEFAULT 0,
	entries               TEXT NOT NULL DEFAULT '[]',
	created_at            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_productivity_records_created_at ON productivity_records(created_at);

CREATE TABLE IF NOT EXISTS user_productivity_records (
	user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	record_id TEXT NOT NULL REFERENCES productivity_records(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	PRIMARY KEY (user_id, record_id)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
