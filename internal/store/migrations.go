package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	anchor_date     DATETIME,
	anchor_time     TEXT NOT NULL DEFAULT '',
	recurrence      TEXT NOT NULL DEFAULT 'none'
		CHECK(recurrence IN ('none', 'daily', 'weekly', 'monthly', 'yearly')),
	completed       INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	urgency         INTEGER NOT NULL DEFAULT 0,
	notify_settings TEXT NOT NULL DEFAULT '',
	shared_with     TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS completions (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	date       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(task_id, date)
);

CREATE TABLE IF NOT EXISTS exceptions (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	date       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(task_id, date)
);

CREATE INDEX IF NOT EXISTS idx_tasks_recurrence ON tasks(recurrence);
CREATE INDEX IF NOT EXISTS idx_tasks_anchor_date ON tasks(anchor_date);
CREATE INDEX IF NOT EXISTS idx_completions_task_id ON completions(task_id);
CREATE INDEX IF NOT EXISTS idx_completions_date ON completions(date);
CREATE INDEX IF NOT EXISTS idx_exceptions_task_id ON exceptions(task_id);
CREATE INDEX IF NOT EXISTS idx_exceptions_date ON exceptions(date);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
