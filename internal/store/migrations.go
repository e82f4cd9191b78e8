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

CREATE TABLE IF NOT EXISTS classes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	code       TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS assignments (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	class_id       INTEGER NOT NULL REFERENCES classes(id),
	title          TEXT NOT NULL,
	description    TEXT,
	due_date       DATETIME NOT NULL,
	reminder_hours INTEGER NOT NULL DEFAULT 24,
	status         TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'completed')),
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	reminded_at    DATETIME
);

CREATE TABLE IF NOT EXISTS notes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	class_id   INTEGER NOT NULL REFERENCES classes(id),
	content    TEXT NOT NULL,
	note_type  TEXT NOT NULL DEFAULT 'general',
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS processed_emails (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	email_id     TEXT NOT NULL UNIQUE,
	subject      TEXT NOT NULL DEFAULT '',
	processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_assignments_due_date ON assignments(due_date);
CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);
CREATE INDEX IF NOT EXISTS idx_notes_class_id ON notes(class_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS attachments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	email_id   TEXT NOT NULL,
	filename   TEXT NOT NULL,
	filepath   TEXT NOT NULL,
	note_id    INTEGER REFERENCES notes(id) ON DELETE SET NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_attachments_note_id ON attachments(note_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
ALTER TABLE notes ADD COLUMN formatted_file_path TEXT;

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
