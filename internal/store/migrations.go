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

CREATE TABLE IF NOT EXISTS notifications (
	id                     TEXT PRIMARY KEY,
	audience               TEXT NOT NULL CHECK(audience IN ('student', 'admin')),
	kind                   TEXT NOT NULL,
	title                  TEXT NOT NULL,
	message                TEXT NOT NULL DEFAULT '',
	is_read                INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	is_important           INTEGER NOT NULL DEFAULT 0 CHECK(is_important IN (0, 1)),
	related_document_id    TEXT,
	related_application_id TEXT,
	created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	read_at                DATETIME
);

CREATE INDEX IF NOT EXISTS idx_notifications_audience_created
	ON notifications(audience, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_audience_read
	ON notifications(audience, is_read);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE notifications ADD COLUMN actor_name TEXT NOT NULL DEFAULT '';
ALTER TABLE notifications ADD COLUMN metadata_label TEXT NOT NULL DEFAULT '';

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
