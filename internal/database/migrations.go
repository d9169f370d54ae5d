package database

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);
`

// migrations[i] upgrades the schema from version i to i+1
var migrations = []string{
	// 1: archived messages
	`
CREATE TABLE IF NOT EXISTS mailarchive (
    id TEXT PRIMARY KEY,
    subject TEXT,
    fromheader TEXT,
    toheader TEXT,
    date INTEGER NOT NULL,
    body TEXT,
    allheaders TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_mailarchive_date ON mailarchive(date);
`,
	// 2: user comments
	`
ALTER TABLE mailarchive ADD COLUMN comment TEXT NOT NULL DEFAULT '';
`,
	// 3: stored attachments
	`
CREATE TABLE IF NOT EXISTS attachments (
    owner_id TEXT NOT NULL REFERENCES mailarchive(id) ON DELETE CASCADE,
    filename TEXT NOT NULL,
    size INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE(owner_id, filename)
);

CREATE INDEX IF NOT EXISTS idx_attachments_owner ON attachments(owner_id);
`,
}
