// Package db implements the connection pool (C4) and schema/migration
// runner (C3) over the embedded SQL engine. It owns every row- and
// embedding-table's DDL; storage and vector-index code never issues DDL
// of its own.
package db

// SchemaVersion is the version stamped into schema_migrations by
// InitializeSchema for the baseline schema below.
const SchemaVersion = 1

// Allowlisted table names. vectorindex routes every caller-supplied table
// name through these constants, so an UnknownTable error is raised
// deterministically at the boundary. storage's per-kind SQL names its own
// table directly.
const (
	TableRules       = "rules"
	TableProjectDocs = "project_docs"
	TableRefs        = "refs"
)

// schemaV1 is the full baseline DDL, applied atomically by InitializeSchema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	description TEXT
);

CREATE TABLE IF NOT EXISTS rules (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	embedding  BLOB,
	tags       TEXT NOT NULL DEFAULT '[]',
	tier       INTEGER CHECK(tier BETWEEN 1 AND 5),
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rules_tier       ON rules(tier);
CREATE INDEX IF NOT EXISTS idx_rules_created_at ON rules(created_at);
CREATE INDEX IF NOT EXISTS idx_rules_updated_at ON rules(updated_at);

CREATE TRIGGER IF NOT EXISTS trg_rules_updated_at
AFTER UPDATE ON rules
BEGIN
	UPDATE rules SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
END;

CREATE TABLE IF NOT EXISTS project_docs (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	file_path  TEXT,
	embedding  BLOB,
	tags       TEXT NOT NULL DEFAULT '[]',
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_project_docs_project_id ON project_docs(project_id);
CREATE INDEX IF NOT EXISTS idx_project_docs_created_at ON project_docs(created_at);
CREATE INDEX IF NOT EXISTS idx_project_docs_updated_at ON project_docs(updated_at);

CREATE TRIGGER IF NOT EXISTS trg_project_docs_updated_at
AFTER UPDATE ON project_docs
BEGIN
	UPDATE project_docs SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
END;

CREATE TABLE IF NOT EXISTS refs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	content    TEXT NOT NULL,
	embedding  BLOB,
	channel_id TEXT,
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_refs_channel_id ON refs(channel_id);
CREATE INDEX IF NOT EXISTS idx_refs_name       ON refs(name);
CREATE INDEX IF NOT EXISTS idx_refs_created_at ON refs(created_at);
CREATE INDEX IF NOT EXISTS idx_refs_updated_at ON refs(updated_at);

CREATE TRIGGER IF NOT EXISTS trg_refs_updated_at
AFTER UPDATE ON refs
BEGIN
	UPDATE refs SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
END;
`
