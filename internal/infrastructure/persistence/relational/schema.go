package relational

// ddl is the embedded store's fixed schema (spec.md 6.3): events plus
// the tables State derives its indices from. There is no
// multi-version schema to migrate — Open bootstraps this directly,
// per SPEC_FULL.md's note on why golang-migrate has no home here.
const ddl = `
CREATE TABLE IF NOT EXISTS events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid TEXT UNIQUE NOT NULL,
	type TEXT NOT NULL,
	author TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	payload BLOB NOT NULL,
	integrity BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS owners (
	owner TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS entity_versions (
	kind TEXT NOT NULL,
	uuid TEXT NOT NULL,
	version INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	hash TEXT NOT NULL DEFAULT '',
	hash_type INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	bytes_missing INTEGER NOT NULL DEFAULT 0,
	schema_uuid TEXT,
	schema_version INTEGER,
	PRIMARY KEY (kind, uuid, version)
);
CREATE INDEX IF NOT EXISTS idx_entity_versions_status ON entity_versions(kind, status, uuid);

CREATE TABLE IF NOT EXISTS annotation_objects (
	annotation_uuid TEXT NOT NULL,
	annotation_version INTEGER NOT NULL,
	object_uuid TEXT NOT NULL,
	object_version INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_annotation_objects_object ON annotation_objects(object_uuid, object_version);

CREATE TABLE IF NOT EXISTS schema_names (
	name TEXT PRIMARY KEY,
	schema_uuid TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	uuid TEXT NOT NULL,
	event_uuid TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entity_events_entity ON entity_events(kind, uuid, id);

CREATE TABLE IF NOT EXISTS review_state (
	event_uuid TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	event_type TEXT NOT NULL,
	target_kind TEXT NOT NULL DEFAULT '',
	target_uuid TEXT NOT NULL DEFAULT '',
	target_version INTEGER NOT NULL DEFAULT 0,
	is_delete_like INTEGER NOT NULL DEFAULT 0
);
`
