package entities

import "github.com/google/uuid"

// SchemaFormat is the fixed mimetype every schema's bytes are declared
// under, regardless of what the caller supplies (spec.md 3.2).
const SchemaFormat = "application/schema+json"

// SchemaNamePrefix is the required prefix for every schema name
// (spec.md 4.2, SchemaCreate precondition).
const SchemaNamePrefix = "schema-"

// SchemaVersion is one projected revision of a schema.
type SchemaVersion struct {
	UUID      uuid.UUID `json:"uuid"`
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Size      int64     `json:"size"`
	Hash      Digest    `json:"hash"`
	HashType  HashType  `json:"hash_type"`
	Status    Status    `json:"status"`
	CreatedBy string    `json:"created_by"`
	CreatedAt Timestamp `json:"created_at"`
	BytesMissing bool   `json:"bytes_missing,omitempty"`
}

// SchemaInfo summarizes every version of one schema UUID under its
// (dataset-unique) name.
type SchemaInfo struct {
	Name     string    `json:"name"`
	UUID     uuid.UUID `json:"uuid"`
	Versions int       `json:"versions"`
}
