package entities

import "github.com/google/uuid"

// ObjectVersion is one projected revision of an object.
type ObjectVersion struct {
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
	// BytesMissing marks an entity whose creating event is log-present
	// but whose depot write failed (spec.md 4.6).
	BytesMissing bool `json:"bytes_missing,omitempty"`
}

// ObjectInfo summarizes every version of one object UUID.
type ObjectInfo struct {
	UUID     uuid.UUID `json:"uuid"`
	Versions int       `json:"versions"`
}
