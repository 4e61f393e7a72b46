package entities

import "github.com/google/uuid"

// AnnotationVersion is one projected revision of an annotation.
type AnnotationVersion struct {
	UUID              uuid.UUID     `json:"uuid"`
	Version           int           `json:"version"`
	Schema            VersionedID   `json:"schema"`
	ObjectIdentifiers []VersionedID `json:"object_identifiers"`
	Size              int64         `json:"size"`
	Hash              Digest        `json:"hash"`
	HashType          HashType      `json:"hash_type"`
	Status            Status        `json:"status"`
	CreatedBy         string        `json:"created_by"`
	CreatedAt         Timestamp     `json:"created_at"`
	BytesMissing      bool          `json:"bytes_missing,omitempty"`
}

// AnnotationInfo summarizes every version of one annotation UUID.
type AnnotationInfo struct {
	UUID     uuid.UUID `json:"uuid"`
	Versions int       `json:"versions"`
}
