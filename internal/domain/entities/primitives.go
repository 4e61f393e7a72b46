// Package entities holds the wire-level types shared by every core
// component: identifiers, digests, timestamps, the event taxonomy and
// the entities the event log projects (objects, schemas, annotations,
// datasets).
package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HashType names a digest algorithm. Value 1 is the only one the core
// currently supports: SHA-256.
type HashType int

const (
	HashTypeSHA256 HashType = 1
)

func (h HashType) Valid() bool {
	return h == HashTypeSHA256
}

// Digest is the lowercase-hex rendering of a cryptographic hash.
type Digest string

// DigestOf computes the SHA-256 digest of b and renders it as the
// core's canonical lowercase-hex string.
func DigestOf(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest(hex.EncodeToString(sum[:]))
}

func (d Digest) String() string {
	return string(d)
}

// Timestamp is a UTC instant rounded to microsecond precision and
// rendered ISO-8601 with a trailing Z, per spec.md 3.1.
type Timestamp struct {
	time.Time
}

func Now() Timestamp {
	return Timestamp{time.Now().UTC().Round(time.Microsecond)}
}

const timestampLayout = "2006-01-02T15:04:05.000000Z"

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(timestampLayout) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("entities: empty timestamp")
	}
	s := string(b[1 : len(b)-1])
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		// Accept RFC3339Nano too, for timestamps that didn't round-trip
		// through our own MarshalJSON (e.g. hand-authored fixtures).
		parsed, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("entities: invalid timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// VersionedID identifies one revision of an object, schema or
// annotation: a UUID plus a dense, monotonically assigned version.
type VersionedID struct {
	UUID    uuid.UUID `json:"uuid"`
	Version int       `json:"version"`
}

func (v VersionedID) String() string {
	return fmt.Sprintf("%s@%d", v.UUID, v.Version)
}

// EntityKind names the kind of versioned entity a VersionedID or
// Status lookup refers to.
type EntityKind string

const (
	KindObject     EntityKind = "object"
	KindSchema     EntityKind = "schema"
	KindAnnotation EntityKind = "annotation"
)
