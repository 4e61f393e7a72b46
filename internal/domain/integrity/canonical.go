// Package integrity implements the two integrity modes of spec.md 4.5:
// hash-chaining and Ed25519 signing, both built over one canonical
// serialization of an event.
package integrity

import (
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

// canonicalWire is the JSON shape an event's integrity token is
// computed over: everything except the Integrity field itself
// (spec.md 4.5).
type canonicalWire struct {
	UUID      string           `json:"uuid"`
	Dataset   string           `json:"dataset"`
	Type      entities.EventKind `json:"type"`
	Author    string           `json:"author"`
	Timestamp entities.Timestamp `json:"timestamp"`
	Payload   entities.Payload `json:"payload"`
}

// CanonicalBytes renders the event, excluding its Integrity field, as
// RFC 8785 JSON Canonicalization Scheme bytes: lexicographically
// sorted keys, no insignificant whitespace, numbers in shortest
// round-trip form.
func CanonicalBytes(e entities.Event) ([]byte, error) {
	w := canonicalWire{
		UUID:      e.UUID.String(),
		Dataset:   e.Dataset,
		Type:      e.Type,
		Author:    e.Author,
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("integrity: marshal event: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("integrity: canonicalize event: %w", err)
	}
	return canonical, nil
}
