package entities

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind is the closed set of event tags the core understands.
// Validators and projections switch exhaustively over this type
// (DESIGN NOTES: Dynamic event dispatch) rather than using runtime
// type identity.
type EventKind string

const (
	KindOwnerAdd         EventKind = "owner_add"
	KindOwnerRemove      EventKind = "owner_remove"
	KindObjectCreate     EventKind = "object_create"
	KindObjectUpdate     EventKind = "object_update"
	KindObjectDelete     EventKind = "object_delete"
	KindSchemaCreate     EventKind = "schema_create"
	KindSchemaUpdate     EventKind = "schema_update"
	KindSchemaDeprecate  EventKind = "schema_deprecate"
	KindAnnotationCreate EventKind = "annotation_create"
	KindAnnotationUpdate EventKind = "annotation_update"
	KindAnnotationDelete EventKind = "annotation_delete"
	KindReviewAccept     EventKind = "review_accept"
	KindReviewReject     EventKind = "review_reject"
)

// IsReview reports whether the event kind is one of the two review
// events. Review events are never themselves reviewable (spec.md 4.1).
func (k EventKind) IsReview() bool {
	return k == KindReviewAccept || k == KindReviewReject
}

// Payload is implemented by every event's type-specific body.
type Payload interface {
	Kind() EventKind
}

const (
	OwnerActionAdd    = 1
	OwnerActionRemove = 2
)

const (
	ActionCreate = 1
	ActionUpdate = 2
)

type ObjectRef struct {
	UUID     uuid.UUID `json:"uuid"`
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Format   string    `json:"format"`
	Size     int64     `json:"size"`
	Hash     Digest    `json:"hash"`
	HashType HashType  `json:"hash_type"`
}

type SchemaRef struct {
	UUID     uuid.UUID `json:"uuid"`
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Format   string    `json:"format"`
	Size     int64     `json:"size"`
	Hash     Digest    `json:"hash"`
	HashType HashType  `json:"hash_type"`
}

type AnnotationRef struct {
	UUID     uuid.UUID   `json:"uuid"`
	Version  int         `json:"version"`
	Schema   VersionedID `json:"schema"`
	Size     int64       `json:"size"`
	Hash     Digest      `json:"hash"`
	HashType HashType    `json:"hash_type"`
}

type OwnerAddPayload struct {
	Owner       string `json:"owner"`
	OwnerAction int    `json:"owner_action"`
}

func (OwnerAddPayload) Kind() EventKind { return KindOwnerAdd }

type OwnerRemovePayload struct {
	Owner       string `json:"owner"`
	OwnerAction int    `json:"owner_action"`
}

func (OwnerRemovePayload) Kind() EventKind { return KindOwnerRemove }

type ObjectCreatePayload struct {
	Object ObjectRef `json:"object"`
	Action int       `json:"action"`
}

func (ObjectCreatePayload) Kind() EventKind { return KindObjectCreate }

type ObjectUpdatePayload struct {
	Object ObjectRef `json:"object"`
	Action int       `json:"action"`
}

func (ObjectUpdatePayload) Kind() EventKind { return KindObjectUpdate }

type ObjectDeletePayload struct {
	ObjectIdentifier VersionedID `json:"object_identifier"`
}

func (ObjectDeletePayload) Kind() EventKind { return KindObjectDelete }

type SchemaCreatePayload struct {
	Schema SchemaRef `json:"schema"`
	Action int       `json:"action"`
}

func (SchemaCreatePayload) Kind() EventKind { return KindSchemaCreate }

type SchemaUpdatePayload struct {
	Schema SchemaRef `json:"schema"`
	Action int       `json:"action"`
}

func (SchemaUpdatePayload) Kind() EventKind { return KindSchemaUpdate }

type SchemaDeprecatePayload struct {
	SchemaIdentifier VersionedID `json:"schema_identifier"`
}

func (SchemaDeprecatePayload) Kind() EventKind { return KindSchemaDeprecate }

type AnnotationCreatePayload struct {
	Annotation       AnnotationRef `json:"annotation"`
	ObjectIdentifiers []VersionedID `json:"object_identifiers"`
	Action           int           `json:"action"`
}

func (AnnotationCreatePayload) Kind() EventKind { return KindAnnotationCreate }

type AnnotationUpdatePayload struct {
	Annotation        AnnotationRef `json:"annotation"`
	ObjectIdentifiers []VersionedID `json:"object_identifiers"`
	Action            int           `json:"action"`
}

func (AnnotationUpdatePayload) Kind() EventKind { return KindAnnotationUpdate }

type AnnotationDeletePayload struct {
	AnnotationIdentifier VersionedID `json:"annotation_identifier"`
}

func (AnnotationDeletePayload) Kind() EventKind { return KindAnnotationDelete }

type ReviewAcceptPayload struct {
	EventUUID uuid.UUID `json:"event_uuid"`
}

func (ReviewAcceptPayload) Kind() EventKind { return KindReviewAccept }

type ReviewRejectPayload struct {
	EventUUID uuid.UUID `json:"event_uuid"`
}

func (ReviewRejectPayload) Kind() EventKind { return KindReviewReject }

// Event is the single append-only unit of the record keeper. Payload
// carries the type-specific body; Integrity binds the event into the
// hash chain or signature scheme selected for the installation
// (spec.md 4.5).
type Event struct {
	UUID      uuid.UUID `json:"uuid"`
	Dataset   string    `json:"dataset"`
	Type      EventKind `json:"type"`
	Author    string    `json:"author"`
	Timestamp Timestamp `json:"timestamp"`
	Payload   Payload   `json:"payload"`
	Integrity string    `json:"integrity,omitempty"`
}

// eventWire mirrors Event but carries the payload as a raw message so
// UnmarshalJSON can dispatch on Type before decoding it.
type eventWire struct {
	UUID      uuid.UUID       `json:"uuid"`
	Dataset   string          `json:"dataset"`
	Type      EventKind       `json:"type"`
	Author    string          `json:"author"`
	Timestamp Timestamp       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Integrity string          `json:"integrity,omitempty"`
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var w eventWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	payload, err := decodePayload(w.Type, w.Payload)
	if err != nil {
		return err
	}
	e.UUID = w.UUID
	e.Dataset = w.Dataset
	e.Type = w.Type
	e.Author = w.Author
	e.Timestamp = w.Timestamp
	e.Payload = payload
	e.Integrity = w.Integrity
	return nil
}

func decodePayload(kind EventKind, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch kind {
	case KindOwnerAdd:
		p = &OwnerAddPayload{}
	case KindOwnerRemove:
		p = &OwnerRemovePayload{}
	case KindObjectCreate:
		p = &ObjectCreatePayload{}
	case KindObjectUpdate:
		p = &ObjectUpdatePayload{}
	case KindObjectDelete:
		p = &ObjectDeletePayload{}
	case KindSchemaCreate:
		p = &SchemaCreatePayload{}
	case KindSchemaUpdate:
		p = &SchemaUpdatePayload{}
	case KindSchemaDeprecate:
		p = &SchemaDeprecatePayload{}
	case KindAnnotationCreate:
		p = &AnnotationCreatePayload{}
	case KindAnnotationUpdate:
		p = &AnnotationUpdatePayload{}
	case KindAnnotationDelete:
		p = &AnnotationDeletePayload{}
	case KindReviewAccept:
		p = &ReviewAcceptPayload{}
	case KindReviewReject:
		p = &ReviewRejectPayload{}
	default:
		return nil, fmt.Errorf("entities: unknown event kind %q", kind)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("entities: decoding %s payload: %w", kind, err)
		}
	}
	// Dereference back to value types so callers get the same shape
	// whether the event was built in-process or decoded from the log.
	switch v := p.(type) {
	case *OwnerAddPayload:
		return *v, nil
	case *OwnerRemovePayload:
		return *v, nil
	case *ObjectCreatePayload:
		return *v, nil
	case *ObjectUpdatePayload:
		return *v, nil
	case *ObjectDeletePayload:
		return *v, nil
	case *SchemaCreatePayload:
		return *v, nil
	case *SchemaUpdatePayload:
		return *v, nil
	case *SchemaDeprecatePayload:
		return *v, nil
	case *AnnotationCreatePayload:
		return *v, nil
	case *AnnotationUpdatePayload:
		return *v, nil
	case *AnnotationDeletePayload:
		return *v, nil
	case *ReviewAcceptPayload:
		return *v, nil
	case *ReviewRejectPayload:
		return *v, nil
	default:
		return p, nil
	}
}
