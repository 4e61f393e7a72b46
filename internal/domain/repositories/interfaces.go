// Package repositories defines the capability contracts of spec.md
// 6.2: RecordKeeper, Depot and State. Pipeline code programs against
// these interfaces, never against a concrete filesystem or relational
// implementation (DESIGN NOTES: Interface polymorphism).
package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

// RecordKeeper is the append-only event log. Append order is the
// core's only notion of time (spec.md 5).
type RecordKeeper interface {
	// Append persists e, assigns it the next append position and
	// returns the integrity token computed for it.
	Append(ctx context.Context, e entities.Event) (token string, err error)
	// At returns the event at a zero-based append position.
	At(ctx context.Context, seq int64) (entities.Event, error)
	// Next returns up to limit events strictly after the event
	// identified by after (nil means from the start), in append order.
	Next(ctx context.Context, after *uuid.UUID, limit int) ([]entities.Event, error)
	// Len reports the number of events appended so far.
	Len(ctx context.Context) (int64, error)
	// Verify recomputes the integrity chain/signatures over the full
	// log and returns ok=false with the zero-based index of the first
	// divergent event when tampering is detected.
	Verify(ctx context.Context) (ok bool, firstBadSeq int64, err error)
}

// Depot is the content-addressed blob store.
type Depot interface {
	// Write stores data under id, failing with an IntegrityError-kind
	// *errors.Error if its digest does not equal expectedDigest.
	Write(ctx context.Context, id entities.VersionedID, data []byte, expectedDigest entities.Digest) error
	Read(ctx context.Context, id entities.VersionedID) ([]byte, error)
	Exists(ctx context.Context, id entities.VersionedID) (bool, error)
}

// VersionedStatus is a (uuid, version) paired with its projected
// status, the shape returned by status-filtered listings.
type VersionedStatus struct {
	UUID    uuid.UUID
	Version int
	Status  entities.Status
	Name    string // populated for schema listings only
}

// State is the projection and validator: it holds derived indices and
// gates every proposed event against them.
type State interface {
	// Validate checks e against currently projected state, per the
	// table in spec.md 4.2. It never mutates anything.
	Validate(ctx context.Context, e entities.Event) error
	// Apply transitions projected state for e. Callers must only pass
	// events that already passed Validate and have been appended.
	Apply(ctx context.Context, e entities.Event) error

	Status(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) (status entities.Status, found bool, err error)
	ListStatus(ctx context.Context, kind entities.EntityKind, status entities.Status, after *uuid.UUID, limit int) ([]VersionedStatus, error)

	MaxVersion(ctx context.Context, kind entities.EntityKind, id uuid.UUID) (max int, exists bool, err error)

	Object(ctx context.Context, id entities.VersionedID) (entities.ObjectVersion, error)
	ObjectInfo(ctx context.Context, id uuid.UUID) (entities.ObjectInfo, error)
	ListObjectInfos(ctx context.Context, after *uuid.UUID, limit int) ([]entities.ObjectInfo, error)

	Schema(ctx context.Context, id entities.VersionedID) (entities.SchemaVersion, error)
	SchemaByName(ctx context.Context, name string, version *int) (entities.SchemaVersion, error)
	SchemaInfo(ctx context.Context, name string) (entities.SchemaInfo, error)
	ListSchemaInfos(ctx context.Context, after *string, limit int) ([]entities.SchemaInfo, error)
	SchemaNameTaken(ctx context.Context, name string) (bool, error)
	// SchemaName returns the dataset-unique name a schema UUID was
	// created under.
	SchemaName(ctx context.Context, schemaUUID uuid.UUID) (name string, found bool, err error)
	// ResolveSchema resolves a (name, version?) reference to a
	// versioned identifier. A nil version resolves to the highest
	// accepted version.
	ResolveSchema(ctx context.Context, name string, version *int) (entities.VersionedID, error)

	Annotation(ctx context.Context, id entities.VersionedID) (entities.AnnotationVersion, error)
	AnnotationInfo(ctx context.Context, id uuid.UUID) (entities.AnnotationInfo, error)
	ListAnnotationInfos(ctx context.Context, after *uuid.UUID, limit int) ([]entities.AnnotationInfo, error)

	// AnnotationsFor lists annotations (non-rejected) referencing the
	// given object version, for object detail reads.
	AnnotationsFor(ctx context.Context, object entities.VersionedID) ([]entities.AnnotationInfo, error)
	// EventsFor lists, in append order, the events that targeted any
	// version of the entity with the given uuid, including the review
	// events acting on them, for detail reads.
	EventsFor(ctx context.Context, kind entities.EntityKind, id uuid.UUID) ([]uuid.UUID, error)

	Owners(ctx context.Context, dataset string) ([]string, error)

	// ReviewState reports the projected review outcome of the event
	// identified by id, along with whether it is itself a review
	// event (which can never be reviewed, spec.md 4.2).
	ReviewState(ctx context.Context, id uuid.UUID) (state entities.ReviewState, kind entities.EventKind, found bool, err error)

	// ReviewTarget reports what accepting the event identified by id
	// would act on. isDeleteLike is true for ObjectDelete,
	// AnnotationDelete and SchemaDeprecate events: accepting one of
	// those is only effective if targetID is still in PENDING or
	// ACCEPTED status (spec.md 4.4 — concurrent delete proposals, only
	// the first accepted one takes effect).
	ReviewTarget(ctx context.Context, id uuid.UUID) (targetKind entities.EntityKind, targetID entities.VersionedID, isDeleteLike bool, found bool, err error)

	// MarkBytesMissing records that id's creating event was appended
	// but its depot write failed (spec.md 4.6).
	MarkBytesMissing(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) error
	// ClearBytesMissing clears that mark after a successful repair.
	ClearBytesMissing(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) error
	BytesMissing(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) (bool, error)
}

// Backend opens the three per-dataset stores and manages dataset
// lifecycle (creation, existence, listing). The two shipped backends
// are filesystem and embedded-relational (spec.md 6.3).
type Backend interface {
	CreateDataset(ctx context.Context, name string) error
	DatasetExists(ctx context.Context, name string) (bool, error)
	ListDatasets(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (RecordKeeper, Depot, State, error)
	Close() error
}
