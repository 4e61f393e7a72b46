// Package validate implements the State.validate gate of spec.md 4.2:
// the table of preconditions a proposed event must satisfy against
// currently projected state. It is shared by every State backend so
// the rules live in exactly one place.
package validate

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/computeheavy/gonk/internal/domain/entities"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// Lookups is the read-only slice of a State backend that validation
// needs. Its method set is a subset of repositories.State, phrased
// identically so a backend's own index methods satisfy both.
type Lookups interface {
	MaxVersion(ctx context.Context, kind entities.EntityKind, id uuid.UUID) (max int, exists bool, err error)
	Status(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) (status entities.Status, found bool, err error)
	Owners(ctx context.Context, dataset string) ([]string, error)
	SchemaNameTaken(ctx context.Context, name string) (bool, error)
	SchemaName(ctx context.Context, schemaUUID uuid.UUID) (name string, found bool, err error)
	ReviewState(ctx context.Context, id uuid.UUID) (state entities.ReviewState, kind entities.EventKind, found bool, err error)
	ReviewTarget(ctx context.Context, id uuid.UUID) (targetKind entities.EntityKind, targetID entities.VersionedID, isDeleteLike bool, found bool, err error)
}

// Validate checks e against l, per spec.md 4.2. It performs no
// mutation and never touches bytes: digest/size consistency and
// schema-body validation happen against the actual blob in the
// mutation pipeline (spec.md 4.3 step 1), which has Depot access that
// State does not.
func Validate(ctx context.Context, l Lookups, e entities.Event) error {
	switch p := e.Payload.(type) {
	case entities.OwnerAddPayload:
		owners, err := l.Owners(ctx, e.Dataset)
		if err != nil {
			return err
		}
		if contains(owners, p.Owner) {
			return coreerrors.NewValidationError("owner-exists", fmt.Sprintf("%q is already an owner", p.Owner))
		}
		return nil

	case entities.OwnerRemovePayload:
		owners, err := l.Owners(ctx, e.Dataset)
		if err != nil {
			return err
		}
		if !contains(owners, p.Owner) {
			return coreerrors.NewValidationError("not-owner", fmt.Sprintf("%q is not an owner", p.Owner))
		}
		if len(owners) <= 1 {
			return coreerrors.NewValidationError("last-owner", "dataset must retain at least one owner")
		}
		return nil

	case entities.ObjectCreatePayload:
		return validateCreate(ctx, l, entities.KindObject, p.Object.UUID, p.Object.Version, p.Object.HashType, p.Object.Hash)

	case entities.ObjectUpdatePayload:
		return validateUpdate(ctx, l, entities.KindObject, p.Object.UUID, p.Object.Version, p.Object.HashType, p.Object.Hash)

	case entities.ObjectDeletePayload:
		return validateDelete(ctx, l, entities.KindObject, p.ObjectIdentifier)

	case entities.SchemaCreatePayload:
		if !strings.HasPrefix(p.Schema.Name, entities.SchemaNamePrefix) {
			return coreerrors.NewValidationError("schema-name", fmt.Sprintf("schema name must begin with %q", entities.SchemaNamePrefix))
		}
		taken, err := l.SchemaNameTaken(ctx, p.Schema.Name)
		if err != nil {
			return err
		}
		if taken {
			return coreerrors.NewValidationError("schema-name-taken", fmt.Sprintf("schema name %q already in use", p.Schema.Name))
		}
		return validateCreate(ctx, l, entities.KindSchema, p.Schema.UUID, p.Schema.Version, p.Schema.HashType, p.Schema.Hash)

	case entities.SchemaUpdatePayload:
		existingName, found, err := l.SchemaName(ctx, p.Schema.UUID)
		if err != nil {
			return err
		}
		if !found {
			return coreerrors.NewNotFoundError("schema", p.Schema.UUID.String())
		}
		if p.Schema.Name != "" && p.Schema.Name != existingName {
			return coreerrors.NewValidationError("schema-name", "schema name cannot change on update")
		}
		return validateUpdate(ctx, l, entities.KindSchema, p.Schema.UUID, p.Schema.Version, p.Schema.HashType, p.Schema.Hash)

	case entities.SchemaDeprecatePayload:
		status, found, err := l.Status(ctx, entities.KindSchema, p.SchemaIdentifier)
		if err != nil {
			return err
		}
		if !found {
			return coreerrors.NewNotFoundError("schema", p.SchemaIdentifier.String())
		}
		if status == entities.StatusDeprecated {
			return coreerrors.NewValidationError("already-deprecated", p.SchemaIdentifier.String())
		}
		return nil

	case entities.AnnotationCreatePayload:
		if err := validateSchemaRef(ctx, l, p.Annotation.Schema); err != nil {
			return err
		}
		if err := validateObjectRefs(ctx, l, p.ObjectIdentifiers); err != nil {
			return err
		}
		return validateCreate(ctx, l, entities.KindAnnotation, p.Annotation.UUID, p.Annotation.Version, p.Annotation.HashType, p.Annotation.Hash)

	case entities.AnnotationUpdatePayload:
		if err := validateSchemaRef(ctx, l, p.Annotation.Schema); err != nil {
			return err
		}
		if err := validateObjectRefs(ctx, l, p.ObjectIdentifiers); err != nil {
			return err
		}
		return validateUpdate(ctx, l, entities.KindAnnotation, p.Annotation.UUID, p.Annotation.Version, p.Annotation.HashType, p.Annotation.Hash)

	case entities.AnnotationDeletePayload:
		return validateDelete(ctx, l, entities.KindAnnotation, p.AnnotationIdentifier)

	case entities.ReviewAcceptPayload:
		return validateReview(ctx, l, p.EventUUID)

	case entities.ReviewRejectPayload:
		return validateReview(ctx, l, p.EventUUID)

	default:
		return fmt.Errorf("validate: unhandled event kind %q", e.Type)
	}
}

func validateCreate(ctx context.Context, l Lookups, kind entities.EntityKind, uid uuid.UUID, version int, hashType entities.HashType, hash entities.Digest) error {
	if version != 0 {
		return coreerrors.NewValidationError("version", "create events must assign version 0")
	}
	_, exists, err := l.MaxVersion(ctx, kind, uid)
	if err != nil {
		return err
	}
	if exists {
		return coreerrors.NewValidationError("uuid-in-use", uid.String())
	}
	return validateHash(hashType, hash)
}

func validateUpdate(ctx context.Context, l Lookups, kind entities.EntityKind, uid uuid.UUID, version int, hashType entities.HashType, hash entities.Digest) error {
	max, exists, err := l.MaxVersion(ctx, kind, uid)
	if err != nil {
		return err
	}
	if !exists {
		return coreerrors.NewNotFoundError(string(kind), uid.String())
	}
	if version != max+1 {
		return coreerrors.NewValidationError("version", fmt.Sprintf("expected version %d, got %d", max+1, version))
	}
	status, found, err := l.Status(ctx, kind, entities.VersionedID{UUID: uid, Version: max})
	if err != nil {
		return err
	}
	if found && status.IsTerminal() {
		return coreerrors.NewValidationError("terminal", fmt.Sprintf("%s %s is in a terminal state", kind, uid))
	}
	return validateHash(hashType, hash)
}

func validateDelete(ctx context.Context, l Lookups, kind entities.EntityKind, id entities.VersionedID) error {
	status, found, err := l.Status(ctx, kind, id)
	if err != nil {
		return err
	}
	if !found {
		return coreerrors.NewNotFoundError(string(kind), id.String())
	}
	if status != entities.StatusPending && status != entities.StatusAccepted {
		return coreerrors.NewValidationError("not-deletable", fmt.Sprintf("%s is %s", id.String(), status))
	}
	return nil
}

func validateSchemaRef(ctx context.Context, l Lookups, ref entities.VersionedID) error {
	status, found, err := l.Status(ctx, entities.KindSchema, ref)
	if err != nil {
		return err
	}
	if !found {
		return coreerrors.NewNotFoundError("schema", ref.String())
	}
	if status == entities.StatusRejected || status == entities.StatusDeprecated {
		return coreerrors.NewValidationError("schema-ref", fmt.Sprintf("schema %s is %s", ref.String(), status))
	}
	return nil
}

func validateObjectRefs(ctx context.Context, l Lookups, refs []entities.VersionedID) error {
	if len(refs) == 0 {
		return coreerrors.NewValidationError("object-refs", "annotation must reference at least one object")
	}
	for _, ref := range refs {
		status, found, err := l.Status(ctx, entities.KindObject, ref)
		if err != nil {
			return err
		}
		if !found {
			return coreerrors.NewNotFoundError("object", ref.String())
		}
		if status == entities.StatusRejected || status == entities.StatusDeleted {
			return coreerrors.NewValidationError("object-ref", fmt.Sprintf("object %s is %s", ref.String(), status))
		}
	}
	return nil
}

func validateReview(ctx context.Context, l Lookups, eventUUID uuid.UUID) error {
	state, kind, found, err := l.ReviewState(ctx, eventUUID)
	if err != nil {
		return err
	}
	if !found {
		return coreerrors.NewNotFoundError("event", eventUUID.String())
	}
	if kind.IsReview() {
		return coreerrors.NewValidationError("not-reviewable", "review events cannot themselves be reviewed")
	}
	if state.IsTerminal() {
		return coreerrors.NewValidationError("already-reviewed", eventUUID.String())
	}

	targetKind, targetID, isDeleteLike, found, err := l.ReviewTarget(ctx, eventUUID)
	if err != nil {
		return err
	}
	if found && isDeleteLike {
		status, found, err := l.Status(ctx, targetKind, targetID)
		if err != nil {
			return err
		}
		if found && status.IsTerminal() {
			return coreerrors.NewValidationError("already-terminal", fmt.Sprintf("%s is already %s", targetID.String(), status))
		}
	}
	return nil
}

func validateHash(hashType entities.HashType, hash entities.Digest) error {
	if !hashType.Valid() {
		return coreerrors.NewValidationError("hash-type", fmt.Sprintf("unsupported hash_type %d", hashType))
	}
	raw, err := hex.DecodeString(string(hash))
	if err != nil || len(raw) != 32 {
		return coreerrors.NewValidationError("digest", "hash must be 32-byte lowercase hex (sha-256)")
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
