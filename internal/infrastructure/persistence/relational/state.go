package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/computeheavy/gonk/internal/domain/entities"
	"github.com/computeheavy/gonk/internal/domain/services/validate"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// State is the SQL-table-backed projection of spec.md 6.3: every
// mutation-pipeline write for one event lands in a single transaction,
// unlike the filesystem profile's in-memory projector.
type State struct {
	db *sqlx.DB
}

// NewState wraps an already-migrated db.
func NewState(db *sqlx.DB) *State {
	return &State{db: db}
}

type versionRow struct {
	Kind          string  `db:"kind"`
	UUID          string  `db:"uuid"`
	Version       int     `db:"version"`
	Name          string  `db:"name"`
	Format        string  `db:"format"`
	Size          int64   `db:"size"`
	Hash          string  `db:"hash"`
	HashType      int     `db:"hash_type"`
	Status        string  `db:"status"`
	CreatedBy     string  `db:"created_by"`
	CreatedAt     string  `db:"created_at"`
	BytesMissing  bool    `db:"bytes_missing"`
	SchemaUUID    *string `db:"schema_uuid"`
	SchemaVersion *int    `db:"schema_version"`
}

func (r versionRow) createdAt() (entities.Timestamp, error) {
	var t entities.Timestamp
	if err := t.UnmarshalJSON([]byte(`"` + r.CreatedAt + `"`)); err != nil {
		return entities.Timestamp{}, err
	}
	return t, nil
}

func (r versionRow) toObject() (entities.ObjectVersion, error) {
	id, err := uuid.Parse(r.UUID)
	if err != nil {
		return entities.ObjectVersion{}, err
	}
	ts, err := r.createdAt()
	if err != nil {
		return entities.ObjectVersion{}, err
	}
	return entities.ObjectVersion{
		UUID: id, Version: r.Version, Name: r.Name, Format: r.Format, Size: r.Size,
		Hash: entities.Digest(r.Hash), HashType: entities.HashType(r.HashType),
		Status: entities.Status(r.Status), CreatedBy: r.CreatedBy, CreatedAt: ts,
		BytesMissing: r.BytesMissing,
	}, nil
}

func (r versionRow) toSchema() (entities.SchemaVersion, error) {
	id, err := uuid.Parse(r.UUID)
	if err != nil {
		return entities.SchemaVersion{}, err
	}
	ts, err := r.createdAt()
	if err != nil {
		return entities.SchemaVersion{}, err
	}
	return entities.SchemaVersion{
		UUID: id, Version: r.Version, Name: r.Name, Format: r.Format, Size: r.Size,
		Hash: entities.Digest(r.Hash), HashType: entities.HashType(r.HashType),
		Status: entities.Status(r.Status), CreatedBy: r.CreatedBy, CreatedAt: ts,
		BytesMissing: r.BytesMissing,
	}, nil
}

func (r versionRow) toAnnotation(objectIDs []entities.VersionedID) (entities.AnnotationVersion, error) {
	id, err := uuid.Parse(r.UUID)
	if err != nil {
		return entities.AnnotationVersion{}, err
	}
	ts, err := r.createdAt()
	if err != nil {
		return entities.AnnotationVersion{}, err
	}
	var schemaRef entities.VersionedID
	if r.SchemaUUID != nil {
		su, err := uuid.Parse(*r.SchemaUUID)
		if err != nil {
			return entities.AnnotationVersion{}, err
		}
		version := 0
		if r.SchemaVersion != nil {
			version = *r.SchemaVersion
		}
		schemaRef = entities.VersionedID{UUID: su, Version: version}
	}
	return entities.AnnotationVersion{
		UUID: id, Version: r.Version, Schema: schemaRef, ObjectIdentifiers: objectIDs, Size: r.Size,
		Hash: entities.Digest(r.Hash), HashType: entities.HashType(r.HashType),
		Status: entities.Status(r.Status), CreatedBy: r.CreatedBy, CreatedAt: ts,
		BytesMissing: r.BytesMissing,
	}, nil
}

// Validate implements repositories.State by delegating to the shared
// validation table; State's own read methods satisfy validate.Lookups.
func (s *State) Validate(ctx context.Context, e entities.Event) error {
	return validate.Validate(ctx, s, e)
}

// Apply implements repositories.State. Every table write for e happens
// inside one transaction (spec.md 6.3).
func (s *State) Apply(ctx context.Context, e entities.Event) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return coreerrors.NewIOError("apply-begin", err)
	}
	defer tx.Rollback()

	if err := applyTx(ctx, tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return coreerrors.NewIOError("apply-commit", err)
	}
	return nil
}

func applyTx(ctx context.Context, tx *sqlx.Tx, e entities.Event) error {
	switch p := e.Payload.(type) {
	case entities.OwnerAddPayload:
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO owners (owner) VALUES (?)`, p.Owner); err != nil {
			return coreerrors.NewIOError("apply-owner-add", err)
		}
	case entities.OwnerRemovePayload:
		if _, err := tx.ExecContext(ctx, `DELETE FROM owners WHERE owner = ?`, p.Owner); err != nil {
			return coreerrors.NewIOError("apply-owner-remove", err)
		}

	case entities.ObjectCreatePayload:
		return putVersion(ctx, tx, e, "object", p.Object.UUID, p.Object.Version, p.Object.Name, p.Object.Format, p.Object.Size, p.Object.Hash, p.Object.HashType, nil, nil)
	case entities.ObjectUpdatePayload:
		return putVersion(ctx, tx, e, "object", p.Object.UUID, p.Object.Version, p.Object.Name, p.Object.Format, p.Object.Size, p.Object.Hash, p.Object.HashType, nil, nil)
	case entities.ObjectDeletePayload:
		return recordReviewable(ctx, tx, e, "object", p.ObjectIdentifier, true)

	case entities.SchemaCreatePayload:
		if err := putVersion(ctx, tx, e, "schema", p.Schema.UUID, p.Schema.Version, p.Schema.Name, p.Schema.Format, p.Schema.Size, p.Schema.Hash, p.Schema.HashType, nil, nil); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_names (name, schema_uuid) VALUES (?, ?)`, p.Schema.Name, p.Schema.UUID.String()); err != nil {
			return coreerrors.NewIOError("apply-schema-name", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE schema_names SET schema_uuid = ? WHERE name = ?`, p.Schema.UUID.String(), p.Schema.Name); err != nil {
			return coreerrors.NewIOError("apply-schema-name-claim", err)
		}
	case entities.SchemaUpdatePayload:
		return putVersion(ctx, tx, e, "schema", p.Schema.UUID, p.Schema.Version, p.Schema.Name, p.Schema.Format, p.Schema.Size, p.Schema.Hash, p.Schema.HashType, nil, nil)
	case entities.SchemaDeprecatePayload:
		return recordReviewable(ctx, tx, e, "schema", p.SchemaIdentifier, true)

	case entities.AnnotationCreatePayload:
		return putAnnotation(ctx, tx, e, p.Annotation, p.ObjectIdentifiers)
	case entities.AnnotationUpdatePayload:
		return putAnnotation(ctx, tx, e, p.Annotation, p.ObjectIdentifiers)
	case entities.AnnotationDeletePayload:
		return recordReviewable(ctx, tx, e, "annotation", p.AnnotationIdentifier, true)

	case entities.ReviewAcceptPayload:
		return applyReview(ctx, tx, p.EventUUID, e.UUID, entities.ReviewAccepted)
	case entities.ReviewRejectPayload:
		return applyReview(ctx, tx, p.EventUUID, e.UUID, entities.ReviewRejected)

	default:
		return fmt.Errorf("relational: unhandled event kind %q", e.Type)
	}
	return nil
}

func putVersion(ctx context.Context, tx *sqlx.Tx, e entities.Event, kind string, id uuid.UUID, version int, name, format string, size int64, hash entities.Digest, hashType entities.HashType, schemaUUID *string, schemaVersion *int) error {
	tsJSON, err := e.Timestamp.MarshalJSON()
	if err != nil {
		return fmt.Errorf("relational: marshal created_at: %w", err)
	}
	createdAt := string(tsJSON[1 : len(tsJSON)-1])

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entity_versions (kind, uuid, version, name, format, size, hash, hash_type, status, created_by, created_at, bytes_missing, schema_uuid, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?, 0, ?, ?)`,
		kind, id.String(), version, name, format, size, string(hash), int(hashType), e.Author, createdAt, schemaUUID, schemaVersion)
	if err != nil {
		return coreerrors.NewIOError("apply-put-version", err)
	}
	versionedID := entities.VersionedID{UUID: id, Version: version}
	return recordReviewable(ctx, tx, e, kind, versionedID, false)
}

func putAnnotation(ctx context.Context, tx *sqlx.Tx, e entities.Event, ref entities.AnnotationRef, objectIDs []entities.VersionedID) error {
	schemaUUID := ref.Schema.UUID.String()
	schemaVersion := ref.Schema.Version
	if err := putVersion(ctx, tx, e, "annotation", ref.UUID, ref.Version, "", "", ref.Size, ref.Hash, ref.HashType, &schemaUUID, &schemaVersion); err != nil {
		return err
	}
	for _, obj := range objectIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO annotation_objects (annotation_uuid, annotation_version, object_uuid, object_version) VALUES (?, ?, ?, ?)`,
			ref.UUID.String(), ref.Version, obj.UUID.String(), obj.Version); err != nil {
			return coreerrors.NewIOError("apply-annotation-objects", err)
		}
	}
	return nil
}

func recordReviewable(ctx context.Context, tx *sqlx.Tx, e entities.Event, kind string, id entities.VersionedID, isDeleteLike bool) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO entity_events (kind, uuid, event_uuid) VALUES (?, ?, ?)`, kind, id.UUID.String(), e.UUID.String()); err != nil {
		return coreerrors.NewIOError("apply-entity-events", err)
	}
	deleteLike := 0
	if isDeleteLike {
		deleteLike = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO review_state (event_uuid, state, event_type, target_kind, target_uuid, target_version, is_delete_like)
		VALUES (?, 'pending', ?, ?, ?, ?, ?)`,
		e.UUID.String(), string(e.Type), kind, id.UUID.String(), id.Version, deleteLike)
	if err != nil {
		return coreerrors.NewIOError("apply-review-state", err)
	}
	return nil
}

func applyReview(ctx context.Context, tx *sqlx.Tx, targetEventUUID, reviewEventUUID uuid.UUID, outcome entities.ReviewState) error {
	var target struct {
		Kind         string `db:"target_kind"`
		UUID         string `db:"target_uuid"`
		Version      int    `db:"target_version"`
		IsDeleteLike bool   `db:"is_delete_like"`
	}
	err := tx.GetContext(ctx, &target, `SELECT target_kind, target_uuid, target_version, is_delete_like FROM review_state WHERE event_uuid = ?`, targetEventUUID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return coreerrors.NewIOError("apply-review-lookup", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE review_state SET state = ? WHERE event_uuid = ?`, string(outcome), targetEventUUID.String()); err != nil {
		return coreerrors.NewIOError("apply-review-update", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO entity_events (kind, uuid, event_uuid) VALUES (?, ?, ?)`, target.Kind, target.UUID, reviewEventUUID.String()); err != nil {
		return coreerrors.NewIOError("apply-review-entity-events", err)
	}

	targetID := entities.VersionedID{UUID: uuid.MustParse(target.UUID), Version: target.Version}
	kind := entities.EntityKind(target.Kind)

	if outcome == entities.ReviewRejected {
		if !target.IsDeleteLike {
			return setStatus(ctx, tx, kind, targetID, entities.StatusRejected)
		}
		return nil
	}

	if target.IsDeleteLike {
		current, found, err := statusOf(ctx, tx, kind, targetID)
		if err != nil {
			return err
		}
		if found && current.IsTerminal() {
			return nil
		}
		terminal := entities.StatusDeleted
		if kind == entities.KindSchema {
			terminal = entities.StatusDeprecated
		}
		return setStatus(ctx, tx, kind, targetID, terminal)
	}
	return setStatus(ctx, tx, kind, targetID, entities.StatusAccepted)
}

func setStatus(ctx context.Context, tx *sqlx.Tx, kind entities.EntityKind, id entities.VersionedID, status entities.Status) error {
	_, err := tx.ExecContext(ctx, `UPDATE entity_versions SET status = ? WHERE kind = ? AND uuid = ? AND version = ?`,
		string(status), string(kind), id.UUID.String(), id.Version)
	if err != nil {
		return coreerrors.NewIOError("apply-set-status", err)
	}
	return nil
}

func statusOf(ctx context.Context, tx *sqlx.Tx, kind entities.EntityKind, id entities.VersionedID) (entities.Status, bool, error) {
	var status string
	err := tx.GetContext(ctx, &status, `SELECT status FROM entity_versions WHERE kind = ? AND uuid = ? AND version = ?`, string(kind), id.UUID.String(), id.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, coreerrors.NewIOError("status-of", err)
	}
	return entities.Status(status), true, nil
}

// Status implements repositories.State / validate.Lookups.
func (s *State) Status(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) (entities.Status, bool, error) {
	var status string
	err := s.db.GetContext(ctx, &status, `SELECT status FROM entity_versions WHERE kind = ? AND uuid = ? AND version = ?`, string(kind), id.UUID.String(), id.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, coreerrors.NewIOError("status", err)
	}
	return entities.Status(status), true, nil
}

