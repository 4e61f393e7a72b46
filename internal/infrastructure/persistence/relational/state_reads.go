package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/computeheavy/gonk/internal/domain/entities"
	"github.com/computeheavy/gonk/internal/domain/repositories"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// MaxVersion implements repositories.State / validate.Lookups.
func (s *State) MaxVersion(ctx context.Context, kind entities.EntityKind, id uuid.UUID) (int, bool, error) {
	var max sql.NullInt64
	err := s.db.GetContext(ctx, &max, `SELECT MAX(version) FROM entity_versions WHERE kind = ? AND uuid = ?`, string(kind), id.String())
	if err != nil {
		return 0, false, coreerrors.NewIOError("max-version", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

// Owners implements repositories.State / validate.Lookups.
func (s *State) Owners(ctx context.Context, dataset string) ([]string, error) {
	var owners []string
	if err := s.db.SelectContext(ctx, &owners, `SELECT owner FROM owners ORDER BY owner ASC`); err != nil {
		return nil, coreerrors.NewIOError("owners", err)
	}
	return owners, nil
}

// SchemaNameTaken implements repositories.State / validate.Lookups.
func (s *State) SchemaNameTaken(ctx context.Context, name string) (bool, error) {
	var schemaUUID string
	err := s.db.GetContext(ctx, &schemaUUID, `SELECT schema_uuid FROM schema_names WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, coreerrors.NewIOError("schema-name-taken", err)
	}
	var count int
	err = s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM entity_versions WHERE kind = 'schema' AND uuid = ? AND status != ?`,
		schemaUUID, string(entities.StatusDeprecated))
	if err != nil {
		return false, coreerrors.NewIOError("schema-name-taken-status", err)
	}
	return count > 0, nil
}

// SchemaName implements repositories.State / validate.Lookups.
func (s *State) SchemaName(ctx context.Context, schemaUUID uuid.UUID) (string, bool, error) {
	var name string
	err := s.db.GetContext(ctx, &name,
		`SELECT name FROM entity_versions WHERE kind = 'schema' AND uuid = ? AND version = 0`, schemaUUID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, coreerrors.NewIOError("schema-name", err)
	}
	return name, true, nil
}

// ResolveSchema implements repositories.State.
func (s *State) ResolveSchema(ctx context.Context, name string, version *int) (entities.VersionedID, error) {
	var schemaUUID string
	err := s.db.GetContext(ctx, &schemaUUID, `SELECT schema_uuid FROM schema_names WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.VersionedID{}, coreerrors.NewNotFoundError("schema", name)
	}
	if err != nil {
		return entities.VersionedID{}, coreerrors.NewIOError("resolve-schema", err)
	}
	id, err := uuid.Parse(schemaUUID)
	if err != nil {
		return entities.VersionedID{}, fmt.Errorf("relational: malformed schema uuid %q: %w", schemaUUID, err)
	}

	if version != nil {
		var exists bool
		err := s.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM entity_versions WHERE kind = 'schema' AND uuid = ? AND version = ?)`, schemaUUID, *version)
		if err != nil {
			return entities.VersionedID{}, coreerrors.NewIOError("resolve-schema-version", err)
		}
		if !exists {
			return entities.VersionedID{}, coreerrors.NewNotFoundError("schema", fmt.Sprintf("%s@%d", name, *version))
		}
		return entities.VersionedID{UUID: id, Version: *version}, nil
	}

	var accepted sql.NullInt64
	err = s.db.GetContext(ctx, &accepted,
		`SELECT MAX(version) FROM entity_versions WHERE kind = 'schema' AND uuid = ? AND status = 'accepted'`, schemaUUID)
	if err != nil {
		return entities.VersionedID{}, coreerrors.NewIOError("resolve-schema-accepted", err)
	}
	if !accepted.Valid {
		return entities.VersionedID{}, coreerrors.NewNotFoundError("schema", name+" (no accepted version)")
	}
	return entities.VersionedID{UUID: id, Version: int(accepted.Int64)}, nil
}

// Object implements repositories.State.
func (s *State) Object(ctx context.Context, id entities.VersionedID) (entities.ObjectVersion, error) {
	var r versionRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM entity_versions WHERE kind = 'object' AND uuid = ? AND version = ?`, id.UUID.String(), id.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ObjectVersion{}, coreerrors.NewNotFoundError("object", id.String())
	}
	if err != nil {
		return entities.ObjectVersion{}, coreerrors.NewIOError("object", err)
	}
	return r.toObject()
}

// ObjectInfo implements repositories.State.
func (s *State) ObjectInfo(ctx context.Context, id uuid.UUID) (entities.ObjectInfo, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM entity_versions WHERE kind = 'object' AND uuid = ?`, id.String()); err != nil {
		return entities.ObjectInfo{}, coreerrors.NewIOError("object-info", err)
	}
	if n == 0 {
		return entities.ObjectInfo{}, coreerrors.NewNotFoundError("object", id.String())
	}
	return entities.ObjectInfo{UUID: id, Versions: n}, nil
}

// ListObjectInfos implements repositories.State.
func (s *State) ListObjectInfos(ctx context.Context, after *uuid.UUID, limit int) ([]entities.ObjectInfo, error) {
	ids, err := listEntityUUIDs(ctx, s.db, "object", after, limit)
	if err != nil {
		return nil, err
	}
	out := make([]entities.ObjectInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.ObjectInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Schema implements repositories.State.
func (s *State) Schema(ctx context.Context, id entities.VersionedID) (entities.SchemaVersion, error) {
	var r versionRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM entity_versions WHERE kind = 'schema' AND uuid = ? AND version = ?`, id.UUID.String(), id.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.SchemaVersion{}, coreerrors.NewNotFoundError("schema", id.String())
	}
	if err != nil {
		return entities.SchemaVersion{}, coreerrors.NewIOError("schema", err)
	}
	return r.toSchema()
}

// SchemaByName implements repositories.State.
func (s *State) SchemaByName(ctx context.Context, name string, version *int) (entities.SchemaVersion, error) {
	id, err := s.ResolveSchema(ctx, name, version)
	if err != nil {
		return entities.SchemaVersion{}, err
	}
	return s.Schema(ctx, id)
}

// SchemaInfo implements repositories.State.
func (s *State) SchemaInfo(ctx context.Context, name string) (entities.SchemaInfo, error) {
	var schemaUUID string
	err := s.db.GetContext(ctx, &schemaUUID, `SELECT schema_uuid FROM schema_names WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.SchemaInfo{}, coreerrors.NewNotFoundError("schema", name)
	}
	if err != nil {
		return entities.SchemaInfo{}, coreerrors.NewIOError("schema-info", err)
	}
	id, err := uuid.Parse(schemaUUID)
	if err != nil {
		return entities.SchemaInfo{}, fmt.Errorf("relational: malformed schema uuid %q: %w", schemaUUID, err)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM entity_versions WHERE kind = 'schema' AND uuid = ?`, schemaUUID); err != nil {
		return entities.SchemaInfo{}, coreerrors.NewIOError("schema-info-count", err)
	}
	return entities.SchemaInfo{Name: name, UUID: id, Versions: n}, nil
}

// ListSchemaInfos implements repositories.State.
func (s *State) ListSchemaInfos(ctx context.Context, after *string, limit int) ([]entities.SchemaInfo, error) {
	query := `SELECT name FROM schema_names`
	args := []interface{}{}
	if after != nil {
		query += ` WHERE name > ?`
		args = append(args, *after)
	}
	query += ` ORDER BY name ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var names []string
	if err := s.db.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, coreerrors.NewIOError("list-schema-infos", err)
	}
	out := make([]entities.SchemaInfo, 0, len(names))
	for _, name := range names {
		info, err := s.SchemaInfo(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Annotation implements repositories.State.
func (s *State) Annotation(ctx context.Context, id entities.VersionedID) (entities.AnnotationVersion, error) {
	var r versionRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM entity_versions WHERE kind = 'annotation' AND uuid = ? AND version = ?`, id.UUID.String(), id.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.AnnotationVersion{}, coreerrors.NewNotFoundError("annotation", id.String())
	}
	if err != nil {
		return entities.AnnotationVersion{}, coreerrors.NewIOError("annotation", err)
	}
	objectIDs, err := objectIdentifiersFor(ctx, s.db, id)
	if err != nil {
		return entities.AnnotationVersion{}, err
	}
	return r.toAnnotation(objectIDs)
}

func objectIdentifiersFor(ctx context.Context, db *sqlx.DB, id entities.VersionedID) ([]entities.VersionedID, error) {
	var rows []struct {
		ObjectUUID    string `db:"object_uuid"`
		ObjectVersion int    `db:"object_version"`
	}
	err := db.SelectContext(ctx, &rows, `SELECT object_uuid, object_version FROM annotation_objects WHERE annotation_uuid = ? AND annotation_version = ?`, id.UUID.String(), id.Version)
	if err != nil {
		return nil, coreerrors.NewIOError("annotation-objects", err)
	}
	out := make([]entities.VersionedID, 0, len(rows))
	for _, r := range rows {
		objID, err := uuid.Parse(r.ObjectUUID)
		if err != nil {
			return nil, err
		}
		out = append(out, entities.VersionedID{UUID: objID, Version: r.ObjectVersion})
	}
	return out, nil
}

// AnnotationInfo implements repositories.State.
func (s *State) AnnotationInfo(ctx context.Context, id uuid.UUID) (entities.AnnotationInfo, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM entity_versions WHERE kind = 'annotation' AND uuid = ?`, id.String()); err != nil {
		return entities.AnnotationInfo{}, coreerrors.NewIOError("annotation-info", err)
	}
	if n == 0 {
		return entities.AnnotationInfo{}, coreerrors.NewNotFoundError("annotation", id.String())
	}
	return entities.AnnotationInfo{UUID: id, Versions: n}, nil
}

// ListAnnotationInfos implements repositories.State.
func (s *State) ListAnnotationInfos(ctx context.Context, after *uuid.UUID, limit int) ([]entities.AnnotationInfo, error) {
	ids, err := listEntityUUIDs(ctx, s.db, "annotation", after, limit)
	if err != nil {
		return nil, err
	}
	out := make([]entities.AnnotationInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.AnnotationInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// AnnotationsFor implements repositories.State.
func (s *State) AnnotationsFor(ctx context.Context, object entities.VersionedID) ([]entities.AnnotationInfo, error) {
	var uuids []string
	err := s.db.SelectContext(ctx, &uuids, `
		SELECT DISTINCT ao.annotation_uuid
		FROM annotation_objects ao
		JOIN entity_versions ev ON ev.kind = 'annotation' AND ev.uuid = ao.annotation_uuid AND ev.version = ao.annotation_version
		WHERE ao.object_uuid = ? AND ao.object_version = ? AND ev.status != 'rejected'`,
		object.UUID.String(), object.Version)
	if err != nil {
		return nil, coreerrors.NewIOError("annotations-for", err)
	}
	out := make([]entities.AnnotationInfo, 0, len(uuids))
	for _, raw := range uuids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		info, err := s.AnnotationInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// EventsFor implements repositories.State.
func (s *State) EventsFor(ctx context.Context, kind entities.EntityKind, id uuid.UUID) ([]uuid.UUID, error) {
	var raws []string
	err := s.db.SelectContext(ctx, &raws, `SELECT event_uuid FROM entity_events WHERE kind = ? AND uuid = ? ORDER BY id ASC`, string(kind), id.String())
	if err != nil {
		return nil, coreerrors.NewIOError("events-for", err)
	}
	out := make([]uuid.UUID, 0, len(raws))
	for _, raw := range raws {
		eid, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, eid)
	}
	return out, nil
}

// ReviewState implements repositories.State / validate.Lookups.
func (s *State) ReviewState(ctx context.Context, id uuid.UUID) (entities.ReviewState, entities.EventKind, bool, error) {
	var row struct {
		State     string `db:"state"`
		EventType string `db:"event_type"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT state, event_type FROM review_state WHERE event_uuid = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, coreerrors.NewIOError("review-state", err)
	}
	return entities.ReviewState(row.State), entities.EventKind(row.EventType), true, nil
}

// ReviewTarget implements repositories.State / validate.Lookups.
func (s *State) ReviewTarget(ctx context.Context, id uuid.UUID) (entities.EntityKind, entities.VersionedID, bool, bool, error) {
	var row struct {
		TargetKind     string `db:"target_kind"`
		TargetUUID     string `db:"target_uuid"`
		TargetVersion  int    `db:"target_version"`
		IsDeleteLike   bool   `db:"is_delete_like"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT target_kind, target_uuid, target_version, is_delete_like FROM review_state WHERE event_uuid = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return "", entities.VersionedID{}, false, false, nil
	}
	if err != nil {
		return "", entities.VersionedID{}, false, false, coreerrors.NewIOError("review-target", err)
	}
	targetUUID, err := uuid.Parse(row.TargetUUID)
	if err != nil {
		return "", entities.VersionedID{}, false, false, err
	}
	return entities.EntityKind(row.TargetKind), entities.VersionedID{UUID: targetUUID, Version: row.TargetVersion}, row.IsDeleteLike, true, nil
}

// MarkBytesMissing implements repositories.State.
func (s *State) MarkBytesMissing(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entity_versions SET bytes_missing = 1 WHERE kind = ? AND uuid = ? AND version = ?`, string(kind), id.UUID.String(), id.Version)
	if err != nil {
		return coreerrors.NewIOError("mark-bytes-missing", err)
	}
	return nil
}

// ClearBytesMissing implements repositories.State.
func (s *State) ClearBytesMissing(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entity_versions SET bytes_missing = 0 WHERE kind = ? AND uuid = ? AND version = ?`, string(kind), id.UUID.String(), id.Version)
	if err != nil {
		return coreerrors.NewIOError("clear-bytes-missing", err)
	}
	return nil
}

// BytesMissing implements repositories.State.
func (s *State) BytesMissing(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) (bool, error) {
	var missing bool
	err := s.db.GetContext(ctx, &missing, `SELECT bytes_missing FROM entity_versions WHERE kind = ? AND uuid = ? AND version = ?`, string(kind), id.UUID.String(), id.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, coreerrors.NewIOError("bytes-missing", err)
	}
	return missing, nil
}

// ListStatus implements repositories.State.
func (s *State) ListStatus(ctx context.Context, kind entities.EntityKind, status entities.Status, after *uuid.UUID, limit int) ([]repositories.VersionedStatus, error) {
	query := `
		SELECT ev.uuid AS uuid, ev.version AS version, COALESCE(sn.name, '') AS name
		FROM entity_versions ev
		LEFT JOIN schema_names sn ON ev.kind = 'schema' AND sn.schema_uuid = ev.uuid
		WHERE ev.kind = ? AND ev.status = ?`
	args := []interface{}{string(kind), string(status)}
	if after != nil {
		query += ` AND ev.uuid > ?`
		args = append(args, after.String())
	}
	query += ` ORDER BY ev.uuid ASC, ev.version ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []struct {
		UUID    string `db:"uuid"`
		Version int    `db:"version"`
		Name    string `db:"name"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, coreerrors.NewIOError("list-status", err)
	}
	out := make([]repositories.VersionedStatus, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.UUID)
		if err != nil {
			return nil, err
		}
		out = append(out, repositories.VersionedStatus{UUID: id, Version: r.Version, Status: status, Name: r.Name})
	}
	return out, nil
}

func listEntityUUIDs(ctx context.Context, db *sqlx.DB, kind string, after *uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT uuid FROM entity_versions WHERE kind = ?`
	args := []interface{}{kind}
	if after != nil {
		query += ` AND uuid > ?`
		args = append(args, after.String())
	}
	query += ` ORDER BY uuid ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var raws []string
	if err := db.SelectContext(ctx, &raws, query, args...); err != nil {
		return nil, coreerrors.NewIOError("list-entity-uuids", err)
	}
	out := make([]uuid.UUID, 0, len(raws))
	for _, raw := range raws {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
