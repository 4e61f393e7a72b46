// Package core orchestrates the mutation pipeline of spec.md 4.3: it
// is the only place that builds events, assigns versions and drives
// RecordKeeper/Depot/State in the append -> write -> apply order. Every
// mutation from the HTTP layer goes through Service; read-only handlers
// get the three stores from Service.Open and query them directly.
package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/computeheavy/gonk/internal/domain/entities"
	"github.com/computeheavy/gonk/internal/domain/repositories"
	"github.com/computeheavy/gonk/internal/domain/services/schemavalidate"
	"github.com/computeheavy/gonk/internal/domain/services/validate"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
	"github.com/computeheavy/gonk/pkg/metrics"
)

// dataset bundles one dataset's open stores with the per-dataset write
// lock that serializes its mutating operations (spec.md 5).
type dataset struct {
	mu    sync.Mutex
	rk    repositories.RecordKeeper
	depot repositories.Depot
	state repositories.State
}

// Service is the mutation-pipeline orchestrator. One Service wraps one
// Backend; it lazily opens and caches a dataset handle per name.
type Service struct {
	backend repositories.Backend
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	handles map[string]*dataset
}

func NewService(backend repositories.Backend, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		backend: backend,
		logger:  logger,
		metrics: m,
		handles: make(map[string]*dataset),
	}
}

// Open returns the raw stores for a dataset, for read-only callers
// (HTTP GET handlers) that don't need the write lock.
func (s *Service) Open(ctx context.Context, name string) (repositories.RecordKeeper, repositories.Depot, repositories.State, error) {
	d, err := s.handle(ctx, name)
	if err != nil {
		return nil, nil, nil, err
	}
	return d.rk, d.depot, d.state, nil
}

func (s *Service) handle(ctx context.Context, name string) (*dataset, error) {
	s.mu.Lock()
	d, ok := s.handles[name]
	s.mu.Unlock()
	if ok {
		return d, nil
	}

	exists, err := s.backend.DatasetExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, coreerrors.NewNotFoundError("dataset", name)
	}

	rk, depot, state, err := s.backend.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.handles[name]; ok {
		return existing, nil
	}
	d = &dataset{rk: rk, depot: depot, state: state}
	s.handles[name] = d
	return d, nil
}

// CreateDataset creates an empty dataset and appends its first
// OwnerAdd event naming owner, per spec.md 3.4 ("created implicitly
// with its first owner").
func (s *Service) CreateDataset(ctx context.Context, name, owner string) error {
	if exists, err := s.backend.DatasetExists(ctx, name); err != nil {
		return err
	} else if exists {
		return coreerrors.NewConflictError(fmt.Sprintf("dataset %q already exists", name))
	}
	if err := s.backend.CreateDataset(ctx, name); err != nil {
		return err
	}
	d, err := s.handle(ctx, name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = s.appendLocked(ctx, d, name, owner, entities.OwnerAddPayload{
		Owner:       owner,
		OwnerAction: entities.OwnerActionAdd,
	})
	if err != nil {
		s.logger.Error("failed to seed dataset owner", zap.String("dataset", name), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ListDatasets(ctx context.Context) ([]string, error) {
	return s.backend.ListDatasets(ctx)
}

func (s *Service) AddOwner(ctx context.Context, dsName, author, owner string) error {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = s.appendLocked(ctx, d, dsName, author, entities.OwnerAddPayload{
		Owner:       owner,
		OwnerAction: entities.OwnerActionAdd,
	})
	return err
}

func (s *Service) RemoveOwner(ctx context.Context, dsName, author, owner string) error {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = s.appendLocked(ctx, d, dsName, author, entities.OwnerRemovePayload{
		Owner:       owner,
		OwnerAction: entities.OwnerActionRemove,
	})
	return err
}

// CreateObject builds an ObjectCreate event from data, runs it through
// the pipeline and returns the resulting projected version.
func (s *Service) CreateObject(ctx context.Context, dsName, author, name, mimetype string, data []byte) (entities.ObjectVersion, error) {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return entities.ObjectVersion{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	id := entities.VersionedID{UUID: uuid.New(), Version: 0}
	ref := entities.ObjectRef{
		UUID:     id.UUID,
		Version:  0,
		Name:     name,
		Format:   mimetype,
		Size:     int64(len(data)),
		Hash:     entities.DigestOf(data),
		HashType: entities.HashTypeSHA256,
	}
	if _, err := s.appendWithBlobLocked(ctx, d, dsName, author, entities.ObjectCreatePayload{Object: ref, Action: entities.ActionCreate}, id, data, ref.Hash); err != nil {
		return entities.ObjectVersion{}, err
	}
	return d.state.Object(ctx, id)
}

// objectVersion returns the projected object version for id via state.
func (d *dataset) objectVersion(ctx context.Context, id entities.VersionedID) (entities.ObjectVersion, error) {
	return d.state.Object(ctx, id)
}

func (s *Service) UpdateObject(ctx context.Context, dsName, author string, objUUID uuid.UUID, name, mimetype string, data []byte) (entities.ObjectVersion, error) {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return entities.ObjectVersion{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	max, exists, err := d.state.MaxVersion(ctx, entities.KindObject, objUUID)
	if err != nil {
		return entities.ObjectVersion{}, err
	}
	if !exists {
		return entities.ObjectVersion{}, coreerrors.NewNotFoundError("object", objUUID.String())
	}
	version := max + 1
	ref := entities.ObjectRef{
		UUID:     objUUID,
		Version:  version,
		Name:     name,
		Format:   mimetype,
		Size:     int64(len(data)),
		Hash:     entities.DigestOf(data),
		HashType: entities.HashTypeSHA256,
	}
	id := entities.VersionedID{UUID: objUUID, Version: version}
	if _, err := s.appendWithBlobLocked(ctx, d, dsName, author, entities.ObjectUpdatePayload{Object: ref, Action: entities.ActionUpdate}, id, data, ref.Hash); err != nil {
		return entities.ObjectVersion{}, err
	}
	return d.objectVersion(ctx, id)
}

func (s *Service) DeleteObject(ctx context.Context, dsName, author string, id entities.VersionedID) error {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = s.appendLocked(ctx, d, dsName, author, entities.ObjectDeletePayload{ObjectIdentifier: id})
	return err
}

func (s *Service) CreateSchema(ctx context.Context, dsName, author, name string, schemaBytes []byte) (entities.SchemaVersion, error) {
	if _, err := schemavalidate.Compile(schemaBytes); err != nil {
		return entities.SchemaVersion{}, err
	}
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return entities.SchemaVersion{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	schemaUUID := uuid.New()
	ref := entities.SchemaRef{
		UUID:     schemaUUID,
		Version:  0,
		Name:     name,
		Format:   entities.SchemaFormat,
		Size:     int64(len(schemaBytes)),
		Hash:     entities.DigestOf(schemaBytes),
		HashType: entities.HashTypeSHA256,
	}
	id := entities.VersionedID{UUID: schemaUUID, Version: 0}
	if _, err := s.appendWithBlobLocked(ctx, d, dsName, author, entities.SchemaCreatePayload{Schema: ref, Action: entities.ActionCreate}, id, schemaBytes, ref.Hash); err != nil {
		return entities.SchemaVersion{}, err
	}
	return d.state.Schema(ctx, id)
}

func (s *Service) UpdateSchema(ctx context.Context, dsName, author, name string, schemaBytes []byte) (entities.SchemaVersion, error) {
	if _, err := schemavalidate.Compile(schemaBytes); err != nil {
		return entities.SchemaVersion{}, err
	}
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return entities.SchemaVersion{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.state.SchemaInfo(ctx, name)
	if err != nil {
		return entities.SchemaVersion{}, err
	}
	max, exists, err := d.state.MaxVersion(ctx, entities.KindSchema, info.UUID)
	if err != nil {
		return entities.SchemaVersion{}, err
	}
	if !exists {
		return entities.SchemaVersion{}, coreerrors.NewNotFoundError("schema", name)
	}
	version := max + 1
	ref := entities.SchemaRef{
		UUID:     info.UUID,
		Version:  version,
		Name:     name,
		Format:   entities.SchemaFormat,
		Size:     int64(len(schemaBytes)),
		Hash:     entities.DigestOf(schemaBytes),
		HashType: entities.HashTypeSHA256,
	}
	id := entities.VersionedID{UUID: info.UUID, Version: version}
	if _, err := s.appendWithBlobLocked(ctx, d, dsName, author, entities.SchemaUpdatePayload{Schema: ref, Action: entities.ActionUpdate}, id, schemaBytes, ref.Hash); err != nil {
		return entities.SchemaVersion{}, err
	}
	return d.state.Schema(ctx, id)
}

// DeprecateSchema implements the DELETE schema route: it appends a
// SchemaDeprecate event targeting id.
func (s *Service) DeprecateSchema(ctx context.Context, dsName, author string, id entities.VersionedID) error {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = s.appendLocked(ctx, d, dsName, author, entities.SchemaDeprecatePayload{SchemaIdentifier: id})
	return err
}

// CreateAnnotation resolves schemaName/schemaVersion, validates data
// against the resolved schema's bytes, then runs the create through
// the pipeline. This schema-body check sits above State.Validate,
// which only checks referential status (spec.md 4.2).
func (s *Service) CreateAnnotation(ctx context.Context, dsName, author, schemaName string, schemaVersion *int, objectIDs []entities.VersionedID, data []byte) (entities.AnnotationVersion, error) {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return entities.AnnotationVersion{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	schemaRef, err := d.state.ResolveSchema(ctx, schemaName, schemaVersion)
	if err != nil {
		return entities.AnnotationVersion{}, err
	}
	if err := s.validateAnnotationBody(ctx, d, schemaRef, data); err != nil {
		return entities.AnnotationVersion{}, err
	}

	annUUID := uuid.New()
	ref := entities.AnnotationRef{
		UUID:     annUUID,
		Version:  0,
		Schema:   schemaRef,
		Size:     int64(len(data)),
		Hash:     entities.DigestOf(data),
		HashType: entities.HashTypeSHA256,
	}
	id := entities.VersionedID{UUID: annUUID, Version: 0}
	payload := entities.AnnotationCreatePayload{Annotation: ref, ObjectIdentifiers: objectIDs, Action: entities.ActionCreate}
	if _, err := s.appendWithBlobLocked(ctx, d, dsName, author, payload, id, data, ref.Hash); err != nil {
		return entities.AnnotationVersion{}, err
	}
	return d.state.Annotation(ctx, id)
}

func (s *Service) UpdateAnnotation(ctx context.Context, dsName, author string, annUUID uuid.UUID, schemaName string, schemaVersion *int, objectIDs []entities.VersionedID, data []byte) (entities.AnnotationVersion, error) {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return entities.AnnotationVersion{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	schemaRef, err := d.state.ResolveSchema(ctx, schemaName, schemaVersion)
	if err != nil {
		return entities.AnnotationVersion{}, err
	}
	if err := s.validateAnnotationBody(ctx, d, schemaRef, data); err != nil {
		return entities.AnnotationVersion{}, err
	}

	max, exists, err := d.state.MaxVersion(ctx, entities.KindAnnotation, annUUID)
	if err != nil {
		return entities.AnnotationVersion{}, err
	}
	if !exists {
		return entities.AnnotationVersion{}, coreerrors.NewNotFoundError("annotation", annUUID.String())
	}
	version := max + 1
	ref := entities.AnnotationRef{
		UUID:     annUUID,
		Version:  version,
		Schema:   schemaRef,
		Size:     int64(len(data)),
		Hash:     entities.DigestOf(data),
		HashType: entities.HashTypeSHA256,
	}
	id := entities.VersionedID{UUID: annUUID, Version: version}
	payload := entities.AnnotationUpdatePayload{Annotation: ref, ObjectIdentifiers: objectIDs, Action: entities.ActionUpdate}
	if _, err := s.appendWithBlobLocked(ctx, d, dsName, author, payload, id, data, ref.Hash); err != nil {
		return entities.AnnotationVersion{}, err
	}
	return d.state.Annotation(ctx, id)
}

func (s *Service) DeleteAnnotation(ctx context.Context, dsName, author string, id entities.VersionedID) error {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = s.appendLocked(ctx, d, dsName, author, entities.AnnotationDeletePayload{AnnotationIdentifier: id})
	return err
}

// validateAnnotationBody fetches the resolved schema's compiled form
// from its depot bytes and validates data against it. A missing
// schema blob (bytes-missing) surfaces as IntegrityError, per spec.md
// 4.6.
func (s *Service) validateAnnotationBody(ctx context.Context, d *dataset, schemaRef entities.VersionedID, data []byte) error {
	schemaBytes, err := d.depot.Read(ctx, schemaRef)
	if err != nil {
		if coreerrors.IsKind(err, coreerrors.KindNotFound) {
			return coreerrors.NewIntegrityError("schema-bytes-missing")
		}
		return err
	}
	schema, err := schemavalidate.Compile(schemaBytes)
	if err != nil {
		return err
	}
	return schemavalidate.ValidateInstance(schema, data)
}

func (s *Service) AcceptReview(ctx context.Context, dsName, author string, eventUUID uuid.UUID) error {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = s.appendLocked(ctx, d, dsName, author, entities.ReviewAcceptPayload{EventUUID: eventUUID})
	return err
}

func (s *Service) RejectReview(ctx context.Context, dsName, author string, eventUUID uuid.UUID) error {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = s.appendLocked(ctx, d, dsName, author, entities.ReviewRejectPayload{EventUUID: eventUUID})
	return err
}

// Repair retries the depot write for a versioned entity whose
// creating/updating event is log-present but whose bytes never
// landed (spec.md 4.6). data must hash to the digest recorded on the
// original event; Depot.Write enforces that.
func (s *Service) Repair(ctx context.Context, dsName string, kind entities.EntityKind, id entities.VersionedID, data []byte) error {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	missing, err := d.state.BytesMissing(ctx, kind, id)
	if err != nil {
		return err
	}
	if !missing {
		return coreerrors.NewValidationError("not-missing", fmt.Sprintf("%s %s is not bytes-missing", kind, id))
	}
	expected, err := s.recordedDigest(ctx, d, kind, id)
	if err != nil {
		return err
	}
	if err := d.depot.Write(ctx, id, data, expected); err != nil {
		return err
	}
	return d.state.ClearBytesMissing(ctx, kind, id)
}

func (s *Service) recordedDigest(ctx context.Context, d *dataset, kind entities.EntityKind, id entities.VersionedID) (entities.Digest, error) {
	switch kind {
	case entities.KindObject:
		v, err := d.state.Object(ctx, id)
		return v.Hash, err
	case entities.KindSchema:
		v, err := d.state.Schema(ctx, id)
		return v.Hash, err
	case entities.KindAnnotation:
		v, err := d.state.Annotation(ctx, id)
		return v.Hash, err
	default:
		return "", fmt.Errorf("core: unknown entity kind %q", kind)
	}
}

// VerifyIntegrity recomputes the integrity chain/signatures over
// dsName's full log (spec.md 4.6), for the synchronous HTTP endpoint
// and the background worker alike.
func (s *Service) VerifyIntegrity(ctx context.Context, dsName string) (ok bool, firstBadSeq int64, err error) {
	d, err := s.handle(ctx, dsName)
	if err != nil {
		return false, 0, err
	}
	ok, firstBadSeq, err = d.rk.Verify(ctx)
	if err != nil {
		return ok, firstBadSeq, err
	}
	if ok {
		s.metrics.IntegrityOK.WithLabelValues(dsName).Set(1)
		s.metrics.IntegrityBadSeq.WithLabelValues(dsName).Set(-1)
	} else {
		s.metrics.IntegrityOK.WithLabelValues(dsName).Set(0)
		s.metrics.IntegrityBadSeq.WithLabelValues(dsName).Set(float64(firstBadSeq))
		s.logger.Error("integrity verification failed", zap.String("dataset", dsName), zap.Int64("first_bad_seq", firstBadSeq))
	}
	return ok, firstBadSeq, nil
}

// appendLocked runs payload through the validate -> append -> apply
// pipeline for a payload with no associated blob (owner/delete/review
// events). The caller must already hold d.mu.
func (s *Service) appendLocked(ctx context.Context, d *dataset, dsName, author string, payload entities.Payload) (entities.Event, error) {
	e := entities.Event{
		UUID:      uuid.New(),
		Dataset:   dsName,
		Type:      payload.Kind(),
		Author:    author,
		Timestamp: entities.Now(),
		Payload:   payload,
	}
	if err := s.validateLocked(ctx, d, e); err != nil {
		s.metrics.ValidationErrors.WithLabelValues(dsName, reasonCode(err)).Inc()
		return entities.Event{}, err
	}
	token, err := d.rk.Append(ctx, e)
	if err != nil {
		return entities.Event{}, coreerrors.NewIOError("append", err)
	}
	e.Integrity = token
	if err := d.state.Apply(ctx, e); err != nil {
		s.logger.Error("state apply failed after append", zap.String("dataset", dsName), zap.String("event", e.UUID.String()), zap.Error(err))
		return entities.Event{}, err
	}
	s.metrics.EventsAppended.WithLabelValues(dsName, string(e.Type)).Inc()
	s.logger.Info("event appended", zap.String("dataset", dsName), zap.String("event_uuid", e.UUID.String()), zap.String("kind", string(e.Type)))
	return e, nil
}

// appendWithBlobLocked is appendLocked plus the Depot.write step for
// payloads that carry bytes (object/schema/annotation create/update).
// A depot failure after append does not roll back the log; it marks
// the entity bytes-missing instead (spec.md 4.6).
func (s *Service) appendWithBlobLocked(ctx context.Context, d *dataset, dsName, author string, payload entities.Payload, id entities.VersionedID, data []byte, digest entities.Digest) (entities.Event, error) {
	e := entities.Event{
		UUID:      uuid.New(),
		Dataset:   dsName,
		Type:      payload.Kind(),
		Author:    author,
		Timestamp: entities.Now(),
		Payload:   payload,
	}
	kind := kindOf(payload)
	if err := s.validateLocked(ctx, d, e); err != nil {
		s.metrics.ValidationErrors.WithLabelValues(dsName, reasonCode(err)).Inc()
		return entities.Event{}, err
	}
	token, err := d.rk.Append(ctx, e)
	if err != nil {
		return entities.Event{}, coreerrors.NewIOError("append", err)
	}
	e.Integrity = token

	if err := d.depot.Write(ctx, id, data, digest); err != nil {
		s.metrics.DepotFailures.WithLabelValues(dsName).Inc()
		s.logger.Warn("depot write failed after append; marking bytes-missing",
			zap.String("dataset", dsName), zap.String("entity", id.String()), zap.Error(err))
		if applyErr := d.state.Apply(ctx, e); applyErr != nil {
			s.logger.Error("state apply failed after depot failure", zap.Error(applyErr))
			return entities.Event{}, applyErr
		}
		if markErr := d.state.MarkBytesMissing(ctx, kind, id); markErr != nil {
			s.logger.Error("failed to mark bytes-missing", zap.Error(markErr))
		}
		return e, coreerrors.NewIOError("depot-write", err)
	}

	if err := d.state.Apply(ctx, e); err != nil {
		s.logger.Error("state apply failed after append", zap.String("dataset", dsName), zap.String("event", e.UUID.String()), zap.Error(err))
		return entities.Event{}, err
	}
	s.metrics.EventsAppended.WithLabelValues(dsName, string(e.Type)).Inc()
	s.logger.Info("event appended", zap.String("dataset", dsName), zap.String("event_uuid", e.UUID.String()), zap.String("kind", string(e.Type)))
	return e, nil
}

// reasonCode extracts a metrics-safe reason label from err, falling
// back to "unknown" for errors that aren't *errors.Error.
func reasonCode(err error) string {
	if e := coreerrors.AsError(err); e != nil {
		return e.Reason
	}
	return "unknown"
}

// validateLocked runs the projection-gate checks of spec.md 4.2.
// repositories.State's method set is a superset of validate.Lookups
// with identical signatures, so d.state satisfies it directly.
func (s *Service) validateLocked(ctx context.Context, d *dataset, e entities.Event) error {
	return validate.Validate(ctx, d.state, e)
}

func kindOf(p entities.Payload) entities.EntityKind {
	switch p.Kind() {
	case entities.KindObjectCreate, entities.KindObjectUpdate:
		return entities.KindObject
	case entities.KindSchemaCreate, entities.KindSchemaUpdate:
		return entities.KindSchema
	case entities.KindAnnotationCreate, entities.KindAnnotationUpdate:
		return entities.KindAnnotation
	default:
		return ""
	}
}
