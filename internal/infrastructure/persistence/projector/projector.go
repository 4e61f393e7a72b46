// Package projector implements repositories.State as a pure in-memory
// projection over a dataset's event log (spec.md 4.6: "State is a
// pure projection of RecordKeeper and therefore can be rebuilt from
// scratch by replaying the log"). The filesystem backend rebuilds one
// of these at Open; the relational backend does not use it, since its
// State is held entirely in SQL tables.
package projector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/computeheavy/gonk/internal/domain/entities"
	"github.com/computeheavy/gonk/internal/domain/repositories"
	"github.com/computeheavy/gonk/internal/domain/services/validate"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// reviewTarget records what accepting/rejecting a create/update/
// delete/deprecate event would act on.
type reviewTarget struct {
	kind         entities.EntityKind
	id           entities.VersionedID
	isDeleteLike bool
}

// State is a single dataset's projected view. Zero value is a valid,
// empty projection; callers replay a log into it via Apply.
type State struct {
	mu sync.RWMutex

	owners map[string]bool

	objects            map[uuid.UUID][]entities.ObjectVersion
	objectStatus       map[entities.VersionedID]entities.Status
	objectBytesMissing map[entities.VersionedID]bool

	schemas            map[uuid.UUID][]entities.SchemaVersion
	schemaStatus       map[entities.VersionedID]entities.Status
	schemaBytesMissing map[entities.VersionedID]bool
	schemaNameOwner    map[string]uuid.UUID // current claimant of a name
	schemaUUIDName     map[uuid.UUID]string // name a schema uuid was created under

	annotations            map[uuid.UUID][]entities.AnnotationVersion
	annotationStatus       map[entities.VersionedID]entities.Status
	annotationBytesMissing map[entities.VersionedID]bool
	objectAnnotations      map[entities.VersionedID][]entities.VersionedID // object version -> annotations referencing it

	events        map[uuid.UUID]entities.Event
	entityEvents  map[string][]uuid.UUID // "<kind>:<uuid>" -> event uuids touching it
	reviewState   map[uuid.UUID]entities.ReviewState
	reviewTargets map[uuid.UUID]reviewTarget
}

// New returns an empty projection.
func New() *State {
	return &State{
		owners:                 make(map[string]bool),
		objects:                make(map[uuid.UUID][]entities.ObjectVersion),
		objectStatus:           make(map[entities.VersionedID]entities.Status),
		objectBytesMissing:     make(map[entities.VersionedID]bool),
		schemas:                make(map[uuid.UUID][]entities.SchemaVersion),
		schemaStatus:           make(map[entities.VersionedID]entities.Status),
		schemaBytesMissing:     make(map[entities.VersionedID]bool),
		schemaNameOwner:        make(map[string]uuid.UUID),
		schemaUUIDName:         make(map[uuid.UUID]string),
		annotations:            make(map[uuid.UUID][]entities.AnnotationVersion),
		annotationStatus:       make(map[entities.VersionedID]entities.Status),
		annotationBytesMissing: make(map[entities.VersionedID]bool),
		objectAnnotations:      make(map[entities.VersionedID][]entities.VersionedID),
		events:                 make(map[uuid.UUID]entities.Event),
		entityEvents:           make(map[string][]uuid.UUID),
		reviewState:            make(map[uuid.UUID]entities.ReviewState),
		reviewTargets:          make(map[uuid.UUID]reviewTarget),
	}
}

func entityKey(kind entities.EntityKind, id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// Validate implements repositories.State's validation gate by
// delegating to the shared validation table (spec.md 4.2). The
// in-memory State's own read methods satisfy validate.Lookups.
func (s *State) Validate(ctx context.Context, e entities.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return validate.Validate(ctx, s, e)
}

// Apply transitions the projection for e. Callers must only pass
// events that already passed Validate.
func (s *State) Apply(ctx context.Context, e entities.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p := e.Payload.(type) {
	case entities.OwnerAddPayload:
		s.owners[p.Owner] = true

	case entities.OwnerRemovePayload:
		delete(s.owners, p.Owner)

	case entities.ObjectCreatePayload:
		s.putObject(e, p.Object)
	case entities.ObjectUpdatePayload:
		s.putObject(e, p.Object)
	case entities.ObjectDeletePayload:
		s.recordReviewable(e, entities.KindObject, p.ObjectIdentifier, true)

	case entities.SchemaCreatePayload:
		s.putSchema(e, p.Schema)
		if _, bound := s.schemaUUIDName[p.Schema.UUID]; !bound {
			s.schemaUUIDName[p.Schema.UUID] = p.Schema.Name
		}
		s.schemaNameOwner[p.Schema.Name] = p.Schema.UUID
	case entities.SchemaUpdatePayload:
		s.putSchema(e, p.Schema)
	case entities.SchemaDeprecatePayload:
		s.recordReviewable(e, entities.KindSchema, p.SchemaIdentifier, true)

	case entities.AnnotationCreatePayload:
		s.putAnnotation(e, p.Annotation, p.ObjectIdentifiers)
	case entities.AnnotationUpdatePayload:
		s.putAnnotation(e, p.Annotation, p.ObjectIdentifiers)
	case entities.AnnotationDeletePayload:
		s.recordReviewable(e, entities.KindAnnotation, p.AnnotationIdentifier, true)

	case entities.ReviewAcceptPayload:
		s.applyReview(p.EventUUID, e.UUID, entities.ReviewAccepted)
	case entities.ReviewRejectPayload:
		s.applyReview(p.EventUUID, e.UUID, entities.ReviewRejected)

	default:
		return fmt.Errorf("projector: unhandled event kind %q", e.Type)
	}

	s.events[e.UUID] = e
	return nil
}

func (s *State) putObject(e entities.Event, ref entities.ObjectRef) {
	v := entities.ObjectVersion{
		UUID: ref.UUID, Version: ref.Version, Name: ref.Name, Format: ref.Format,
		Size: ref.Size, Hash: ref.Hash, HashType: ref.HashType,
		Status: entities.StatusPending, CreatedBy: e.Author, CreatedAt: e.Timestamp,
	}
	s.objects[ref.UUID] = append(s.objects[ref.UUID], v)
	id := entities.VersionedID{UUID: ref.UUID, Version: ref.Version}
	s.objectStatus[id] = entities.StatusPending
	s.recordReviewable(e, entities.KindObject, id, false)
}

func (s *State) putSchema(e entities.Event, ref entities.SchemaRef) {
	v := entities.SchemaVersion{
		UUID: ref.UUID, Version: ref.Version, Name: ref.Name, Format: ref.Format,
		Size: ref.Size, Hash: ref.Hash, HashType: ref.HashType,
		Status: entities.StatusPending, CreatedBy: e.Author, CreatedAt: e.Timestamp,
	}
	s.schemas[ref.UUID] = append(s.schemas[ref.UUID], v)
	id := entities.VersionedID{UUID: ref.UUID, Version: ref.Version}
	s.schemaStatus[id] = entities.StatusPending
	s.recordReviewable(e, entities.KindSchema, id, false)
}

func (s *State) putAnnotation(e entities.Event, ref entities.AnnotationRef, objectIDs []entities.VersionedID) {
	v := entities.AnnotationVersion{
		UUID: ref.UUID, Version: ref.Version, Schema: ref.Schema, ObjectIdentifiers: objectIDs,
		Size: ref.Size, Hash: ref.Hash, HashType: ref.HashType,
		Status: entities.StatusPending, CreatedBy: e.Author, CreatedAt: e.Timestamp,
	}
	s.annotations[ref.UUID] = append(s.annotations[ref.UUID], v)
	id := entities.VersionedID{UUID: ref.UUID, Version: ref.Version}
	s.annotationStatus[id] = entities.StatusPending
	for _, objID := range objectIDs {
		s.objectAnnotations[objID] = append(s.objectAnnotations[objID], id)
	}
	s.recordReviewable(e, entities.KindAnnotation, id, false)
}

// recordReviewable indexes e against the entity it names (for
// EventsFor) and, if e itself awaits review (every non-review event
// does), records what accepting/rejecting it would act on.
func (s *State) recordReviewable(e entities.Event, kind entities.EntityKind, id entities.VersionedID, isDeleteLike bool) {
	key := entityKey(kind, id.UUID)
	s.entityEvents[key] = append(s.entityEvents[key], e.UUID)
	s.reviewState[e.UUID] = entities.ReviewPending
	s.reviewTargets[e.UUID] = reviewTarget{kind: kind, id: id, isDeleteLike: isDeleteLike}
}

func (s *State) applyReview(targetEventUUID, reviewEventUUID uuid.UUID, outcome entities.ReviewState) {
	s.reviewState[targetEventUUID] = outcome

	target, ok := s.reviewTargets[targetEventUUID]
	if !ok {
		return
	}
	key := entityKey(target.kind, target.id.UUID)
	s.entityEvents[key] = append(s.entityEvents[key], reviewEventUUID)

	if outcome == entities.ReviewRejected {
		if !target.isDeleteLike {
			s.setStatus(target.kind, target.id, entities.StatusRejected)
		}
		return
	}

	// Accepted.
	if target.isDeleteLike {
		current, found := s.statusOf(target.kind, target.id)
		if found && current.IsTerminal() {
			// Lost the race to an earlier accepted delete/deprecate;
			// validateReview should have already refused this, but
			// Apply never errors on an already-validated event.
			return
		}
		terminal := entities.StatusDeleted
		if target.kind == entities.KindSchema {
			terminal = entities.StatusDeprecated
		}
		s.setStatus(target.kind, target.id, terminal)
		return
	}
	s.setStatus(target.kind, target.id, entities.StatusAccepted)
}

func (s *State) setStatus(kind entities.EntityKind, id entities.VersionedID, status entities.Status) {
	switch kind {
	case entities.KindObject:
		s.objectStatus[id] = status
		s.patchObjectStatus(id, status)
	case entities.KindSchema:
		s.schemaStatus[id] = status
		s.patchSchemaStatus(id, status)
	case entities.KindAnnotation:
		s.annotationStatus[id] = status
		s.patchAnnotationStatus(id, status)
	}
}

func (s *State) patchObjectStatus(id entities.VersionedID, status entities.Status) {
	versions := s.objects[id.UUID]
	if id.Version >= 0 && id.Version < len(versions) {
		versions[id.Version].Status = status
	}
}

func (s *State) patchSchemaStatus(id entities.VersionedID, status entities.Status) {
	versions := s.schemas[id.UUID]
	if id.Version >= 0 && id.Version < len(versions) {
		versions[id.Version].Status = status
	}
}

func (s *State) patchAnnotationStatus(id entities.VersionedID, status entities.Status) {
	versions := s.annotations[id.UUID]
	if id.Version >= 0 && id.Version < len(versions) {
		versions[id.Version].Status = status
	}
}

func (s *State) statusOf(kind entities.EntityKind, id entities.VersionedID) (entities.Status, bool) {
	switch kind {
	case entities.KindObject:
		st, ok := s.objectStatus[id]
		return st, ok
	case entities.KindSchema:
		st, ok := s.schemaStatus[id]
		return st, ok
	case entities.KindAnnotation:
		st, ok := s.annotationStatus[id]
		return st, ok
	default:
		return "", false
	}
}

// Status implements repositories.State / validate.Lookups.
func (s *State) Status(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) (entities.Status, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statusOf(kind, id)
	return st, ok, nil
}

func (s *State) MaxVersion(ctx context.Context, kind entities.EntityKind, id uuid.UUID) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case entities.KindObject:
		vs, ok := s.objects[id]
		if !ok || len(vs) == 0 {
			return 0, false, nil
		}
		return len(vs) - 1, true, nil
	case entities.KindSchema:
		vs, ok := s.schemas[id]
		if !ok || len(vs) == 0 {
			return 0, false, nil
		}
		return len(vs) - 1, true, nil
	case entities.KindAnnotation:
		vs, ok := s.annotations[id]
		if !ok || len(vs) == 0 {
			return 0, false, nil
		}
		return len(vs) - 1, true, nil
	default:
		return 0, false, fmt.Errorf("projector: unknown entity kind %q", kind)
	}
}

func (s *State) Owners(ctx context.Context, dataset string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.owners))
	for o := range s.owners {
		out = append(out, o)
	}
	sort.Strings(out)
	return out, nil
}

func (s *State) SchemaNameTaken(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.schemaNameOwner[name]
	if !ok {
		return false, nil
	}
	for _, v := range s.schemas[owner] {
		if v.Status != entities.StatusDeprecated {
			return true, nil
		}
	}
	return false, nil
}

func (s *State) SchemaName(ctx context.Context, schemaUUID uuid.UUID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.schemaUUIDName[schemaUUID]
	return name, ok, nil
}

func (s *State) ResolveSchema(ctx context.Context, name string, version *int) (entities.VersionedID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.schemaNameOwner[name]
	if !ok {
		return entities.VersionedID{}, coreerrors.NewNotFoundError("schema", name)
	}
	versions := s.schemas[owner]
	if version != nil {
		if *version < 0 || *version >= len(versions) {
			return entities.VersionedID{}, coreerrors.NewNotFoundError("schema", fmt.Sprintf("%s@%d", name, *version))
		}
		return entities.VersionedID{UUID: owner, Version: *version}, nil
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Status == entities.StatusAccepted {
			return entities.VersionedID{UUID: owner, Version: i}, nil
		}
	}
	return entities.VersionedID{}, coreerrors.NewNotFoundError("schema", name+" (no accepted version)")
}

func (s *State) Object(ctx context.Context, id entities.VersionedID) (entities.ObjectVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.objects[id.UUID]
	if id.Version < 0 || id.Version >= len(versions) {
		return entities.ObjectVersion{}, coreerrors.NewNotFoundError("object", id.String())
	}
	v := versions[id.Version]
	v.BytesMissing = s.objectBytesMissing[id]
	return v, nil
}

func (s *State) ObjectInfo(ctx context.Context, id uuid.UUID) (entities.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.objects[id]
	if !ok {
		return entities.ObjectInfo{}, coreerrors.NewNotFoundError("object", id.String())
	}
	return entities.ObjectInfo{UUID: id, Versions: len(versions)}, nil
}

func (s *State) ListObjectInfos(ctx context.Context, after *uuid.UUID, limit int) ([]entities.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.objects))
	for id := range s.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	ids, err := sliceAfterUUID(ids, after, limit)
	if err != nil {
		return nil, err
	}
	out := make([]entities.ObjectInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, entities.ObjectInfo{UUID: id, Versions: len(s.objects[id])})
	}
	return out, nil
}

func (s *State) Schema(ctx context.Context, id entities.VersionedID) (entities.SchemaVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.schemas[id.UUID]
	if id.Version < 0 || id.Version >= len(versions) {
		return entities.SchemaVersion{}, coreerrors.NewNotFoundError("schema", id.String())
	}
	v := versions[id.Version]
	v.BytesMissing = s.schemaBytesMissing[id]
	return v, nil
}

func (s *State) SchemaByName(ctx context.Context, name string, version *int) (entities.SchemaVersion, error) {
	id, err := s.ResolveSchema(ctx, name, version)
	if err != nil {
		return entities.SchemaVersion{}, err
	}
	return s.Schema(ctx, id)
}

func (s *State) SchemaInfo(ctx context.Context, name string) (entities.SchemaInfo, error) {
	s.mu.RLock()
	owner, ok := s.schemaNameOwner[name]
	s.mu.RUnlock()
	if !ok {
		return entities.SchemaInfo{}, coreerrors.NewNotFoundError("schema", name)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entities.SchemaInfo{Name: name, UUID: owner, Versions: len(s.schemas[owner])}, nil
}

func (s *State) ListSchemaInfos(ctx context.Context, after *string, limit int) ([]entities.SchemaInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.schemaNameOwner))
	for name := range s.schemaNameOwner {
		names = append(names, name)
	}
	sort.Strings(names)
	names, err := sliceAfterString(names, after, limit)
	if err != nil {
		return nil, err
	}
	out := make([]entities.SchemaInfo, 0, len(names))
	for _, name := range names {
		owner := s.schemaNameOwner[name]
		out = append(out, entities.SchemaInfo{Name: name, UUID: owner, Versions: len(s.schemas[owner])})
	}
	return out, nil
}

func (s *State) Annotation(ctx context.Context, id entities.VersionedID) (entities.AnnotationVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.annotations[id.UUID]
	if id.Version < 0 || id.Version >= len(versions) {
		return entities.AnnotationVersion{}, coreerrors.NewNotFoundError("annotation", id.String())
	}
	v := versions[id.Version]
	v.BytesMissing = s.annotationBytesMissing[id]
	return v, nil
}

func (s *State) AnnotationInfo(ctx context.Context, id uuid.UUID) (entities.AnnotationInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.annotations[id]
	if !ok {
		return entities.AnnotationInfo{}, coreerrors.NewNotFoundError("annotation", id.String())
	}
	return entities.AnnotationInfo{UUID: id, Versions: len(versions)}, nil
}

func (s *State) ListAnnotationInfos(ctx context.Context, after *uuid.UUID, limit int) ([]entities.AnnotationInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.annotations))
	for id := range s.annotations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	ids, err := sliceAfterUUID(ids, after, limit)
	if err != nil {
		return nil, err
	}
	out := make([]entities.AnnotationInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, entities.AnnotationInfo{UUID: id, Versions: len(s.annotations[id])})
	}
	return out, nil
}

func (s *State) AnnotationsFor(ctx context.Context, object entities.VersionedID) ([]entities.AnnotationInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := s.objectAnnotations[object]
	seen := make(map[uuid.UUID]bool)
	out := make([]entities.AnnotationInfo, 0, len(refs))
	for _, ref := range refs {
		status := s.annotationStatus[ref]
		if status == entities.StatusRejected || seen[ref.UUID] {
			continue
		}
		seen[ref.UUID] = true
		out = append(out, entities.AnnotationInfo{UUID: ref.UUID, Versions: len(s.annotations[ref.UUID])})
	}
	return out, nil
}

func (s *State) EventsFor(ctx context.Context, kind entities.EntityKind, id uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uuid.UUID(nil), s.entityEvents[entityKey(kind, id)]...), nil
}

func (s *State) ReviewState(ctx context.Context, id uuid.UUID) (entities.ReviewState, entities.EventKind, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.events[id]
	if !found {
		return "", "", false, nil
	}
	return s.reviewState[id], e.Type, true, nil
}

func (s *State) ReviewTarget(ctx context.Context, id uuid.UUID) (entities.EntityKind, entities.VersionedID, bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.reviewTargets[id]
	if !ok {
		return "", entities.VersionedID{}, false, false, nil
	}
	return t.kind, t.id, t.isDeleteLike, true, nil
}

func (s *State) MarkBytesMissing(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case entities.KindObject:
		s.objectBytesMissing[id] = true
	case entities.KindSchema:
		s.schemaBytesMissing[id] = true
	case entities.KindAnnotation:
		s.annotationBytesMissing[id] = true
	}
	return nil
}

func (s *State) ClearBytesMissing(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case entities.KindObject:
		delete(s.objectBytesMissing, id)
	case entities.KindSchema:
		delete(s.schemaBytesMissing, id)
	case entities.KindAnnotation:
		delete(s.annotationBytesMissing, id)
	}
	return nil
}

func (s *State) BytesMissing(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case entities.KindObject:
		return s.objectBytesMissing[id], nil
	case entities.KindSchema:
		return s.schemaBytesMissing[id], nil
	case entities.KindAnnotation:
		return s.annotationBytesMissing[id], nil
	default:
		return false, nil
	}
}

// ListStatus lists (uuid,version) pairs of kind currently in status,
// paginated by the entity uuid in lexical order.
func (s *State) ListStatus(ctx context.Context, kind entities.EntityKind, status entities.Status, after *uuid.UUID, limit int) ([]repositories.VersionedStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type row struct {
		id   entities.VersionedID
		name string
	}
	var rows []row
	switch kind {
	case entities.KindObject:
		for objID, versions := range s.objects {
			for v, ov := range versions {
				if ov.Status == status {
					rows = append(rows, row{id: entities.VersionedID{UUID: objID, Version: v}})
				}
			}
		}
	case entities.KindSchema:
		for schemaID, versions := range s.schemas {
			name := s.schemaUUIDName[schemaID]
			for v, sv := range versions {
				if sv.Status == status {
					rows = append(rows, row{id: entities.VersionedID{UUID: schemaID, Version: v}, name: name})
				}
			}
		}
	case entities.KindAnnotation:
		for annID, versions := range s.annotations {
			for v, av := range versions {
				if av.Status == status {
					rows = append(rows, row{id: entities.VersionedID{UUID: annID, Version: v}})
				}
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].id.UUID.String() != rows[j].id.UUID.String() {
			return rows[i].id.UUID.String() < rows[j].id.UUID.String()
		}
		return rows[i].id.Version < rows[j].id.Version
	})

	start := 0
	if after != nil {
		found := false
		for i, r := range rows {
			if r.id.UUID == *after {
				found = true
				start = i + 1
				break
			}
		}
		if !found {
			if !s.kindHasUUID(kind, *after) {
				return nil, coreerrors.NewValidationError("after", "unknown cursor uuid")
			}
			start = len(rows)
		}
	}
	end := start + limit
	if end > len(rows) || limit <= 0 {
		end = len(rows)
	}
	if start > len(rows) {
		start = len(rows)
	}

	out := make([]repositories.VersionedStatus, 0, end-start)
	for _, r := range rows[start:end] {
		out = append(out, repositories.VersionedStatus{UUID: r.id.UUID, Version: r.id.Version, Status: status, Name: r.name})
	}
	return out, nil
}

func (s *State) kindHasUUID(kind entities.EntityKind, id uuid.UUID) bool {
	switch kind {
	case entities.KindObject:
		_, ok := s.objects[id]
		return ok
	case entities.KindSchema:
		_, ok := s.schemas[id]
		return ok
	case entities.KindAnnotation:
		_, ok := s.annotations[id]
		return ok
	default:
		return false
	}
}

func sliceAfterUUID(ids []uuid.UUID, after *uuid.UUID, limit int) ([]uuid.UUID, error) {
	start := 0
	if after != nil {
		found := false
		for i, id := range ids {
			if id == *after {
				found = true
				start = i + 1
				break
			}
		}
		if !found {
			return nil, coreerrors.NewValidationError("after", "unknown cursor uuid")
		}
	}
	end := start + limit
	if end > len(ids) || limit <= 0 {
		end = len(ids)
	}
	if start > len(ids) {
		start = len(ids)
	}
	return ids[start:end], nil
}

func sliceAfterString(ss []string, after *string, limit int) ([]string, error) {
	start := 0
	if after != nil {
		found := false
		for i, s := range ss {
			if s == *after {
				found = true
				start = i + 1
				break
			}
		}
		if !found {
			return nil, coreerrors.NewValidationError("after", "unknown cursor")
		}
	}
	end := start + limit
	if end > len(ss) || limit <= 0 {
		end = len(ss)
	}
	if start > len(ss) {
		start = len(ss)
	}
	return ss[start:end], nil
}
