package validate

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computeheavy/gonk/internal/domain/entities"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// stubLookups is an in-memory Lookups implementation the validate
// tests configure directly, so each test exercises exactly one
// precondition without needing a real State backend.
type stubLookups struct {
	maxVersion      map[uuid.UUID]int
	exists          map[uuid.UUID]bool
	status          map[entities.VersionedID]entities.Status
	owners          []string
	schemaNameTaken map[string]bool
	schemaNames     map[uuid.UUID]string
	reviewState     map[uuid.UUID]entities.ReviewState
	reviewKind      map[uuid.UUID]entities.EventKind
	reviewFound     map[uuid.UUID]bool
	targetKind      map[uuid.UUID]entities.EntityKind
	targetID        map[uuid.UUID]entities.VersionedID
	targetDeleteLike map[uuid.UUID]bool
	targetFound     map[uuid.UUID]bool
}

func newStubLookups() *stubLookups {
	return &stubLookups{
		maxVersion:       map[uuid.UUID]int{},
		exists:           map[uuid.UUID]bool{},
		status:           map[entities.VersionedID]entities.Status{},
		schemaNameTaken:  map[string]bool{},
		schemaNames:      map[uuid.UUID]string{},
		reviewState:      map[uuid.UUID]entities.ReviewState{},
		reviewKind:       map[uuid.UUID]entities.EventKind{},
		reviewFound:      map[uuid.UUID]bool{},
		targetKind:       map[uuid.UUID]entities.EntityKind{},
		targetID:         map[uuid.UUID]entities.VersionedID{},
		targetDeleteLike: map[uuid.UUID]bool{},
		targetFound:      map[uuid.UUID]bool{},
	}
}

func (s *stubLookups) MaxVersion(ctx context.Context, kind entities.EntityKind, id uuid.UUID) (int, bool, error) {
	return s.maxVersion[id], s.exists[id], nil
}

func (s *stubLookups) Status(ctx context.Context, kind entities.EntityKind, id entities.VersionedID) (entities.Status, bool, error) {
	st, ok := s.status[id]
	return st, ok, nil
}

func (s *stubLookups) Owners(ctx context.Context, dataset string) ([]string, error) {
	return s.owners, nil
}

func (s *stubLookups) SchemaNameTaken(ctx context.Context, name string) (bool, error) {
	return s.schemaNameTaken[name], nil
}

func (s *stubLookups) SchemaName(ctx context.Context, schemaUUID uuid.UUID) (string, bool, error) {
	name, ok := s.schemaNames[schemaUUID]
	return name, ok, nil
}

func (s *stubLookups) ReviewState(ctx context.Context, id uuid.UUID) (entities.ReviewState, entities.EventKind, bool, error) {
	return s.reviewState[id], s.reviewKind[id], s.reviewFound[id], nil
}

func (s *stubLookups) ReviewTarget(ctx context.Context, id uuid.UUID) (entities.EntityKind, entities.VersionedID, bool, bool, error) {
	return s.targetKind[id], s.targetID[id], s.targetDeleteLike[id], s.targetFound[id], nil
}

func validHash() (entities.HashType, entities.Digest) {
	return entities.HashTypeSHA256, entities.DigestOf([]byte("payload"))
}

// TestValidate_OwnerFloor exercises P8: a dataset's owner set must
// never be driven to empty by an OwnerRemove event.
func TestValidate_OwnerFloor(t *testing.T) {
	tests := []struct {
		name    string
		owners  []string
		remove  string
		wantErr string
	}{
		{"last owner is refused", []string{"alice"}, "alice", "last-owner"},
		{"removing one of several is fine", []string{"alice", "bob"}, "alice", ""},
		{"removing a non-owner is refused", []string{"alice"}, "carol", "not-owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newStubLookups()
			l.owners = tt.owners
			e := entities.Event{Dataset: "ds1", Payload: entities.OwnerRemovePayload{Owner: tt.remove, OwnerAction: entities.OwnerActionRemove}}

			err := Validate(context.Background(), l, e)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			ce := coreerrors.AsError(err)
			require.NotNil(t, ce)
			assert.Equal(t, tt.wantErr, ce.Reason)
		})
	}
}

func TestValidate_OwnerAdd_Duplicate(t *testing.T) {
	l := newStubLookups()
	l.owners = []string{"alice"}
	e := entities.Event{Dataset: "ds1", Payload: entities.OwnerAddPayload{Owner: "alice", OwnerAction: entities.OwnerActionAdd}}

	err := Validate(context.Background(), l, e)
	require.Error(t, err)
	assert.Equal(t, "owner-exists", coreerrors.AsError(err).Reason)
}

// TestValidate_ReviewIdempotence exercises P7: a review event can
// never be applied twice against the same target event.
func TestValidate_ReviewIdempotence(t *testing.T) {
	targetUUID := uuid.New()

	tests := []struct {
		name        string
		found       bool
		kind        entities.EventKind
		state       entities.ReviewState
		wantErr     string
		wantSuccess bool
	}{
		{"pending target accepts", true, entities.KindObjectCreate, entities.ReviewPending, "", true},
		{"already accepted target is refused", true, entities.KindObjectCreate, entities.ReviewAccepted, "already-reviewed", false},
		{"already rejected target is refused", true, entities.KindObjectCreate, entities.ReviewRejected, "already-reviewed", false},
		{"review events cannot themselves be reviewed", true, entities.KindReviewAccept, entities.ReviewPending, "not-reviewable", false},
		{"unknown target event", false, "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newStubLookups()
			l.reviewFound[targetUUID] = tt.found
			l.reviewKind[targetUUID] = tt.kind
			l.reviewState[targetUUID] = tt.state

			e := entities.Event{Dataset: "ds1", Payload: entities.ReviewAcceptPayload{EventUUID: targetUUID}}
			err := Validate(context.Background(), l, e)

			if tt.wantSuccess {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if !tt.found {
				assert.True(t, coreerrors.IsKind(err, coreerrors.KindNotFound))
				return
			}
			assert.Equal(t, tt.wantErr, coreerrors.AsError(err).Reason)
		})
	}
}

// TestValidate_ReviewIdempotence_DeleteLikeRace exercises the
// concurrent-delete-proposal case of spec.md 4.4: accepting a second
// delete/deprecate proposal against an already-terminal target is
// refused even though the review event itself is still pending.
func TestValidate_ReviewIdempotence_DeleteLikeRace(t *testing.T) {
	reviewUUID := uuid.New()
	targetID := entities.VersionedID{UUID: uuid.New(), Version: 0}

	l := newStubLookups()
	l.reviewFound[reviewUUID] = true
	l.reviewKind[reviewUUID] = entities.KindObjectDelete
	l.reviewState[reviewUUID] = entities.ReviewPending
	l.targetFound[reviewUUID] = true
	l.targetKind[reviewUUID] = entities.KindObject
	l.targetID[reviewUUID] = targetID
	l.targetDeleteLike[reviewUUID] = true
	l.status[targetID] = entities.StatusDeleted

	e := entities.Event{Dataset: "ds1", Payload: entities.ReviewAcceptPayload{EventUUID: reviewUUID}}
	err := Validate(context.Background(), l, e)
	require.Error(t, err)
	assert.Equal(t, "already-terminal", coreerrors.AsError(err).Reason)
}

func TestValidate_SchemaCreate_NamePrefixRequired(t *testing.T) {
	l := newStubLookups()
	hashType, hash := validHash()
	e := entities.Event{Dataset: "ds1", Payload: entities.SchemaCreatePayload{
		Schema: entities.SchemaRef{UUID: uuid.New(), Version: 0, Name: "not-prefixed", HashType: hashType, Hash: hash},
		Action: entities.ActionCreate,
	}}
	err := Validate(context.Background(), l, e)
	require.Error(t, err)
	assert.Equal(t, "schema-name", coreerrors.AsError(err).Reason)
}

// TestValidate_SchemaCreate_NameTaken exercises P5: schema names must
// be unique among non-deprecated schemas.
func TestValidate_SchemaCreate_NameTaken(t *testing.T) {
	l := newStubLookups()
	l.schemaNameTaken["schema-widget"] = true
	hashType, hash := validHash()
	e := entities.Event{Dataset: "ds1", Payload: entities.SchemaCreatePayload{
		Schema: entities.SchemaRef{UUID: uuid.New(), Version: 0, Name: "schema-widget", HashType: hashType, Hash: hash},
		Action: entities.ActionCreate,
	}}
	err := Validate(context.Background(), l, e)
	require.Error(t, err)
	assert.Equal(t, "schema-name-taken", coreerrors.AsError(err).Reason)
}

// TestValidate_Update_DenseVersionRequired exercises P3: the update's
// proposed version must be exactly max+1, never a gap or a re-use.
func TestValidate_Update_DenseVersionRequired(t *testing.T) {
	objUUID := uuid.New()
	hashType, hash := validHash()

	tests := []struct {
		name    string
		version int
		wantErr string
	}{
		{"dense next version accepted", 1, ""},
		{"skipping a version is refused", 2, "version"},
		{"repeating the current version is refused", 0, "version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newStubLookups()
			l.exists[objUUID] = true
			l.maxVersion[objUUID] = 0
			l.status[entities.VersionedID{UUID: objUUID, Version: 0}] = entities.StatusAccepted

			e := entities.Event{Dataset: "ds1", Payload: entities.ObjectUpdatePayload{
				Object: entities.ObjectRef{UUID: objUUID, Version: tt.version, HashType: hashType, Hash: hash},
				Action: entities.ActionUpdate,
			}}
			err := Validate(context.Background(), l, e)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, coreerrors.AsError(err).Reason)
		})
	}
}

func TestValidate_Update_TerminalRefused(t *testing.T) {
	objUUID := uuid.New()
	hashType, hash := validHash()
	l := newStubLookups()
	l.exists[objUUID] = true
	l.maxVersion[objUUID] = 0
	l.status[entities.VersionedID{UUID: objUUID, Version: 0}] = entities.StatusDeleted

	e := entities.Event{Dataset: "ds1", Payload: entities.ObjectUpdatePayload{
		Object: entities.ObjectRef{UUID: objUUID, Version: 1, HashType: hashType, Hash: hash},
		Action: entities.ActionUpdate,
	}}
	err := Validate(context.Background(), l, e)
	require.Error(t, err)
	assert.Equal(t, "terminal", coreerrors.AsError(err).Reason)
}

// TestValidate_AnnotationCreate_ReferentialIntegrity exercises P6: an
// annotation can only reference schemas/objects that exist and are
// not rejected/deprecated/deleted.
func TestValidate_AnnotationCreate_ReferentialIntegrity(t *testing.T) {
	schemaRef := entities.VersionedID{UUID: uuid.New(), Version: 0}
	objRef := entities.VersionedID{UUID: uuid.New(), Version: 0}
	hashType, hash := validHash()

	tests := []struct {
		name        string
		schemaFound bool
		schemaStat  entities.Status
		objFound    bool
		objStat     entities.Status
		objRefs     []entities.VersionedID
		wantErr     string
	}{
		{"happy path", true, entities.StatusAccepted, true, entities.StatusAccepted, []entities.VersionedID{objRef}, ""},
		{"missing schema", false, "", true, entities.StatusAccepted, []entities.VersionedID{objRef}, ""},
		{"deprecated schema refused", true, entities.StatusDeprecated, true, entities.StatusAccepted, []entities.VersionedID{objRef}, "schema-ref"},
		{"no object refs refused", true, entities.StatusAccepted, true, entities.StatusAccepted, nil, "object-refs"},
		{"deleted object refused", true, entities.StatusAccepted, true, entities.StatusDeleted, []entities.VersionedID{objRef}, "object-ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newStubLookups()
			if tt.schemaFound {
				l.status[schemaRef] = tt.schemaStat
			}
			if tt.objFound {
				l.status[objRef] = tt.objStat
			}

			e := entities.Event{Dataset: "ds1", Payload: entities.AnnotationCreatePayload{
				Annotation:        entities.AnnotationRef{UUID: uuid.New(), Version: 0, Schema: schemaRef, HashType: hashType, Hash: hash},
				ObjectIdentifiers: tt.objRefs,
				Action:            entities.ActionCreate,
			}}
			err := Validate(context.Background(), l, e)

			if !tt.schemaFound {
				require.Error(t, err)
				assert.True(t, coreerrors.IsKind(err, coreerrors.KindNotFound))
				return
			}
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, coreerrors.AsError(err).Reason)
		})
	}
}

func TestValidate_Hash_RejectsBadHashType(t *testing.T) {
	l := newStubLookups()
	e := entities.Event{Dataset: "ds1", Payload: entities.ObjectCreatePayload{
		Object: entities.ObjectRef{UUID: uuid.New(), Version: 0, HashType: entities.HashType(7), Hash: entities.DigestOf([]byte("x"))},
		Action: entities.ActionCreate,
	}}
	err := Validate(context.Background(), l, e)
	require.Error(t, err)
	assert.Equal(t, "hash-type", coreerrors.AsError(err).Reason)
}

func TestValidate_Hash_RejectsMalformedDigest(t *testing.T) {
	l := newStubLookups()
	e := entities.Event{Dataset: "ds1", Payload: entities.ObjectCreatePayload{
		Object: entities.ObjectRef{UUID: uuid.New(), Version: 0, HashType: entities.HashTypeSHA256, Hash: entities.Digest("not-hex")},
		Action: entities.ActionCreate,
	}}
	err := Validate(context.Background(), l, e)
	require.Error(t, err)
	assert.Equal(t, "digest", coreerrors.AsError(err).Reason)
}
