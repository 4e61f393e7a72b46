package projector

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

func ownerAddEvent(dataset, owner string) entities.Event {
	return entities.Event{
		UUID: uuid.New(), Dataset: dataset, Type: entities.KindOwnerAdd,
		Author: owner, Timestamp: entities.Now(),
		Payload: entities.OwnerAddPayload{Owner: owner, OwnerAction: entities.OwnerActionAdd},
	}
}

func schemaCreateEvent(dataset, author, name string, schemaUUID uuid.UUID) entities.Event {
	return entities.Event{
		UUID: uuid.New(), Dataset: dataset, Type: entities.KindSchemaCreate,
		Author: author, Timestamp: entities.Now(),
		Payload: entities.SchemaCreatePayload{
			Schema: entities.SchemaRef{
				UUID: schemaUUID, Version: 0, Name: name, Format: entities.SchemaFormat,
				HashType: entities.HashTypeSHA256, Hash: entities.DigestOf([]byte(name)),
			},
			Action: entities.ActionCreate,
		},
	}
}

func schemaUpdateEvent(dataset, author, name string, schemaUUID uuid.UUID, version int) entities.Event {
	return entities.Event{
		UUID: uuid.New(), Dataset: dataset, Type: entities.KindSchemaUpdate,
		Author: author, Timestamp: entities.Now(),
		Payload: entities.SchemaUpdatePayload{
			Schema: entities.SchemaRef{
				UUID: schemaUUID, Version: version, Name: name, Format: entities.SchemaFormat,
				HashType: entities.HashTypeSHA256, Hash: entities.DigestOf([]byte(name)),
			},
			Action: entities.ActionUpdate,
		},
	}
}

func schemaDeprecateEvent(dataset, author string, id entities.VersionedID) entities.Event {
	return entities.Event{
		UUID: uuid.New(), Dataset: dataset, Type: entities.KindSchemaDeprecate,
		Author: author, Timestamp: entities.Now(),
		Payload: entities.SchemaDeprecatePayload{SchemaIdentifier: id},
	}
}

func reviewAcceptEvent(dataset, author string, target uuid.UUID) entities.Event {
	return entities.Event{
		UUID: uuid.New(), Dataset: dataset, Type: entities.KindReviewAccept,
		Author: author, Timestamp: entities.Now(),
		Payload: entities.ReviewAcceptPayload{EventUUID: target},
	}
}

// TestSchemaNameTaken_AnyNonDeprecatedVersion exercises P5: a schema
// name is free only once every version of the schema that claimed it
// is deprecated, not merely its latest version.
func TestSchemaNameTaken_AnyNonDeprecatedVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	schemaUUID := uuid.New()

	createEvt := schemaCreateEvent("ds1", "alice", "schema-widget", schemaUUID)
	require.NoError(t, s.Apply(ctx, createEvt))
	// v0 accepted.
	s.setStatus(entities.KindSchema, entities.VersionedID{UUID: schemaUUID, Version: 0}, entities.StatusAccepted)

	updateEvt := schemaUpdateEvent("ds1", "alice", "schema-widget", schemaUUID, 1)
	require.NoError(t, s.Apply(ctx, updateEvt))
	// v1 deprecated (e.g. rejected/deprecated via review), but v0 is
	// still accepted and not deprecated.
	s.setStatus(entities.KindSchema, entities.VersionedID{UUID: schemaUUID, Version: 1}, entities.StatusDeprecated)

	taken, err := s.SchemaNameTaken(ctx, "schema-widget")
	require.NoError(t, err)
	assert.True(t, taken, "name must still be reported taken: v0 is not deprecated")
}

func TestSchemaNameTaken_FreeOnceAllVersionsDeprecated(t *testing.T) {
	ctx := context.Background()
	s := New()
	schemaUUID := uuid.New()

	require.NoError(t, s.Apply(ctx, schemaCreateEvent("ds1", "alice", "schema-widget", schemaUUID)))
	s.setStatus(entities.KindSchema, entities.VersionedID{UUID: schemaUUID, Version: 0}, entities.StatusDeprecated)

	taken, err := s.SchemaNameTaken(ctx, "schema-widget")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestSchemaNameTaken_UnknownNameIsFree(t *testing.T) {
	s := New()
	taken, err := s.SchemaNameTaken(context.Background(), "schema-nonexistent")
	require.NoError(t, err)
	assert.False(t, taken)
}

// TestApply_DenseVersions exercises P3: applied object versions are
// dense and assigned in strictly increasing order as update events
// are replayed.
func TestApply_DenseVersions(t *testing.T) {
	ctx := context.Background()
	s := New()
	objUUID := uuid.New()

	create := entities.Event{
		UUID: uuid.New(), Dataset: "ds1", Type: entities.KindObjectCreate, Author: "alice", Timestamp: entities.Now(),
		Payload: entities.ObjectCreatePayload{
			Object: entities.ObjectRef{UUID: objUUID, Version: 0, Name: "a", HashType: entities.HashTypeSHA256, Hash: entities.DigestOf([]byte("a"))},
			Action: entities.ActionCreate,
		},
	}
	require.NoError(t, s.Apply(ctx, create))

	for v := 1; v <= 3; v++ {
		update := entities.Event{
			UUID: uuid.New(), Dataset: "ds1", Type: entities.KindObjectUpdate, Author: "alice", Timestamp: entities.Now(),
			Payload: entities.ObjectUpdatePayload{
				Object: entities.ObjectRef{UUID: objUUID, Version: v, Name: "a", HashType: entities.HashTypeSHA256, Hash: entities.DigestOf([]byte("a"))},
				Action: entities.ActionUpdate,
			},
		}
		require.NoError(t, s.Apply(ctx, update))
	}

	max, exists, err := s.MaxVersion(ctx, entities.KindObject, objUUID)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, 3, max)

	for v := 0; v <= 3; v++ {
		ov, err := s.Object(ctx, entities.VersionedID{UUID: objUUID, Version: v})
		require.NoError(t, err)
		assert.Equal(t, v, ov.Version)
	}
}

func TestOwners_ReflectsAddAndRemove(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Apply(ctx, ownerAddEvent("ds1", "alice")))
	require.NoError(t, s.Apply(ctx, ownerAddEvent("ds1", "bob")))

	owners, err := s.Owners(ctx, "ds1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, owners)

	remove := entities.Event{
		UUID: uuid.New(), Dataset: "ds1", Type: entities.KindOwnerRemove, Author: "alice", Timestamp: entities.Now(),
		Payload: entities.OwnerRemovePayload{Owner: "bob", OwnerAction: entities.OwnerActionRemove},
	}
	require.NoError(t, s.Apply(ctx, remove))

	owners, err = s.Owners(ctx, "ds1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, owners)
}

// TestApply_SchemaDeprecateReview exercises the projector's deprecate
// pathway end to end: a SchemaDeprecate event stays reviewable until
// accepted, at which point the schema's status flips to deprecated.
func TestApply_SchemaDeprecateReview(t *testing.T) {
	ctx := context.Background()
	s := New()
	schemaUUID := uuid.New()
	id := entities.VersionedID{UUID: schemaUUID, Version: 0}

	require.NoError(t, s.Apply(ctx, schemaCreateEvent("ds1", "alice", "schema-widget", schemaUUID)))
	s.setStatus(entities.KindSchema, id, entities.StatusAccepted)

	deprecate := schemaDeprecateEvent("ds1", "alice", id)
	require.NoError(t, s.Apply(ctx, deprecate))

	status, found, err := s.Status(ctx, entities.KindSchema, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entities.StatusAccepted, status, "deprecate is reviewable; it must not take effect until accepted")

	accept := reviewAcceptEvent("ds1", "alice", deprecate.UUID)
	require.NoError(t, s.Apply(ctx, accept))

	status, found, err = s.Status(ctx, entities.KindSchema, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entities.StatusDeprecated, status)
}
