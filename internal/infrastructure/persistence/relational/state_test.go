package relational

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.ExecContext(context.Background(), ddl)
	require.NoError(t, err)
	return NewState(db)
}

func schemaCreateEvent(author, name string, schemaUUID uuid.UUID) entities.Event {
	return entities.Event{
		UUID: uuid.New(), Dataset: "ds1", Type: entities.KindSchemaCreate,
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

func schemaUpdateEvent(author, name string, schemaUUID uuid.UUID, version int) entities.Event {
	return entities.Event{
		UUID: uuid.New(), Dataset: "ds1", Type: entities.KindSchemaUpdate,
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

// TestSchemaNameTaken_AnyNonDeprecatedVersion exercises P5 against the
// SQL-backed profile directly: a schema name stays taken as long as
// any one of its versions is not deprecated, not merely its latest.
func TestSchemaNameTaken_AnyNonDeprecatedVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestState(t)
	schemaUUID := uuid.New()

	require.NoError(t, s.Apply(ctx, schemaCreateEvent("alice", "schema-widget", schemaUUID)))
	require.NoError(t, setStatusDirect(ctx, s, entities.VersionedID{UUID: schemaUUID, Version: 0}, entities.StatusAccepted))

	require.NoError(t, s.Apply(ctx, schemaUpdateEvent("alice", "schema-widget", schemaUUID, 1)))
	require.NoError(t, setStatusDirect(ctx, s, entities.VersionedID{UUID: schemaUUID, Version: 1}, entities.StatusDeprecated))

	taken, err := s.SchemaNameTaken(ctx, "schema-widget")
	require.NoError(t, err)
	assert.True(t, taken, "name must still be reported taken: v0 is not deprecated")
}

func TestSchemaNameTaken_FreeOnceAllVersionsDeprecated(t *testing.T) {
	ctx := context.Background()
	s := newTestState(t)
	schemaUUID := uuid.New()

	require.NoError(t, s.Apply(ctx, schemaCreateEvent("alice", "schema-widget", schemaUUID)))
	require.NoError(t, setStatusDirect(ctx, s, entities.VersionedID{UUID: schemaUUID, Version: 0}, entities.StatusDeprecated))

	taken, err := s.SchemaNameTaken(ctx, "schema-widget")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestSchemaNameTaken_UnknownNameIsFree(t *testing.T) {
	s := newTestState(t)
	taken, err := s.SchemaNameTaken(context.Background(), "schema-nonexistent")
	require.NoError(t, err)
	assert.False(t, taken)
}

func setStatusDirect(ctx context.Context, s *State, id entities.VersionedID, status entities.Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entity_versions SET status = ? WHERE kind = 'schema' AND uuid = ? AND version = ?`,
		string(status), id.UUID.String(), id.Version)
	return err
}

func TestMaxVersion_Owners_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestState(t)

	add := entities.Event{
		UUID: uuid.New(), Dataset: "ds1", Type: entities.KindOwnerAdd, Author: "alice", Timestamp: entities.Now(),
		Payload: entities.OwnerAddPayload{Owner: "alice", OwnerAction: entities.OwnerActionAdd},
	}
	require.NoError(t, s.Apply(ctx, add))

	owners, err := s.Owners(ctx, "ds1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, owners)

	objUUID := uuid.New()
	create := entities.Event{
		UUID: uuid.New(), Dataset: "ds1", Type: entities.KindObjectCreate, Author: "alice", Timestamp: entities.Now(),
		Payload: entities.ObjectCreatePayload{
			Object: entities.ObjectRef{UUID: objUUID, Version: 0, Name: "a", HashType: entities.HashTypeSHA256, Hash: entities.DigestOf([]byte("a"))},
			Action: entities.ActionCreate,
		},
	}
	require.NoError(t, s.Apply(ctx, create))

	max, exists, err := s.MaxVersion(ctx, entities.KindObject, objUUID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 0, max)
}
