package filesystem

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computeheavy/gonk/internal/domain/entities"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

func newTestDepot(t *testing.T) *Depot {
	t.Helper()
	d, err := NewDepot(t.TempDir())
	require.NoError(t, err)
	return d
}

// TestDepot_Write_RejectsDigestMismatch exercises P1: the depot never
// accepts bytes under a digest they don't actually hash to.
func TestDepot_Write_RejectsDigestMismatch(t *testing.T) {
	ctx := context.Background()
	d := newTestDepot(t)
	id := entities.VersionedID{UUID: uuid.New(), Version: 0}

	err := d.Write(ctx, id, []byte("actual bytes"), entities.DigestOf([]byte("a lie")))
	require.Error(t, err)
	assert.True(t, coreerrors.IsKind(err, coreerrors.KindIntegrity))

	exists, err := d.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists, "a rejected write must leave no ref behind")
}

func TestDepot_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := newTestDepot(t)
	id := entities.VersionedID{UUID: uuid.New(), Version: 0}
	data := []byte("hello dataset")

	require.NoError(t, d.Write(ctx, id, data, entities.DigestOf(data)))

	got, err := d.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	exists, err := d.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDepot_Read_MissingRef(t *testing.T) {
	d := newTestDepot(t)
	_, err := d.Read(context.Background(), entities.VersionedID{UUID: uuid.New(), Version: 0})
	require.Error(t, err)
	assert.True(t, coreerrors.IsKind(err, coreerrors.KindNotFound))
}

// TestDepot_DedupesIdenticalBytes exercises the content-addressed
// dedup spec.md 6.3 describes: two distinct versioned identifiers
// writing the same bytes share one blob.
func TestDepot_DedupesIdenticalBytes(t *testing.T) {
	ctx := context.Background()
	d := newTestDepot(t)
	data := []byte("shared bytes")
	digest := entities.DigestOf(data)

	id1 := entities.VersionedID{UUID: uuid.New(), Version: 0}
	id2 := entities.VersionedID{UUID: uuid.New(), Version: 0}
	require.NoError(t, d.Write(ctx, id1, data, digest))
	require.NoError(t, d.Write(ctx, id2, data, digest))

	got1, err := d.Read(ctx, id1)
	require.NoError(t, err)
	got2, err := d.Read(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, got1, got2)
}
