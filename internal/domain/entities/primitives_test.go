package entities

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDigestOf_Deterministic(t *testing.T) {
	data := []byte("annotation bytes")
	d1 := DigestOf(data)
	d2 := DigestOf(data)
	assert.Equal(t, d1, d2)
	assert.Len(t, string(d1), 64)
}

func TestDigestOf_DiffersOnDifferentInput(t *testing.T) {
	assert.NotEqual(t, DigestOf([]byte("a")), DigestOf([]byte("b")))
}

func TestHashType_Valid(t *testing.T) {
	assert.True(t, HashTypeSHA256.Valid())
	assert.False(t, HashType(99).Valid())
}

func TestVersionedID_String(t *testing.T) {
	id := uuid.New()
	v := VersionedID{UUID: id, Version: 3}
	assert.Equal(t, id.String()+"@3", v.String())
}
