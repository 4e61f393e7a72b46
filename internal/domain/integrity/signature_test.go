package integrity

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

type memKeyRing struct {
	pub map[string]ed25519.PublicKey
}

func (m memKeyRing) PublicKey(author string) (ed25519.PublicKey, bool) {
	pub, ok := m.pub[author]
	return pub, ok
}

func TestSignToken_VerifySignature_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	e := sampleEvent("alice")
	token, err := SignToken(e, priv)
	require.NoError(t, err)
	e.Integrity = token

	keys := memKeyRing{pub: map[string]ed25519.PublicKey{"alice": pub}}
	assert.NoError(t, VerifySignature(e, keys))
}

func TestVerifySignature_UnknownAuthor(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	e := sampleEvent("alice")
	token, err := SignToken(e, priv)
	require.NoError(t, err)
	e.Integrity = token

	keys := memKeyRing{pub: map[string]ed25519.PublicKey{}}
	assert.Error(t, VerifySignature(e, keys))
}

func TestVerifySignature_TamperedPayloadFails(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	e := sampleEvent("alice")
	token, err := SignToken(e, priv)
	require.NoError(t, err)
	e.Integrity = token
	e.Payload = entities.OwnerAddPayload{Owner: "mallory", OwnerAction: entities.OwnerActionAdd}

	keys := memKeyRing{pub: map[string]ed25519.PublicKey{"alice": pub, "mallory": pub}}
	assert.Error(t, VerifySignature(e, keys))
}

func TestVerifySignature_MalformedHex(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	e := sampleEvent("alice")
	e.Integrity = "not-hex"

	keys := memKeyRing{pub: map[string]ed25519.PublicKey{"alice": pub}}
	assert.Error(t, VerifySignature(e, keys))
}
