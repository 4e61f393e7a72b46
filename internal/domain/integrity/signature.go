package integrity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

// KeyRing resolves an author's public key for signature verification.
// Installations configured for signature mode supply one keyed by the
// author identifiers they accept as event authors.
type KeyRing interface {
	PublicKey(author string) (ed25519.PublicKey, bool)
}

// SignToken signs the event's canonical bytes with the author's
// private key and renders the signature as lowercase hex.
func SignToken(e entities.Event, priv ed25519.PrivateKey) (string, error) {
	canon, err := CanonicalBytes(e)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(priv, canon)
	return hex.EncodeToString(sig), nil
}

// VerifySignature checks the event's Integrity field against the
// author's public key, looked up via keys.
func VerifySignature(e entities.Event, keys KeyRing) error {
	pub, ok := keys.PublicKey(e.Author)
	if !ok {
		return fmt.Errorf("integrity: no public key for author %q", e.Author)
	}
	sig, err := hex.DecodeString(e.Integrity)
	if err != nil {
		return fmt.Errorf("integrity: malformed signature on event %s: %w", e.UUID, err)
	}
	canon, err := CanonicalBytes(e)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, canon, sig) {
		return fmt.Errorf("integrity: signature mismatch on event %s", e.UUID)
	}
	return nil
}
