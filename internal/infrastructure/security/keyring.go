// Package security loads the Ed25519 key material signature-mode
// installations sign and verify events with (spec.md 4.5). It is the
// concrete github.com/computeheavy/gonk/internal/domain/integrity.KeyRing
// implementation wired at startup from Config.KeyringPath.
package security

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// keyPair is the on-disk shape of one author's key material.
type keyPair struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// keyFile is the on-disk shape of the keyring file: an "authors"
// object mapping author identifier to hex-encoded Ed25519 key material.
type keyFile struct {
	Authors map[string]keyPair `json:"authors"`
}

// Keyring resolves author identifiers to their Ed25519 key pairs. It
// satisfies integrity.KeyRing via PublicKey and additionally exposes
// PrivateKey for RecordKeeper.Append to sign newly appended events.
type Keyring struct {
	public  map[string]ed25519.PublicKey
	private map[string]ed25519.PrivateKey
}

// Load reads and parses the keyring file at path. Every entry must
// carry a public key; a private key is optional (read-only
// federation peers only ever verify).
func Load(path string) (*Keyring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("security: read keyring %s: %w", path, err)
	}
	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("security: parse keyring %s: %w", path, err)
	}

	kr := &Keyring{
		public:  make(map[string]ed25519.PublicKey, len(kf.Authors)),
		private: make(map[string]ed25519.PrivateKey, len(kf.Authors)),
	}
	for author, kp := range kf.Authors {
		if kp.PublicKey == "" {
			return nil, fmt.Errorf("security: author %q has no public key", author)
		}
		pub, err := hex.DecodeString(kp.PublicKey)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("security: author %q has a malformed public key", author)
		}
		kr.public[author] = ed25519.PublicKey(pub)

		if kp.PrivateKey == "" {
			continue
		}
		priv, err := hex.DecodeString(kp.PrivateKey)
		if err != nil || len(priv) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("security: author %q has a malformed private key", author)
		}
		kr.private[author] = ed25519.PrivateKey(priv)
	}
	return kr, nil
}

// PublicKey implements integrity.KeyRing.
func (k *Keyring) PublicKey(author string) (ed25519.PublicKey, bool) {
	pub, ok := k.public[author]
	return pub, ok
}

// PrivateKey resolves the signing key an appending RecordKeeper uses
// to produce an event's integrity token in signature mode.
func (k *Keyring) PrivateKey(author string) (ed25519.PrivateKey, bool) {
	priv, ok := k.private[author]
	return priv, ok
}
