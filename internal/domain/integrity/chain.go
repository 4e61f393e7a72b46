package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

// Mode selects how per-event integrity tokens are produced
// (spec.md 4.5).
type Mode string

const (
	ModeChain     Mode = "chain"
	ModeSignature Mode = "signature"
)

// EmptyChainToken is token_-1: the chain seed for the first event.
const EmptyChainToken = ""

// ChainToken computes token_n = SHA-256(canonical(event_n) ||
// token_{n-1}) for hash-chain mode.
func ChainToken(e entities.Event, previous string) (string, error) {
	canon, err := CanonicalBytes(e)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(canon)
	h.Write([]byte(previous))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChain recomputes the hash chain over a sequence of events in
// append order and returns the zero-based index of the first event
// whose recorded token diverges from the recomputed one, or -1 if the
// whole chain verifies (spec.md I3, P2).
func VerifyChain(events []entities.Event) (int, error) {
	previous := EmptyChainToken
	for i, e := range events {
		want, err := ChainToken(e, previous)
		if err != nil {
			return i, fmt.Errorf("integrity: recompute token for event %s: %w", e.UUID, err)
		}
		if e.Integrity != want {
			return i, nil
		}
		previous = e.Integrity
	}
	return -1, nil
}
