// Package filesystem implements the filesystem persistence profile of
// spec.md 6.3: an append-only log file for RecordKeeper, a
// content-addressed directory tree for Depot, and a Backend that opens
// both plus a replayed projector.State per dataset.
package filesystem

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/computeheavy/gonk/internal/domain/entities"
	"github.com/computeheavy/gonk/internal/domain/integrity"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// Signer is the key material a RecordKeeper in signature mode needs:
// a private key to sign newly appended events and the KeyRing
// integrity.VerifySignature uses to check recorded ones.
type Signer interface {
	integrity.KeyRing
	PrivateKey(author string) (ed25519.PrivateKey, bool)
}

// RecordKeeper is the append-only log file of spec.md 6.3:
// length-prefixed JSON events, with an in-memory index from event
// UUID to its position for O(1) lookups (the "parallel index" the
// layout calls for, kept in memory rather than as a second file since
// it is rebuilt for free on every Open).
type RecordKeeper struct {
	mu   sync.Mutex
	file *os.File
	mode integrity.Mode
	keys Signer

	events   []entities.Event
	index    map[uuid.UUID]int
	previous string // last chain token, chain mode only
}

// OpenRecordKeeper opens (creating if absent) the log file at path and
// replays it into memory. keys is nil in chain mode.
func OpenRecordKeeper(path string, mode integrity.Mode, keys Signer) (*RecordKeeper, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filesystem: open record log %s: %w", path, err)
	}

	rk := &RecordKeeper{
		file:     f,
		mode:     mode,
		keys:     keys,
		index:    make(map[uuid.UUID]int),
		previous: integrity.EmptyChainToken,
	}
	if err := rk.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return rk, nil
}

// replay reads every length-prefixed record from the start of the log
// into the in-memory cache. Called once, at Open.
func (rk *RecordKeeper) replay() error {
	if _, err := rk.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("filesystem: seek record log: %w", err)
	}
	r := bufio.NewReader(rk.file)
	for {
		var length uint64
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("filesystem: read record length: %w", err)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("filesystem: read record body: %w", err)
		}
		var e entities.Event
		if err := json.Unmarshal(buf, &e); err != nil {
			return fmt.Errorf("filesystem: decode record: %w", err)
		}
		rk.index[e.UUID] = len(rk.events)
		rk.events = append(rk.events, e)
		if rk.mode == integrity.ModeChain {
			rk.previous = e.Integrity
		}
	}
	if _, err := rk.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("filesystem: seek record log to end: %w", err)
	}
	return nil
}

// Append implements repositories.RecordKeeper.
func (rk *RecordKeeper) Append(ctx context.Context, e entities.Event) (string, error) {
	rk.mu.Lock()
	defer rk.mu.Unlock()

	token, err := rk.computeToken(e)
	if err != nil {
		return "", coreerrors.NewIntegrityError("token")
	}
	e.Integrity = token

	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("filesystem: marshal event: %w", err)
	}
	var lenPrefix [8]byte
	binary.BigEndian.PutUint64(lenPrefix[:], uint64(len(raw)))
	if _, err := rk.file.Write(lenPrefix[:]); err != nil {
		return "", coreerrors.NewIOError("append-length", err)
	}
	if _, err := rk.file.Write(raw); err != nil {
		return "", coreerrors.NewIOError("append-body", err)
	}
	if err := rk.file.Sync(); err != nil {
		return "", coreerrors.NewIOError("append-sync", err)
	}

	rk.index[e.UUID] = len(rk.events)
	rk.events = append(rk.events, e)
	if rk.mode == integrity.ModeChain {
		rk.previous = token
	}
	return token, nil
}

func (rk *RecordKeeper) computeToken(e entities.Event) (string, error) {
	switch rk.mode {
	case integrity.ModeSignature:
		priv, ok := rk.keys.PrivateKey(e.Author)
		if !ok {
			return "", fmt.Errorf("filesystem: no signing key for author %q", e.Author)
		}
		return integrity.SignToken(e, priv)
	default:
		return integrity.ChainToken(e, rk.previous)
	}
}

// At implements repositories.RecordKeeper.
func (rk *RecordKeeper) At(ctx context.Context, seq int64) (entities.Event, error) {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	if seq < 0 || seq >= int64(len(rk.events)) {
		return entities.Event{}, coreerrors.NewNotFoundError("event", fmt.Sprintf("seq %d", seq))
	}
	return rk.events[seq], nil
}

// Next implements repositories.RecordKeeper.
func (rk *RecordKeeper) Next(ctx context.Context, after *uuid.UUID, limit int) ([]entities.Event, error) {
	rk.mu.Lock()
	defer rk.mu.Unlock()

	start := 0
	if after != nil {
		pos, ok := rk.index[*after]
		if !ok {
			return nil, coreerrors.NewValidationError("after", "unknown cursor uuid")
		}
		start = pos + 1
	}
	if start > len(rk.events) {
		start = len(rk.events)
	}
	end := start + limit
	if limit <= 0 || end > len(rk.events) {
		end = len(rk.events)
	}
	out := make([]entities.Event, end-start)
	copy(out, rk.events[start:end])
	return out, nil
}

// Len implements repositories.RecordKeeper.
func (rk *RecordKeeper) Len(ctx context.Context) (int64, error) {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	return int64(len(rk.events)), nil
}

// Verify implements repositories.RecordKeeper by recomputing the
// configured integrity scheme over the whole in-memory log.
func (rk *RecordKeeper) Verify(ctx context.Context) (bool, int64, error) {
	rk.mu.Lock()
	events := make([]entities.Event, len(rk.events))
	copy(events, rk.events)
	mode, keys := rk.mode, rk.keys
	rk.mu.Unlock()

	if mode == integrity.ModeSignature {
		for i, e := range events {
			if err := integrity.VerifySignature(e, keys); err != nil {
				return false, int64(i), nil
			}
		}
		return true, -1, nil
	}

	bad, err := integrity.VerifyChain(events)
	if err != nil {
		return false, int64(bad), err
	}
	if bad < 0 {
		return true, -1, nil
	}
	return false, int64(bad), nil
}

// Events returns a copy of the full in-memory log, for Backend.Open to
// replay into a fresh projector.State.
func (rk *RecordKeeper) Events() []entities.Event {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	out := make([]entities.Event, len(rk.events))
	copy(out, rk.events)
	return out
}

// Close releases the underlying file handle.
func (rk *RecordKeeper) Close() error {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	return rk.file.Close()
}
