// Package relational implements the embedded-relational persistence
// profile of spec.md 6.3 over modernc.org/sqlite (pure Go, no cgo)
// via jmoiron/sqlx, the way the teacher's internal/infrastructure/
// repositories package drives its own sqlx.DB. Unlike the filesystem
// profile, State here is durable SQL, not a replayed projection; only
// Depot is shared (the filesystem tree — spec.md 6.3 names only a
// Filesystem Depot).
package relational

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/computeheavy/gonk/internal/domain/entities"
	"github.com/computeheavy/gonk/internal/domain/integrity"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// Signer mirrors filesystem.Signer: the key material a RecordKeeper in
// signature mode needs to sign newly appended events and verify
// recorded ones.
type Signer interface {
	integrity.KeyRing
	PrivateKey(author string) (ed25519.PrivateKey, bool)
}

// RecordKeeper is the `events` table of spec.md 6.3.
type RecordKeeper struct {
	mu      sync.Mutex
	db      *sqlx.DB
	dataset string
	mode    integrity.Mode
	keys    Signer

	index    map[uuid.UUID]int64 // uuid -> seq
	previous string              // last chain token
}

type eventRow struct {
	Seq       int64  `db:"seq"`
	UUID      string `db:"uuid"`
	Type      string `db:"type"`
	Author    string `db:"author"`
	Timestamp string `db:"timestamp"`
	Payload   []byte `db:"payload"`
	Integrity []byte `db:"integrity"`
}

func (r eventRow) decode(dataset string) (entities.Event, error) {
	wire := struct {
		UUID      string          `json:"uuid"`
		Dataset   string          `json:"dataset"`
		Type      string          `json:"type"`
		Author    string          `json:"author"`
		Timestamp json.RawMessage `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
		Integrity string          `json:"integrity"`
	}{
		UUID:      r.UUID,
		Dataset:   dataset,
		Type:      r.Type,
		Author:    r.Author,
		Timestamp: json.RawMessage(`"` + r.Timestamp + `"`),
		Payload:   json.RawMessage(r.Payload),
		Integrity: string(r.Integrity),
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return entities.Event{}, fmt.Errorf("relational: re-marshal event row: %w", err)
	}
	var e entities.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return entities.Event{}, fmt.Errorf("relational: decode event row: %w", err)
	}
	return e, nil
}

// NewRecordKeeper loads the in-memory uuid->seq index and chain
// cursor from an already-migrated db.
func NewRecordKeeper(db *sqlx.DB, dataset string, mode integrity.Mode, keys Signer) (*RecordKeeper, error) {
	rk := &RecordKeeper{
		db: db, dataset: dataset, mode: mode, keys: keys,
		index:    make(map[uuid.UUID]int64),
		previous: integrity.EmptyChainToken,
	}

	var rows []eventRow
	if err := db.Select(&rows, `SELECT seq, uuid, type, author, timestamp, payload, integrity FROM events ORDER BY seq ASC`); err != nil {
		return nil, fmt.Errorf("relational: load event index: %w", err)
	}
	for _, r := range rows {
		id, err := uuid.Parse(r.UUID)
		if err != nil {
			return nil, fmt.Errorf("relational: malformed event uuid %q: %w", r.UUID, err)
		}
		rk.index[id] = r.Seq
		if mode == integrity.ModeChain {
			rk.previous = string(r.Integrity)
		}
	}
	return rk, nil
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

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return "", fmt.Errorf("relational: marshal payload: %w", err)
	}
	tsJSON, err := json.Marshal(e.Timestamp)
	if err != nil {
		return "", fmt.Errorf("relational: marshal timestamp: %w", err)
	}
	ts := strings.Trim(string(tsJSON), `"`)

	res, err := rk.db.ExecContext(ctx,
		`INSERT INTO events (uuid, type, author, timestamp, payload, integrity) VALUES (?, ?, ?, ?, ?, ?)`,
		e.UUID.String(), string(e.Type), e.Author, ts, payload, []byte(token))
	if err != nil {
		return "", coreerrors.NewIOError("append", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", coreerrors.NewIOError("append-seq", err)
	}

	rk.index[e.UUID] = seq
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
			return "", fmt.Errorf("relational: no signing key for author %q", e.Author)
		}
		return integrity.SignToken(e, priv)
	default:
		return integrity.ChainToken(e, rk.previous)
	}
}

// At implements repositories.RecordKeeper.
func (rk *RecordKeeper) At(ctx context.Context, seq int64) (entities.Event, error) {
	var r eventRow
	if err := rk.db.GetContext(ctx, &r,
		`SELECT seq, uuid, type, author, timestamp, payload, integrity FROM events WHERE seq = ?`, seq+1); err != nil {
		return entities.Event{}, coreerrors.NewNotFoundError("event", fmt.Sprintf("seq %d", seq))
	}
	return r.decode(rk.dataset)
}

// Next implements repositories.RecordKeeper.
func (rk *RecordKeeper) Next(ctx context.Context, after *uuid.UUID, limit int) ([]entities.Event, error) {
	var afterSeq int64
	if after != nil {
		rk.mu.Lock()
		seq, ok := rk.index[*after]
		rk.mu.Unlock()
		if !ok {
			return nil, coreerrors.NewValidationError("after", "unknown cursor uuid")
		}
		afterSeq = seq
	}

	query := `SELECT seq, uuid, type, author, timestamp, payload, integrity FROM events WHERE seq > ? ORDER BY seq ASC`
	args := []interface{}{afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []eventRow
	if err := rk.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, coreerrors.NewIOError("next", err)
	}
	out := make([]entities.Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.decode(rk.dataset)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Len implements repositories.RecordKeeper.
func (rk *RecordKeeper) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := rk.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM events`); err != nil {
		return 0, coreerrors.NewIOError("len", err)
	}
	return n, nil
}

// Verify implements repositories.RecordKeeper.
func (rk *RecordKeeper) Verify(ctx context.Context) (bool, int64, error) {
	var rows []eventRow
	if err := rk.db.SelectContext(ctx, &rows,
		`SELECT seq, uuid, type, author, timestamp, payload, integrity FROM events ORDER BY seq ASC`); err != nil {
		return false, 0, coreerrors.NewIOError("verify", err)
	}
	events := make([]entities.Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.decode(rk.dataset)
		if err != nil {
			return false, 0, err
		}
		events = append(events, e)
	}

	if rk.mode == integrity.ModeSignature {
		for i, e := range events {
			if err := integrity.VerifySignature(e, rk.keys); err != nil {
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
