package relational

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/computeheavy/gonk/internal/domain/integrity"
	"github.com/computeheavy/gonk/internal/domain/repositories"
	"github.com/computeheavy/gonk/internal/infrastructure/persistence/filesystem"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

const dbFileName = "data.db"

// Backend is the embedded-relational persistence profile of
// spec.md 6.3. Each dataset gets its own sqlite file for RecordKeeper
// and State; Depot is the same filesystem tree the filesystem profile
// uses, since spec.md 6.3 names only a Filesystem Depot.
type Backend struct {
	root string
	mode integrity.Mode
	keys Signer

	mu     sync.Mutex
	opened map[string]*handle
}

type handle struct {
	db    *sqlx.DB
	rk    *RecordKeeper
	depot *filesystem.Depot
	state *State
}

// NewBackend returns a Backend rooted at root.
func NewBackend(root string, mode integrity.Mode, keys Signer) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("relational: create storage root %s: %w", root, err)
	}
	return &Backend{root: root, mode: mode, keys: keys, opened: make(map[string]*handle)}, nil
}

func (b *Backend) datasetDir(name string) string {
	return filepath.Join(b.root, name)
}

// CreateDataset implements repositories.Backend: it creates the
// dataset directory and bootstraps its sqlite schema directly, with
// no migration step (SPEC_FULL.md's DOMAIN STACK note on why
// golang-migrate has no home here).
func (b *Backend) CreateDataset(ctx context.Context, name string) error {
	dir := b.datasetDir(name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return coreerrors.NewConflictError(fmt.Sprintf("dataset %q already exists", name))
		}
		return coreerrors.NewIOError("create-dataset", err)
	}
	db, err := sqlx.Open("sqlite", filepath.Join(dir, dbFileName))
	if err != nil {
		return coreerrors.NewIOError("create-dataset-db", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return coreerrors.NewIOError("create-dataset-schema", err)
	}
	return nil
}

// DatasetExists implements repositories.Backend.
func (b *Backend) DatasetExists(ctx context.Context, name string) (bool, error) {
	info, err := os.Stat(b.datasetDir(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, coreerrors.NewIOError("stat-dataset", err)
	}
	return info.IsDir(), nil
}

// ListDatasets implements repositories.Backend.
func (b *Backend) ListDatasets(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, coreerrors.NewIOError("list-datasets", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Open implements repositories.Backend.
func (b *Backend) Open(ctx context.Context, name string) (repositories.RecordKeeper, repositories.Depot, repositories.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.opened[name]; ok {
		return h.rk, h.depot, h.state, nil
	}

	dir := b.datasetDir(name)
	db, err := sqlx.Open("sqlite", filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, nil, nil, coreerrors.NewIOError("open-dataset-db", err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, nil, nil, coreerrors.NewIOError("open-dataset-schema", err)
	}

	rk, err := NewRecordKeeper(db, name, b.mode, b.keys)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	depot, err := filesystem.NewDepot(filepath.Join(dir, "depot"))
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	state := NewState(db)

	h := &handle{db: db, rk: rk, depot: depot, state: state}
	b.opened[name] = h
	return h.rk, h.depot, h.state, nil
}

// Close closes every opened dataset's sqlite handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for _, h := range b.opened {
		if err := h.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
