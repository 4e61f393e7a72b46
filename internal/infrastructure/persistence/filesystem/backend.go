package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/computeheavy/gonk/internal/domain/integrity"
	"github.com/computeheavy/gonk/internal/domain/repositories"
	"github.com/computeheavy/gonk/internal/infrastructure/persistence/projector"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

const logFileName = "log.bin"

// Backend is the filesystem persistence profile of spec.md 6.3: one
// subdirectory per dataset under root, each holding its log file and
// depot tree. State is never persisted; Open rebuilds it by replaying
// the record keeper (spec.md 4.6).
type Backend struct {
	root string
	mode integrity.Mode
	keys Signer

	mu     sync.Mutex
	opened map[string]*handle
}

type handle struct {
	rk    *RecordKeeper
	depot *Depot
	state *projector.State
}

// NewBackend returns a Backend rooted at root. keys may be nil when
// mode is integrity.ModeChain.
func NewBackend(root string, mode integrity.Mode, keys Signer) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filesystem: create storage root %s: %w", root, err)
	}
	return &Backend{root: root, mode: mode, keys: keys, opened: make(map[string]*handle)}, nil
}

func (b *Backend) datasetDir(name string) string {
	return filepath.Join(b.root, name)
}

// CreateDataset implements repositories.Backend.
func (b *Backend) CreateDataset(ctx context.Context, name string) error {
	dir := b.datasetDir(name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return coreerrors.NewConflictError(fmt.Sprintf("dataset %q already exists", name))
		}
		return coreerrors.NewIOError("create-dataset", err)
	}
	if _, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_RDWR|os.O_CREATE, 0o644); err != nil {
		return coreerrors.NewIOError("create-dataset-log", err)
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

// Open implements repositories.Backend: it opens (or returns a cached)
// RecordKeeper and Depot, and rebuilds a fresh projector.State by
// replaying the log into it (spec.md 4.6 — State is a pure
// projection and can always be rebuilt this way).
func (b *Backend) Open(ctx context.Context, name string) (repositories.RecordKeeper, repositories.Depot, repositories.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.opened[name]; ok {
		return h.rk, h.depot, h.state, nil
	}

	dir := b.datasetDir(name)
	rk, err := OpenRecordKeeper(filepath.Join(dir, logFileName), b.mode, b.keys)
	if err != nil {
		return nil, nil, nil, err
	}
	depot, err := NewDepot(filepath.Join(dir, "depot"))
	if err != nil {
		rk.Close()
		return nil, nil, nil, err
	}

	state := projector.New()
	for _, e := range rk.Events() {
		if err := state.Apply(ctx, e); err != nil {
			rk.Close()
			return nil, nil, nil, fmt.Errorf("filesystem: replay dataset %q: %w", name, err)
		}
	}

	h := &handle{rk: rk, depot: depot, state: state}
	b.opened[name] = h
	return h.rk, h.depot, h.state, nil
}

// Close releases every opened dataset's log file handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for _, h := range b.opened {
		if err := h.rk.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
