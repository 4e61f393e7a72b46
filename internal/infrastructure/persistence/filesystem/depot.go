package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/computeheavy/gonk/internal/domain/entities"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// Depot is the content-addressed blob store of spec.md 6.3. Bytes are
// written once per digest under blobs/<first two hex chars>/<digest>;
// a versioned identifier
// only ever holds a small ref file pointing at its digest, which is
// where the dedup the spec calls for comes from — two versions with
// identical bytes share one blob on disk.
type Depot struct {
	root string // <storage_root>/<dataset>/depot
}

// NewDepot returns a Depot rooted at root, creating it if absent.
func NewDepot(root string) (*Depot, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs"), 0o755); err != nil {
		return nil, fmt.Errorf("filesystem: create depot blobs dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "refs"), 0o755); err != nil {
		return nil, fmt.Errorf("filesystem: create depot refs dir: %w", err)
	}
	return &Depot{root: root}, nil
}

func (d *Depot) blobPath(digest entities.Digest) string {
	s := string(digest)
	if len(s) < 2 {
		return filepath.Join(d.root, "blobs", s)
	}
	return filepath.Join(d.root, "blobs", s[:2], s)
}

func (d *Depot) refPath(id entities.VersionedID) string {
	return filepath.Join(d.root, "refs", id.UUID.String(), strconv.Itoa(id.Version))
}

// Write implements repositories.Depot.
func (d *Depot) Write(ctx context.Context, id entities.VersionedID, data []byte, expectedDigest entities.Digest) error {
	actual := entities.DigestOf(data)
	if actual != expectedDigest {
		return coreerrors.NewIntegrityError("digest-mismatch")
	}

	blob := d.blobPath(actual)
	if _, err := os.Stat(blob); err != nil {
		if !os.IsNotExist(err) {
			return coreerrors.NewIOError("depot-stat-blob", err)
		}
		if err := os.MkdirAll(filepath.Dir(blob), 0o755); err != nil {
			return coreerrors.NewIOError("depot-mkdir-blob", err)
		}
		if err := writeFileAtomic(blob, data); err != nil {
			return coreerrors.NewIOError("depot-write-blob", err)
		}
	}

	ref := d.refPath(id)
	if err := os.MkdirAll(filepath.Dir(ref), 0o755); err != nil {
		return coreerrors.NewIOError("depot-mkdir-ref", err)
	}
	if err := writeFileAtomic(ref, []byte(actual)); err != nil {
		return coreerrors.NewIOError("depot-write-ref", err)
	}
	return nil
}

// Read implements repositories.Depot.
func (d *Depot) Read(ctx context.Context, id entities.VersionedID) ([]byte, error) {
	digestRaw, err := os.ReadFile(d.refPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerrors.NewNotFoundError("blob", id.String())
		}
		return nil, coreerrors.NewIOError("depot-read-ref", err)
	}
	digest := entities.Digest(digestRaw)

	data, err := os.ReadFile(d.blobPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerrors.NewNotFoundError("blob", id.String())
		}
		return nil, coreerrors.NewIOError("depot-read-blob", err)
	}
	if entities.DigestOf(data) != digest {
		return nil, coreerrors.NewIntegrityError("digest-mismatch")
	}
	return data, nil
}

// Exists implements repositories.Depot.
func (d *Depot) Exists(ctx context.Context, id entities.VersionedID) (bool, error) {
	_, err := os.Stat(d.refPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, coreerrors.NewIOError("depot-stat-ref", err)
}

// writeFileAtomic writes data to a temp file in the destination's
// directory and renames it into place, so a crash mid-write never
// leaves a partial blob visible under its final name.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
