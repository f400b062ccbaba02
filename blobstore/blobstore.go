// Package blobstore implements the content-addressed file store described
// in spec.md §4.1: files named by the SHA-256 hash of their contents,
// rooted at files/ in the resources directory. Grounded on the teacher's
// registry/storage blobStore (put/get/exists), adapted from its
// algorithm-sharded digest layout to this server's flat hex-named layout.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"

	"github.com/hearthworld/assetd/assethash"
	"github.com/hearthworld/assetd/internal/dcontext"
	"github.com/hearthworld/assetd/storagedriver"
)

// Root is the directory, relative to the driver's root, that holds
// hash-named blob files.
const Root = "files"

var hashNamePattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// BlobStore is a content-addressed file store over a StorageDriver.
type BlobStore struct {
	driver storagedriver.StorageDriver
}

// New returns a BlobStore rooted at files/ within driver.
func New(driver storagedriver.StorageDriver) *BlobStore {
	return &BlobStore{driver: driver}
}

func blobPath(h assethash.Hash) string {
	return path.Join(Root, h.String())
}

// Put writes p's bytes under the SHA-256 hash of their content and returns
// that hash. If a blob already exists at that name, the existing one is
// kept untouched: put is idempotent on content.
func (bs *BlobStore) Put(ctx context.Context, p []byte) (assethash.Hash, error) {
	h := assethash.FromBytes(p)

	if exists, err := bs.Exists(ctx, h); err != nil {
		return assethash.Zero, err
	} else if exists {
		return h, nil
	}

	if err := bs.driver.PutContent(ctx, blobPath(h), p); err != nil {
		return assethash.Zero, fmt.Errorf("blobstore: put %s: %w", h, err)
	}

	dcontext.GetLogger(ctx).Debugf("blobstore: put %s (%d bytes)", h, len(p))
	return h, nil
}

// Exists reports whether a blob is stored under h.
func (bs *BlobStore) Exists(ctx context.Context, h assethash.Hash) (bool, error) {
	_, err := bs.driver.Stat(ctx, blobPath(h))
	if err == nil {
		return true, nil
	}
	if storagedriver.IsPathNotFound(err) {
		return false, nil
	}
	return false, err
}

// Open returns a reader for the blob at h, or storagedriver.PathNotFoundError
// if it does not exist.
func (bs *BlobStore) Open(ctx context.Context, h assethash.Hash) (io.ReadCloser, error) {
	return bs.driver.Reader(ctx, blobPath(h), 0)
}

// Size returns the byte length of the blob at h.
func (bs *BlobStore) Size(ctx context.Context, h assethash.Hash) (int64, error) {
	fi, err := bs.driver.Stat(ctx, blobPath(h))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Delete best-effort removes the blob at h. It is not an error if the blob
// is already absent.
func (bs *BlobStore) Delete(ctx context.Context, h assethash.Hash) error {
	if err := bs.driver.Delete(ctx, blobPath(h)); err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", h, err)
	}
	dcontext.GetLogger(ctx).Debugf("blobstore: deleted %s", h)
	return nil
}

// ListHashNamed enumerates every hash-named file under files/.
func (bs *BlobStore) ListHashNamed(ctx context.Context) ([]assethash.Hash, error) {
	entries, err := bs.driver.List(ctx, Root)
	if err != nil {
		if storagedriver.IsPathNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("blobstore: list: %w", err)
	}

	hashes := make([]assethash.Hash, 0, len(entries))
	for _, e := range entries {
		name := path.Base(e)
		if hashNamePattern.MatchString(name) {
			hashes = append(hashes, assethash.Hash(name))
		}
	}
	return hashes, nil
}
