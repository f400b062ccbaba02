// Package sweep implements spec.md §4.6's StartupSweep: the boot-time
// sequence that loads the mapping document, garbage-collects blobs that
// lost every reference while the server was down, and re-queues any bake
// that should be pending.
//
// Grounded on the teacher's registry/storage/garbagecollect.go mark-and-
// sweep shape (enumerate all referenced digests, then delete anything on
// disk that isn't one of them), adapted from its manifest/layer link-graph
// walk to this server's flatter mapping-is-the-only-reference-source model.
package sweep

import (
	"context"
	"fmt"

	"github.com/hearthworld/assetd/assethash"
	"github.com/hearthworld/assetd/assetpath"
	"github.com/hearthworld/assetd/bake"
	"github.com/hearthworld/assetd/blobstore"
	"github.com/hearthworld/assetd/internal/dcontext"
	"github.com/hearthworld/assetd/mapping"
)

// Run performs the ordered startup sequence spec.md §4.6 describes:
// load the mapping document, garbage-collect unreferenced blobs (cascading
// into their baked subtrees), then re-evaluate every remaining mapping for
// a pending bake.
func Run(ctx context.Context, mappings *mapping.Store, blobs *blobstore.BlobStore, bakes *bake.Coordinator) error {
	logger := dcontext.GetLogger(ctx)

	if err := mappings.Load(ctx); err != nil {
		return fmt.Errorf("sweep: load mappings: %w", err)
	}

	if err := gcUnreferencedBlobs(ctx, mappings, blobs); err != nil {
		return fmt.Errorf("sweep: gc unreferenced blobs: %w", err)
	}

	all := mappings.All()
	logger.Infof("sweep: re-evaluating %d mappings for pending bakes", len(all))
	for path, hash := range all {
		bakes.MaybeBake(ctx, path, hash)
	}
	return nil
}

// gcUnreferencedBlobs deletes every hash-named blob file that no mapping
// references. For each, it first asks MappingStore to remove the stale
// ".baked/<h>/" subtree that source hash may have left behind (cascading
// into any baked-output blob that becomes unreferenced as a result), then
// deletes the orphaned source blob itself, which MappingStore's own
// deleteMany cannot do since the orphan was never a mapped value to begin
// with -- it is absent from the map entirely, which is exactly why it is
// being collected.
func gcUnreferencedBlobs(ctx context.Context, mappings *mapping.Store, blobs *blobstore.BlobStore) error {
	onDisk, err := blobs.ListHashNamed(ctx)
	if err != nil {
		return err
	}

	referenced := make(map[assethash.Hash]bool)
	for _, h := range mappings.All() {
		referenced[h] = true
	}

	var orphans []assethash.Hash
	var bakedPrefixes []string
	for _, h := range onDisk {
		if referenced[h] {
			continue
		}
		orphans = append(orphans, h)
		bakedPrefixes = append(bakedPrefixes, assetpath.HiddenPrefix+h.String()+"/")
	}
	if len(orphans) == 0 {
		return nil
	}

	if err := mappings.DeleteMany(ctx, bakedPrefixes); err != nil {
		return fmt.Errorf("cascade stale baked subtrees: %w", err)
	}

	logger := dcontext.GetLogger(ctx)
	for _, h := range orphans {
		if err := blobs.Delete(ctx, h); err != nil {
			logger.Errorf("sweep: gc blob %s: %v", h, err)
			continue
		}
		logger.Infof("sweep: collected unreferenced blob %s", h)
	}
	return nil
}
