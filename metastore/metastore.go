// Package metastore implements spec.md §4.3's AssetMeta records: small JSON
// documents, one per source hash, addressed through the same mapping
// namespace as baked outputs. Grounded on the teacher's manifeststore
// pattern of storing a small JSON document as a content-addressed blob and
// publishing its digest under a well-known tag path, adapted from manifest
// tags to the fixed ".baked/<hash>/meta.json" path this server uses.
package metastore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hearthworld/assetd/assethash"
	"github.com/hearthworld/assetd/assetpath"
	"github.com/hearthworld/assetd/blobstore"
	"github.com/hearthworld/assetd/mapping"
)

// MetaFileName is the fixed filename meta documents are published under,
// within a source hash's hidden subtree.
const MetaFileName = "meta.json"

// Meta is the per-source-hash bake bookkeeping record.
type Meta struct {
	BakeVersion    int    `json:"bakeVersion"`
	FailedLastBake bool   `json:"failedLastBake"`
	LastBakeErrors string `json:"lastBakeErrors"`
}

// Store resolves and publishes Meta records through the mapping namespace.
type Store struct {
	mappings *mapping.Store
	blobs    *blobstore.BlobStore
}

// New returns a Store layered over mappings and blobs.
func New(mappings *mapping.Store, blobs *blobstore.BlobStore) *Store {
	return &Store{mappings: mappings, blobs: blobs}
}

func metaPath(sourceHash assethash.Hash) string {
	return assetpath.HiddenPrefix + sourceHash.String() + "/" + MetaFileName
}

// Read resolves sourceHash's meta document. It returns (false, zero Meta)
// if no document is mapped, the mapped blob is missing, or the blob fails
// to parse as a Meta -- any of which is treated as "no meta recorded yet"
// rather than an error.
func (s *Store) Read(ctx context.Context, sourceHash assethash.Hash) (bool, Meta) {
	h, ok := s.mappings.Get(metaPath(sourceHash))
	if !ok {
		return false, Meta{}
	}

	raw, err := s.blobs.Open(ctx, h)
	if err != nil {
		return false, Meta{}
	}
	defer raw.Close()

	var m Meta
	if err := json.NewDecoder(raw).Decode(&m); err != nil {
		return false, Meta{}
	}
	return true, m
}

// HasMeta reports whether sourceHash has any meta document published,
// regardless of its contents. Used by the bakeability rule to let a
// client opt a texture into baking by writing an empty meta record.
func (s *Store) HasMeta(sourceHash assethash.Hash) bool {
	_, ok := s.mappings.Get(metaPath(sourceHash))
	return ok
}

// Write serializes m and publishes it at sourceHash's meta path.
func (s *Store) Write(ctx context.Context, sourceHash assethash.Hash, m Meta) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("metastore: marshal: %w", err)
	}

	h, err := s.blobs.Put(ctx, raw)
	if err != nil {
		return fmt.Errorf("metastore: put: %w", err)
	}

	if err := s.mappings.Set(ctx, metaPath(sourceHash), h); err != nil {
		return fmt.Errorf("metastore: publish: %w", err)
	}
	return nil
}

// WriteEmpty publishes an empty Meta document for sourceHash, the
// skybox opt-in mechanism described in spec.md's GetMapping scenario.
func (s *Store) WriteEmpty(ctx context.Context, sourceHash assethash.Hash) error {
	return s.Write(ctx, sourceHash, Meta{})
}
