package sweep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthworld/assetd/assetpath"
	"github.com/hearthworld/assetd/bake"
	"github.com/hearthworld/assetd/blobstore"
	"github.com/hearthworld/assetd/mapping"
	"github.com/hearthworld/assetd/metastore"
	"github.com/hearthworld/assetd/stats"
	"github.com/hearthworld/assetd/storagedriver/inmemory"
)

func TestRunGarbageCollectsUnreferencedBlobAndCascade(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	blobs := blobstore.New(driver)

	orphan, err := blobs.Put(ctx, []byte("orphaned"))
	require.NoError(t, err)
	bakedOutput, err := blobs.Put(ctx, []byte("stale-baked-output"))
	require.NoError(t, err)
	kept, err := blobs.Put(ctx, []byte("kept"))
	require.NoError(t, err)

	bootMappings := mapping.New(driver, blobs)
	require.NoError(t, bootMappings.Set(ctx, assetpath.HiddenPrefix+orphan.String()+"/asset.fbx", bakedOutput))
	require.NoError(t, bootMappings.Set(ctx, "/kept/file.txt", kept))

	mappings := mapping.New(driver, blobs)
	metas := metastore.New(mappings, blobs)
	bakes := bake.New(mappings, metas, blobs, bake.NewPassthroughBaker("fbx"), bake.NewPassthroughBaker("png"), nil, 0, t.TempDir(), stats.New())

	require.NoError(t, Run(ctx, mappings, blobs, bakes))

	_, ok := mappings.Get(assetpath.HiddenPrefix + orphan.String() + "/asset.fbx")
	assert.False(t, ok, "stale baked-subtree mapping for an unreferenced source hash should be cascaded away")

	stillExists, err := blobs.Exists(ctx, orphan)
	require.NoError(t, err)
	assert.False(t, stillExists, "the orphaned source blob itself should be collected")

	keptHash, ok := mappings.Get("/kept/file.txt")
	require.True(t, ok)
	assert.Equal(t, kept, keptHash)

	keptExists, err := blobs.Exists(ctx, kept)
	require.NoError(t, err)
	assert.True(t, keptExists)
}
