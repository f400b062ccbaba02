package bake

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthworld/assetd/assethash"
	"github.com/hearthworld/assetd/assetpath"
	"github.com/hearthworld/assetd/blobstore"
	"github.com/hearthworld/assetd/mapping"
	"github.com/hearthworld/assetd/metastore"
	"github.com/hearthworld/assetd/stats"
	"github.com/hearthworld/assetd/storagedriver/inmemory"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *mapping.Store, *blobstore.BlobStore, string) {
	t.Helper()
	driver := inmemory.New()
	blobs := blobstore.New(driver)
	mappings := mapping.New(driver, blobs)
	metas := metastore.New(mappings, blobs)
	scratch := t.TempDir()

	c := New(mappings, metas, blobs, NewPassthroughBaker("fbx"), NewPassthroughBaker("png"), nil, 0, scratch, stats.New())
	return c, mappings, blobs, scratch
}

func waitForBakedMapping(t *testing.T, mappings *mapping.Store, path string) assethash.Hash {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if h, ok := mappings.Get(path); ok {
			return h
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for mapping %s", path)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMaybeBakeModelProducesBakedMapping(t *testing.T) {
	ctx := context.Background()
	c, mappings, blobs, _ := newTestCoordinator(t)

	h, err := blobs.Put(ctx, []byte("model-bytes"))
	require.NoError(t, err)
	require.NoError(t, mappings.Set(ctx, "/models/cube.fbx", h))

	c.MaybeBake(ctx, "/models/cube.fbx", h)

	bakedPath := assetpath.HiddenPrefix + h.String() + "/" + ModelSentinel
	bakedHash := waitForBakedMapping(t, mappings, bakedPath)
	assert.True(t, bakedHash.Valid())

	rc, err := blobs.Open(ctx, bakedHash)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data), "baked output must republish the source content, not an empty file")
}

func TestMaybeBakeSkipsAlreadyBaked(t *testing.T) {
	ctx := context.Background()
	c, mappings, blobs, _ := newTestCoordinator(t)

	h, err := blobs.Put(ctx, []byte("model-bytes"))
	require.NoError(t, err)
	require.NoError(t, mappings.Set(ctx, "/models/cube.fbx", h))

	bakedPath := assetpath.HiddenPrefix + h.String() + "/" + ModelSentinel
	existing, err := blobs.Put(ctx, []byte("already-baked"))
	require.NoError(t, err)
	require.NoError(t, mappings.Set(ctx, bakedPath, existing))

	pending, _ := c.Pending(h)
	assert.False(t, pending)

	c.MaybeBake(ctx, "/models/cube.fbx", h)
	time.Sleep(20 * time.Millisecond)

	got, ok := mappings.Get(bakedPath)
	require.True(t, ok)
	assert.Equal(t, existing, got)
}

func TestMaybeBakeTextureRequiresMeta(t *testing.T) {
	ctx := context.Background()
	c, mappings, blobs, _ := newTestCoordinator(t)

	h, err := blobs.Put(ctx, []byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mappings.Set(ctx, "/sky.png", h))

	c.MaybeBake(ctx, "/sky.png", h)
	time.Sleep(20 * time.Millisecond)

	pending, _ := c.Pending(h)
	assert.False(t, pending, "texture without meta should not be bakeable")
}

// missingOutputBaker claims an output file it never actually writes, so
// applyCompletion's os.ReadFile fails -- exercising the completion-time
// failure path rather than Bake's own error return.
type missingOutputBaker struct{ exts []string }

func (b *missingOutputBaker) Extensions() []string { return b.exts }

func (b *missingOutputBaker) Bake(ctx context.Context, sourcePath, localFile, scratchDir string, abort <-chan struct{}) ([]string, error) {
	return []string{scratchDir + "/never-written.fbx"}, nil
}

func TestMaybeBakeCompletionFailureWritesFailedMeta(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	blobs := blobstore.New(driver)
	mappings := mapping.New(driver, blobs)
	metas := metastore.New(mappings, blobs)
	scratch := t.TempDir()

	c := New(mappings, metas, blobs, &missingOutputBaker{exts: []string{"fbx"}}, NewPassthroughBaker("png"), nil, 0, scratch, stats.New())

	h, err := blobs.Put(ctx, []byte("model-bytes"))
	require.NoError(t, err)
	require.NoError(t, mappings.Set(ctx, "/models/cube.fbx", h))

	c.MaybeBake(ctx, "/models/cube.fbx", h)

	deadline := time.After(2 * time.Second)
	for {
		if hasMeta, meta := metas.Read(ctx, h); hasMeta && meta.FailedLastBake {
			assert.NotEmpty(t, meta.LastBakeErrors)
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for failed bake meta")
		case <-time.After(5 * time.Millisecond):
		}
	}

	bakedPath := assetpath.HiddenPrefix + h.String() + "/" + ModelSentinel
	_, ok := mappings.Get(bakedPath)
	assert.False(t, ok, "a failed completion must not publish a baked mapping")
}

func TestSetBakingEnabledDisableThenEnable(t *testing.T) {
	ctx := context.Background()
	c, mappings, blobs, _ := newTestCoordinator(t)

	h, err := blobs.Put(ctx, []byte("model-bytes"))
	require.NoError(t, err)
	require.NoError(t, mappings.Set(ctx, "/models/cube.fbx", h))
	c.MaybeBake(ctx, "/models/cube.fbx", h)

	bakedPath := assetpath.HiddenPrefix + h.String() + "/" + ModelSentinel
	waitForBakedMapping(t, mappings, bakedPath)

	require.NoError(t, c.SetBakingEnabled(ctx, []string{"/models/cube.fbx"}, false))
	disabled, ok := mappings.Get(bakedPath)
	require.True(t, ok)
	assert.Equal(t, h, disabled, "disabled sentinel maps the baked path back to the source hash")

	require.NoError(t, c.SetBakingEnabled(ctx, []string{"/models/cube.fbx"}, true))
	reBaked := waitForBakedMapping(t, mappings, bakedPath)
	assert.True(t, reBaked.Valid())
}
