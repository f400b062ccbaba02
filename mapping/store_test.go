package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthworld/assetd/assethash"
	"github.com/hearthworld/assetd/assetpath"
	"github.com/hearthworld/assetd/blobstore"
	"github.com/hearthworld/assetd/storagedriver/inmemory"
)

func newTestStore() *Store {
	driver := inmemory.New()
	blobs := blobstore.New(driver)
	return New(driver, blobs)
}

func hashOf(s string) assethash.Hash {
	return assethash.FromBytes([]byte(s))
}

func TestStoreSetGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	h := hashOf("abc")
	require.NoError(t, s.Set(ctx, "/models/cube.fbx", h))

	got, ok := s.Get("/models/cube.fbx")
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestStoreSetRejectsFolderPath(t *testing.T) {
	s := newTestStore()
	err := s.Set(context.Background(), "/models/", hashOf("abc"))
	assert.Error(t, err)
}

func TestStoreLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	blobs := blobstore.New(driver)

	s1 := New(driver, blobs)
	h := hashOf("abc")
	require.NoError(t, s1.Set(ctx, "/models/cube.fbx", h))

	s2 := New(driver, blobs)
	require.NoError(t, s2.Load(ctx))

	got, ok := s2.Get("/models/cube.fbx")
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestStoreDeleteManyGarbageCollectsUnreferencedBlob(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	blobs := blobstore.New(driver)
	s := New(driver, blobs)

	h, err := blobs.Put(ctx, []byte("abc"))
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "/models/cube.fbx", h))

	require.NoError(t, s.DeleteMany(ctx, []string{"/models/cube.fbx"}))

	_, ok := s.Get("/models/cube.fbx")
	assert.False(t, ok)

	exists, err := blobs.Exists(ctx, h)
	require.NoError(t, err)
	assert.False(t, exists, "blob should be garbage collected once unreferenced")
}

func TestStoreDeleteManyKeepsBlobStillReferenced(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	blobs := blobstore.New(driver)
	s := New(driver, blobs)

	h, err := blobs.Put(ctx, []byte("abc"))
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "/models/a.fbx", h))
	require.NoError(t, s.Set(ctx, "/models/b.fbx", h))

	require.NoError(t, s.DeleteMany(ctx, []string{"/models/a.fbx"}))

	exists, err := blobs.Exists(ctx, h)
	require.NoError(t, err)
	assert.True(t, exists, "blob is still referenced by /models/b.fbx")
}

func TestStoreDeleteManyCascadesBakedSubtree(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	blobs := blobstore.New(driver)
	s := New(driver, blobs)

	source, err := blobs.Put(ctx, []byte("source"))
	require.NoError(t, err)
	baked, err := blobs.Put(ctx, []byte("baked-output"))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "/models/cube.fbx", source))
	require.NoError(t, s.Set(ctx, assetpath.HiddenPrefix+source.String()+"/cube.bake", baked))

	require.NoError(t, s.DeleteMany(ctx, []string{"/models/cube.fbx"}))

	_, ok := s.Get(assetpath.HiddenPrefix + source.String() + "/cube.bake")
	assert.False(t, ok, "baked subtree should be removed once its source is gone")

	exists, err := blobs.Exists(ctx, baked)
	require.NoError(t, err)
	assert.False(t, exists, "baked output blob should be collected once unreferenced")
}

func TestStoreDeleteManyFolder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.Set(ctx, "/models/a.fbx", hashOf("a")))
	require.NoError(t, s.Set(ctx, "/models/b.fbx", hashOf("b")))
	require.NoError(t, s.Set(ctx, "/other.fbx", hashOf("c")))

	require.NoError(t, s.DeleteMany(ctx, []string{"/models/"}))

	_, ok := s.Get("/models/a.fbx")
	assert.False(t, ok)
	_, ok = s.Get("/models/b.fbx")
	assert.False(t, ok)
	_, ok = s.Get("/other.fbx")
	assert.True(t, ok)
}

func TestStoreRenameFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	h := hashOf("abc")
	require.NoError(t, s.Set(ctx, "/a.fbx", h))
	require.NoError(t, s.Rename(ctx, "/a.fbx", "/b.fbx"))

	_, ok := s.Get("/a.fbx")
	assert.False(t, ok)
	got, ok := s.Get("/b.fbx")
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestStoreRenameFolder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	h := hashOf("abc")
	require.NoError(t, s.Set(ctx, "/models/a.fbx", h))
	require.NoError(t, s.Rename(ctx, "/models/", "/meshes/"))

	_, ok := s.Get("/models/a.fbx")
	assert.False(t, ok)
	got, ok := s.Get("/meshes/a.fbx")
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestStoreRenameKindMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.Set(ctx, "/a.fbx", hashOf("abc")))

	err := s.Rename(ctx, "/a.fbx", "/b/")
	assert.Error(t, err)
}

func TestStoreRenameRejectsInvalidPaths(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.Set(ctx, "/a.fbx", hashOf("abc")))

	assert.Error(t, s.Rename(ctx, "/a.fbx", "no-leading-slash.fbx"))
	assert.Error(t, s.Rename(ctx, "/a.fbx", ""))

	_, ok := s.Get("/a.fbx")
	assert.True(t, ok, "a rejected rename must leave the original mapping untouched")
}
