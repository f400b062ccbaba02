package metastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthworld/assetd/assethash"
	"github.com/hearthworld/assetd/blobstore"
	"github.com/hearthworld/assetd/mapping"
	"github.com/hearthworld/assetd/storagedriver/inmemory"
)

func TestReadReportsNoMetaBeforeWrite(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	blobs := blobstore.New(driver)
	mappings := mapping.New(driver, blobs)
	s := New(mappings, blobs)

	h := assethash.FromBytes([]byte("source"))
	ok, m := s.Read(ctx, h)
	assert.False(t, ok)
	assert.Equal(t, Meta{}, m)
	assert.False(t, s.HasMeta(h))
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	blobs := blobstore.New(driver)
	mappings := mapping.New(driver, blobs)
	s := New(mappings, blobs)

	h := assethash.FromBytes([]byte("source"))
	require.NoError(t, s.Write(ctx, h, Meta{BakeVersion: 3, FailedLastBake: true, LastBakeErrors: "boom"}))

	ok, m := s.Read(ctx, h)
	require.True(t, ok)
	assert.Equal(t, 3, m.BakeVersion)
	assert.True(t, m.FailedLastBake)
	assert.Equal(t, "boom", m.LastBakeErrors)
	assert.True(t, s.HasMeta(h))
}

func TestWriteEmptyPublishesMetaWithoutError(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	blobs := blobstore.New(driver)
	mappings := mapping.New(driver, blobs)
	s := New(mappings, blobs)

	h := assethash.FromBytes([]byte("texture"))
	require.NoError(t, s.WriteEmpty(ctx, h))

	ok, m := s.Read(ctx, h)
	require.True(t, ok)
	assert.False(t, m.FailedLastBake)
	assert.Equal(t, 0, m.BakeVersion)
}
