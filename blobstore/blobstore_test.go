package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthworld/assetd/assethash"
	"github.com/hearthworld/assetd/storagedriver/inmemory"
)

func TestPutIsIdempotentOnContent(t *testing.T) {
	ctx := context.Background()
	bs := New(inmemory.New())

	h1, err := bs.Put(ctx, []byte("abc"))
	require.NoError(t, err)
	h2, err := bs.Put(ctx, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, assethash.FromBytes([]byte("abc")), h1)
}

func TestOpenReturnsStoredContent(t *testing.T) {
	ctx := context.Background()
	bs := New(inmemory.New())

	h, err := bs.Put(ctx, []byte("hello world"))
	require.NoError(t, err)

	rc, err := bs.Open(ctx, h)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	bs := New(inmemory.New())

	h, err := bs.Put(ctx, []byte("data"))
	require.NoError(t, err)

	exists, err := bs.Exists(ctx, h)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, bs.Delete(ctx, h))

	exists, err = bs.Exists(ctx, h)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListHashNamedOnlyReturnsHashLikeNames(t *testing.T) {
	ctx := context.Background()
	driver := inmemory.New()
	bs := New(driver)

	h, err := bs.Put(ctx, []byte("data"))
	require.NoError(t, err)
	require.NoError(t, driver.PutContent(ctx, Root+"/not-a-hash.tmp", []byte("junk")))

	hashes, err := bs.ListHashNamed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []assethash.Hash{h}, hashes)
}
