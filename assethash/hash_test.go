package assethash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytesMatchesKnownDigest(t *testing.T) {
	h := FromBytes([]byte("abc"))
	assert.Equal(t, Hash("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"), h)
	assert.True(t, h.Valid())
}

func TestParseRejectsMalformedHash(t *testing.T) {
	_, err := Parse("not-a-hash")
	assert.Error(t, err)

	_, err = Parse("BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD")
	assert.Error(t, err, "uppercase hex is not a valid canonical hash")
}

func TestVerifyUploadMatchesFromBytes(t *testing.T) {
	h1, err := VerifyUpload([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, FromBytes([]byte("payload")), h1)
}

func TestZeroIsInvalid(t *testing.T) {
	assert.False(t, Zero.Valid())
}
