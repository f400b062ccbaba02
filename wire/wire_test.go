package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthworld/assetd/assethash"
)

func TestFrameRoundTrip(t *testing.T) {
	in := Frame{Type: AssetUpload, SenderID: 7, Body: []byte("hello")}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, in))

	out, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestGetRequestReplyRoundTrip(t *testing.T) {
	path := "/models/cube.fbx"
	body := EncodeGetRequest(path)

	got, err := DecodeGetRequest(body)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	h := assethash.FromBytes([]byte("abc"))
	reply := EncodeGetReply(h, true, "/.baked/"+h.String()+"/asset.fbx")

	decoded, err := DecodeGetReply(reply)
	require.NoError(t, err)
	assert.Equal(t, h, decoded.Hash)
	assert.True(t, decoded.Redirected)
	assert.Equal(t, "/.baked/"+h.String()+"/asset.fbx", decoded.BakedPath)
}

func TestUploadRequestReplyRoundTrip(t *testing.T) {
	data := []byte("abc")
	req := EncodeUploadRequest(42, data)

	got, err := DecodeUploadRequest(req)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), got.MsgID)
	assert.Equal(t, data, got.Data)

	h := assethash.FromBytes(data)
	reply := EncodeUploadReply(42, NoError, h)

	decoded, err := DecodeUploadReply(reply)
	require.NoError(t, err)
	assert.Equal(t, NoError, decoded.Error)
	assert.Equal(t, h, decoded.Hash)
}

func TestMappingRequestReplyEnvelope(t *testing.T) {
	opBody := EncodeSetRequest("/a.fbx", assethash.FromBytes([]byte("abc")))
	req := EncodeMappingRequest(1, OpSet, opBody)

	decoded, err := DecodeMappingRequest(req)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), decoded.MsgID)
	assert.Equal(t, OpSet, decoded.Op)

	setReq, err := DecodeSetRequest(decoded.Body)
	require.NoError(t, err)
	assert.Equal(t, "/a.fbx", setReq.Path)

	reply := EncodeMappingReply(1, NoError, nil)
	decodedReply, err := DecodeMappingReply(reply)
	require.NoError(t, err)
	assert.Equal(t, NoError, decodedReply.Error)
}

func TestGetAllReplyRoundTrip(t *testing.T) {
	entries := []MappingEntry{
		{Path: "/a.fbx", Hash: assethash.FromBytes([]byte("a")), Status: StatusPending},
		{Path: "/b.fbx", Hash: assethash.FromBytes([]byte("b")), Status: StatusError, Errors: "bake failed"},
	}
	body := EncodeGetAllReply(entries)

	decoded, err := DecodeGetAllReply(body)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, entries[0].Path, decoded[0].Path)
	assert.Equal(t, entries[1].Errors, decoded[1].Errors)
}
