package wire

import (
	"fmt"

	"github.com/hearthworld/assetd/assethash"
)

// MappingEntry is one row of a GetAllMappings reply.
type MappingEntry struct {
	Path   string
	Hash   assethash.Hash
	Status BakingStatus
	Errors string // only meaningful when Status == StatusError
}

// --- AssetMappingOperation request envelope ---

// MappingRequest is the decoded opBody-agnostic envelope: msgId, op, and
// the still-encoded operation body.
type MappingRequest struct {
	MsgID uint32
	Op    MappingOp
	Body  []byte
}

func DecodeMappingRequest(body []byte) (MappingRequest, error) {
	r := newBodyReader(body)
	req := MappingRequest{
		MsgID: r.u32(),
		Op:    MappingOp(r.u8()),
		Body:  r.rest(),
	}
	if r.Err() != nil {
		return MappingRequest{}, fmt.Errorf("wire: decode mapping request: %w", r.Err())
	}
	return req, nil
}

func EncodeMappingRequest(msgID uint32, op MappingOp, opBody []byte) []byte {
	w := &bodyWriter{}
	w.u32(msgID)
	w.u8(uint8(op))
	w.bytes(opBody)
	return w.Bytes()
}

// MappingReply is the generic (msgId, error, opReply) envelope.
func EncodeMappingReply(msgID uint32, code ErrorCode, opReply []byte) []byte {
	w := &bodyWriter{}
	w.u32(msgID)
	w.u8(uint8(code))
	w.bytes(opReply)
	return w.Bytes()
}

type MappingReply struct {
	MsgID uint32
	Error ErrorCode
	Body  []byte
}

func DecodeMappingReply(body []byte) (MappingReply, error) {
	r := newBodyReader(body)
	rep := MappingReply{
		MsgID: r.u32(),
		Error: ErrorCode(r.u8()),
		Body:  r.rest(),
	}
	if r.Err() != nil {
		return MappingReply{}, fmt.Errorf("wire: decode mapping reply: %w", r.Err())
	}
	return rep, nil
}

// --- OpGet ---

func EncodeGetRequest(path string) []byte {
	w := &bodyWriter{}
	w.str(path)
	return w.Bytes()
}

func DecodeGetRequest(body []byte) (path string, err error) {
	r := newBodyReader(body)
	path = r.str()
	return path, r.Err()
}

func EncodeGetReply(hash assethash.Hash, redirected bool, bakedPath string) []byte {
	w := &bodyWriter{}
	w.hash(hash)
	if redirected {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.str(bakedPath)
	return w.Bytes()
}

type GetReply struct {
	Hash       assethash.Hash
	Redirected bool
	BakedPath  string
}

func DecodeGetReply(body []byte) (GetReply, error) {
	r := newBodyReader(body)
	rep := GetReply{
		Hash:       r.hash(),
		Redirected: r.u8() != 0,
		BakedPath:  r.str(),
	}
	return rep, r.Err()
}

// --- OpGetAll ---

func EncodeGetAllReply(entries []MappingEntry) []byte {
	w := &bodyWriter{}
	w.u32(uint32(len(entries)))
	for _, e := range entries {
		w.str(e.Path)
		w.hash(e.Hash)
		w.u8(uint8(e.Status))
		if e.Status == StatusError {
			w.str(e.Errors)
		} else {
			w.str("")
		}
	}
	return w.Bytes()
}

func DecodeGetAllReply(body []byte) ([]MappingEntry, error) {
	r := newBodyReader(body)
	count := r.u32()
	entries := make([]MappingEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		e := MappingEntry{
			Path:   r.str(),
			Hash:   r.hash(),
			Status: BakingStatus(r.u8()),
			Errors: r.str(),
		}
		entries = append(entries, e)
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("wire: decode get-all reply: %w", r.Err())
	}
	return entries, nil
}

// --- OpSet ---

func EncodeSetRequest(path string, hash assethash.Hash) []byte {
	w := &bodyWriter{}
	w.str(path)
	w.hash(hash)
	return w.Bytes()
}

type SetRequest struct {
	Path string
	Hash assethash.Hash
}

func DecodeSetRequest(body []byte) (SetRequest, error) {
	r := newBodyReader(body)
	req := SetRequest{Path: r.str(), Hash: r.hash()}
	return req, r.Err()
}

// --- OpDelete ---

func EncodeDeleteRequest(paths []string) []byte {
	w := &bodyWriter{}
	w.u32(uint32(len(paths)))
	for _, p := range paths {
		w.str(p)
	}
	return w.Bytes()
}

func DecodeDeleteRequest(body []byte) ([]string, error) {
	r := newBodyReader(body)
	count := r.u32()
	paths := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		paths = append(paths, r.str())
	}
	return paths, r.Err()
}

// --- OpRename ---

func EncodeRenameRequest(oldPath, newPath string) []byte {
	w := &bodyWriter{}
	w.str(oldPath)
	w.str(newPath)
	return w.Bytes()
}

type RenameRequest struct {
	OldPath string
	NewPath string
}

func DecodeRenameRequest(body []byte) (RenameRequest, error) {
	r := newBodyReader(body)
	req := RenameRequest{OldPath: r.str(), NewPath: r.str()}
	return req, r.Err()
}

// --- OpSetBakingEnabled ---

func EncodeSetBakingEnabledRequest(paths []string, enabled bool) []byte {
	w := &bodyWriter{}
	w.u32(uint32(len(paths)))
	for _, p := range paths {
		w.str(p)
	}
	if enabled {
		w.u8(1)
	} else {
		w.u8(0)
	}
	return w.Bytes()
}

type SetBakingEnabledRequest struct {
	Paths   []string
	Enabled bool
}

func DecodeSetBakingEnabledRequest(body []byte) (SetBakingEnabledRequest, error) {
	r := newBodyReader(body)
	count := r.u32()
	paths := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		paths = append(paths, r.str())
	}
	req := SetBakingEnabledRequest{Paths: paths, Enabled: r.u8() != 0}
	return req, r.Err()
}

// --- AssetGetInfo ---

func EncodeGetInfoRequest(msgID uint32, hash assethash.Hash) []byte {
	w := &bodyWriter{}
	w.u32(msgID)
	w.hash(hash)
	return w.Bytes()
}

type GetInfoRequest struct {
	MsgID uint32
	Hash  assethash.Hash
}

func DecodeGetInfoRequest(body []byte) (GetInfoRequest, error) {
	r := newBodyReader(body)
	req := GetInfoRequest{MsgID: r.u32(), Hash: r.hash()}
	return req, r.Err()
}

func EncodeGetInfoReply(msgID uint32, hash assethash.Hash, code ErrorCode, size uint64) []byte {
	w := &bodyWriter{}
	w.u32(msgID)
	w.hash(hash)
	w.u8(uint8(code))
	w.u64(size)
	return w.Bytes()
}

type GetInfoReply struct {
	MsgID uint32
	Hash  assethash.Hash
	Error ErrorCode
	Size  uint64
}

func DecodeGetInfoReply(body []byte) (GetInfoReply, error) {
	r := newBodyReader(body)
	rep := GetInfoReply{MsgID: r.u32(), Hash: r.hash(), Error: ErrorCode(r.u8()), Size: r.u64()}
	return rep, r.Err()
}

// --- AssetGet ---

func EncodeGetAssetRequest(msgID uint32, hash assethash.Hash, start, end uint64) []byte {
	w := &bodyWriter{}
	w.u32(msgID)
	w.hash(hash)
	w.u64(start)
	w.u64(end)
	return w.Bytes()
}

type GetAssetRequest struct {
	MsgID uint32
	Hash  assethash.Hash
	Start uint64
	End   uint64
}

func DecodeGetAssetRequest(body []byte) (GetAssetRequest, error) {
	r := newBodyReader(body)
	req := GetAssetRequest{MsgID: r.u32(), Hash: r.hash(), Start: r.u64(), End: r.u64()}
	return req, r.Err()
}

func EncodeGetAssetReply(msgID uint32, code ErrorCode, data []byte) []byte {
	w := &bodyWriter{}
	w.u32(msgID)
	w.u8(uint8(code))
	w.bytes(data)
	return w.Bytes()
}

type GetAssetReply struct {
	MsgID uint32
	Error ErrorCode
	Data  []byte
}

func DecodeGetAssetReply(body []byte) (GetAssetReply, error) {
	r := newBodyReader(body)
	rep := GetAssetReply{MsgID: r.u32(), Error: ErrorCode(r.u8()), Data: r.rest()}
	return rep, r.Err()
}

// --- AssetUpload ---

func EncodeUploadRequest(msgID uint32, data []byte) []byte {
	w := &bodyWriter{}
	w.u32(msgID)
	w.u64(uint64(len(data)))
	w.bytes(data)
	return w.Bytes()
}

type UploadRequest struct {
	MsgID uint32
	Data  []byte
}

func DecodeUploadRequest(body []byte) (UploadRequest, error) {
	r := newBodyReader(body)
	req := UploadRequest{MsgID: r.u32()}
	n := r.u64()
	if r.Err() != nil {
		return UploadRequest{}, r.Err()
	}
	rest := r.rest()
	if uint64(len(rest)) < n {
		return UploadRequest{}, fmt.Errorf("wire: upload body shorter than declared length")
	}
	req.Data = rest[:n]
	return req, nil
}

func EncodeUploadReply(msgID uint32, code ErrorCode, hash assethash.Hash) []byte {
	w := &bodyWriter{}
	w.u32(msgID)
	w.u8(uint8(code))
	w.hash(hash)
	return w.Bytes()
}

type UploadReply struct {
	MsgID uint32
	Error ErrorCode
	Hash  assethash.Hash
}

func DecodeUploadReply(body []byte) (UploadReply, error) {
	r := newBodyReader(body)
	rep := UploadReply{MsgID: r.u32(), Error: ErrorCode(r.u8()), Hash: r.hash()}
	return rep, r.Err()
}
