// Package wire implements the datagram framing and body encodings described
// in spec.md §6: a fixed (type, senderId, body) frame around four message
// types, a closed error-code enum, and a baking-status enum. Justified as a
// stdlib-only concern in the accompanying design notes: this is a small,
// fixed-shape binary format with no extensibility requirement, the one
// place in this codebase where reaching for a general-purpose serialization
// library (protobuf, msgpack) would add a dependency and a schema file to
// do what encoding/binary already does in a few dozen lines.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/hearthworld/assetd/assethash"
)

// HashSize is the wire width, in bytes, of a raw SHA-256 digest. The
// on-disk and in-memory Hash representation is the 64-character hex
// encoding of these same bytes; bodyWriter.hash and bodyReader.hash
// convert between the two at the wire boundary.
const HashSize = 32

// MessageType identifies a frame's body layout.
type MessageType uint8

const (
	AssetMappingOperation MessageType = iota
	AssetGetInfo
	AssetGet
	AssetUpload
)

// MappingOp identifies the operation carried by an AssetMappingOperation
// frame.
type MappingOp uint8

const (
	OpGet MappingOp = iota
	OpGetAll
	OpSet
	OpDelete
	OpRename
	OpSetBakingEnabled
)

// ErrorCode is the closed set of error values a reply may carry.
type ErrorCode uint8

const (
	NoError ErrorCode = iota
	ErrAssetNotFound
	ErrInvalidByteRange
	ErrAssetTooLarge
	ErrPermissionDenied
	ErrMappingOperationFailed
	ErrFileOperationFailed
	ErrNoCorrespondingAsset
)

// BakingStatus is the status byte GetAllMappings reports per entry.
type BakingStatus uint8

const (
	StatusNotBaked BakingStatus = iota
	StatusPending
	StatusBaking
	StatusBaked
	StatusError
	StatusIrrelevant
)

// Frame is a single (type, senderId, body) datagram.
type Frame struct {
	Type     MessageType
	SenderID uint32
	Body     []byte
}

// ReadFrame decodes one frame from r: a MessageType byte, a uint32 sender
// id, a uint32 body length, then the body bytes.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [9]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("wire: read frame header: %w", err)
	}

	f := Frame{
		Type:     MessageType(header[0]),
		SenderID: binary.BigEndian.Uint32(header[1:5]),
	}
	bodyLen := binary.BigEndian.Uint32(header[5:9])

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("wire: read frame body: %w", err)
	}
	f.Body = body
	return f, nil
}

// WriteFrame encodes f to w.
func WriteFrame(w io.Writer, f Frame) error {
	var header [9]byte
	header[0] = byte(f.Type)
	binary.BigEndian.PutUint32(header[1:5], f.SenderID)
	binary.BigEndian.PutUint32(header[5:9], uint32(len(f.Body)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if _, err := w.Write(f.Body); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	return nil
}

// bodyWriter is a small helper around bytes.Buffer for building reply and
// request bodies with the fixed-width fields this protocol uses.
type bodyWriter struct {
	buf bytes.Buffer
}

func (w *bodyWriter) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *bodyWriter) u32(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *bodyWriter) u64(v uint64) { var b [8]byte; binary.BigEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *bodyWriter) str(s string) { w.u32(uint32(len(s))); w.buf.WriteString(s) }
func (w *bodyWriter) bytes(p []byte) { w.buf.Write(p) }

// hash writes h's 32 raw digest bytes. An invalid (non-hex) Hash writes 32
// zero bytes rather than panicking; callers validate before encoding.
func (w *bodyWriter) hash(h assethash.Hash) {
	raw, err := hex.DecodeString(h.String())
	if err != nil || len(raw) != HashSize {
		w.buf.Write(make([]byte, HashSize))
		return
	}
	w.buf.Write(raw)
}

func (w *bodyWriter) Bytes() []byte { return w.buf.Bytes() }

// bodyReader is the matching sequential reader.
type bodyReader struct {
	r   *bytes.Reader
	err error
}

func newBodyReader(body []byte) *bodyReader {
	return &bodyReader{r: bytes.NewReader(body)}
}

func (r *bodyReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.err = err
		return 0
	}
	return b
}

func (r *bodyReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.err = err
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

func (r *bodyReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.err = err
		return 0
	}
	return binary.BigEndian.Uint64(b[:])
}

func (r *bodyReader) str() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = err
		return ""
	}
	return string(b)
}

func (r *bodyReader) hash() assethash.Hash {
	if r.err != nil {
		return assethash.Zero
	}
	raw := make([]byte, HashSize)
	if _, err := io.ReadFull(r.r, raw); err != nil {
		r.err = err
		return assethash.Zero
	}
	return assethash.Hash(hex.EncodeToString(raw))
}

func (r *bodyReader) rest() []byte {
	if r.err != nil {
		return nil
	}
	rest, _ := io.ReadAll(r.r)
	return rest
}

func (r *bodyReader) Err() error { return r.err }
