// Package dispatch implements spec.md §4.5's RequestDispatcher: the single
// entry point that turns a decoded wire.Frame into MappingStore, BlobStore,
// and BakeCoordinator calls and encodes the reply.
//
// Grounded on the teacher's registry/handlers dispatcher, adapted from an
// HTTP method/route table to a switch over this server's closed mapping
// op-code enum. There is no per-request Context type: each handler receives
// the context.Context and the caller's canWrite capability as arguments.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/hearthworld/assetd/assethash"
	"github.com/hearthworld/assetd/assetpath"
	"github.com/hearthworld/assetd/bake"
	"github.com/hearthworld/assetd/blobstore"
	"github.com/hearthworld/assetd/internal/dcontext"
	"github.com/hearthworld/assetd/mapping"
	"github.com/hearthworld/assetd/metastore"
	"github.com/hearthworld/assetd/stats"
	"github.com/hearthworld/assetd/transfer"
	"github.com/hearthworld/assetd/wire"
)

// skyboxQuery is the suffix GetMapping recognizes as the texture opt-in
// trigger described in spec.md's GetMapping scenario.
const skyboxQuery = "?skybox"

// MaxAssetUploadSize bounds a single Upload body. Requests over this are
// rejected with ErrAssetTooLarge before ever reaching BlobStore.
const MaxAssetUploadSize = 512 * 1024 * 1024

// Dispatcher is spec.md's RequestDispatcher.
type Dispatcher struct {
	mappings  *mapping.Store
	metas     *metastore.Store
	blobs     *blobstore.BlobStore
	bakes     *bake.Coordinator
	transfers *transfer.Pool
	stats     *stats.Reporter
}

// New constructs a Dispatcher over the given components.
func New(mappings *mapping.Store, metas *metastore.Store, blobs *blobstore.BlobStore, bakes *bake.Coordinator, transfers *transfer.Pool, reporter *stats.Reporter) *Dispatcher {
	return &Dispatcher{mappings: mappings, metas: metas, blobs: blobs, bakes: bakes, transfers: transfers, stats: reporter}
}

// Handle decodes req, executes the corresponding operation, and returns
// the reply frame. canWrite gates every write operation: Set, Delete,
// Rename, SetBakingEnabled, and Upload.
func (d *Dispatcher) Handle(ctx context.Context, req wire.Frame, canWrite bool) (wire.Frame, error) {
	switch req.Type {
	case wire.AssetMappingOperation:
		return d.handleMappingOperation(ctx, req, canWrite)
	case wire.AssetGetInfo:
		return d.handleGetInfo(ctx, req)
	case wire.AssetGet:
		return d.handleGetAsset(ctx, req)
	case wire.AssetUpload:
		return d.handleUpload(ctx, req, canWrite)
	default:
		return wire.Frame{}, fmt.Errorf("dispatch: unknown message type %d", req.Type)
	}
}

func (d *Dispatcher) handleMappingOperation(ctx context.Context, req wire.Frame, canWrite bool) (wire.Frame, error) {
	mreq, err := wire.DecodeMappingRequest(req.Body)
	if err != nil {
		return wire.Frame{}, err
	}

	var code wire.ErrorCode
	var opReply []byte

	switch mreq.Op {
	case wire.OpGet:
		code, opReply = d.opGet(ctx, mreq.Body)
	case wire.OpGetAll:
		code, opReply = d.opGetAll(ctx)
	case wire.OpSet:
		code, opReply = d.opSet(ctx, mreq.Body, canWrite)
	case wire.OpDelete:
		code, opReply = d.opDelete(ctx, mreq.Body, canWrite)
	case wire.OpRename:
		code, opReply = d.opRename(ctx, mreq.Body, canWrite)
	case wire.OpSetBakingEnabled:
		code, opReply = d.opSetBakingEnabled(ctx, mreq.Body, canWrite)
	default:
		code = wire.ErrMappingOperationFailed
	}

	return wire.Frame{Type: req.Type, SenderID: req.SenderID, Body: wire.EncodeMappingReply(mreq.MsgID, code, opReply)}, nil
}

func (d *Dispatcher) opGet(ctx context.Context, body []byte) (wire.ErrorCode, []byte) {
	rawPath, err := wire.DecodeGetRequest(body)
	if err != nil {
		return wire.ErrMappingOperationFailed, nil
	}

	path := rawPath
	skybox := strings.HasSuffix(path, skyboxQuery)
	if skybox {
		path = strings.TrimSuffix(path, skyboxQuery)
	}

	hash, ok := d.mappings.Get(path)
	if !ok {
		return wire.ErrAssetNotFound, nil
	}

	if skybox {
		if err := d.metas.WriteEmpty(ctx, hash); err != nil {
			dcontext.GetLogger(ctx).Errorf("dispatch: skybox opt-in for %s: %v", path, err)
		}
		d.bakes.MaybeBake(ctx, path, hash)
	}

	sentinel, bakeable := d.bakes.Bakeable(path, hash)
	if !bakeable {
		return wire.NoError, wire.EncodeGetReply(hash, false, "")
	}

	bakedPath := assetpath.HiddenPrefix + hash.String() + "/" + sentinel
	if v, ok := d.mappings.Get(bakedPath); ok && v != hash {
		return wire.NoError, wire.EncodeGetReply(v, true, bakedPath)
	}
	return wire.NoError, wire.EncodeGetReply(hash, false, "")
}

func (d *Dispatcher) opGetAll(ctx context.Context) (wire.ErrorCode, []byte) {
	all := d.mappings.All()
	entries := make([]wire.MappingEntry, 0, len(all))
	for path, hash := range all {
		status, errs := d.status(ctx, path, hash)
		entries = append(entries, wire.MappingEntry{Path: path, Hash: hash, Status: status, Errors: errs})
	}
	return wire.NoError, wire.EncodeGetAllReply(entries)
}

// status implements spec.md §4.5's GetAllMappings status computation.
// Always recomputed, never cached.
func (d *Dispatcher) status(ctx context.Context, path string, hash assethash.Hash) (wire.BakingStatus, string) {
	if pending, running := d.bakes.Pending(hash); pending {
		if running {
			return wire.StatusBaking, ""
		}
		return wire.StatusPending, ""
	}

	if assetpath.IsHidden(path) {
		return wire.StatusBaked, ""
	}

	sentinel, bakeable := d.bakes.Bakeable(path, hash)
	if !bakeable {
		return wire.StatusIrrelevant, ""
	}

	bakedPath := assetpath.HiddenPrefix + hash.String() + "/" + sentinel
	if v, ok := d.mappings.Get(bakedPath); ok {
		if v != hash {
			return wire.StatusBaked, ""
		}
		return wire.StatusNotBaked, ""
	}

	if _, meta := d.metas.Read(ctx, hash); meta.FailedLastBake {
		return wire.StatusError, meta.LastBakeErrors
	}
	return wire.StatusPending, ""
}

func (d *Dispatcher) opSet(ctx context.Context, body []byte, canWrite bool) (wire.ErrorCode, []byte) {
	if !canWrite {
		return wire.ErrPermissionDenied, nil
	}
	req, err := wire.DecodeSetRequest(body)
	if err != nil {
		return wire.ErrMappingOperationFailed, nil
	}
	if assetpath.IsHidden(req.Path) {
		return wire.ErrPermissionDenied, nil
	}
	if err := d.mappings.Set(ctx, req.Path, req.Hash); err != nil {
		return wire.ErrMappingOperationFailed, nil
	}
	d.stats.MappingMutations.Inc()
	d.bakes.MaybeBake(ctx, req.Path, req.Hash)
	return wire.NoError, nil
}

func (d *Dispatcher) opDelete(ctx context.Context, body []byte, canWrite bool) (wire.ErrorCode, []byte) {
	if !canWrite {
		return wire.ErrPermissionDenied, nil
	}
	paths, err := wire.DecodeDeleteRequest(body)
	if err != nil {
		return wire.ErrMappingOperationFailed, nil
	}

	filtered := paths[:0:0]
	for _, p := range paths {
		if !assetpath.IsHidden(p) {
			filtered = append(filtered, p)
		}
	}

	if err := d.mappings.DeleteMany(ctx, filtered); err != nil {
		return wire.ErrMappingOperationFailed, nil
	}
	d.stats.MappingMutations.Inc()
	return wire.NoError, nil
}

func (d *Dispatcher) opRename(ctx context.Context, body []byte, canWrite bool) (wire.ErrorCode, []byte) {
	if !canWrite {
		return wire.ErrPermissionDenied, nil
	}
	req, err := wire.DecodeRenameRequest(body)
	if err != nil {
		return wire.ErrMappingOperationFailed, nil
	}
	if assetpath.IsHidden(req.OldPath) || assetpath.IsHidden(req.NewPath) {
		return wire.ErrPermissionDenied, nil
	}
	if err := d.mappings.Rename(ctx, req.OldPath, req.NewPath); err != nil {
		return wire.ErrMappingOperationFailed, nil
	}
	d.stats.MappingMutations.Inc()
	return wire.NoError, nil
}

func (d *Dispatcher) opSetBakingEnabled(ctx context.Context, body []byte, canWrite bool) (wire.ErrorCode, []byte) {
	if !canWrite {
		return wire.ErrPermissionDenied, nil
	}
	req, err := wire.DecodeSetBakingEnabledRequest(body)
	if err != nil {
		return wire.ErrMappingOperationFailed, nil
	}
	if err := d.bakes.SetBakingEnabled(ctx, req.Paths, req.Enabled); err != nil {
		return wire.ErrMappingOperationFailed, nil
	}
	return wire.NoError, nil
}

func (d *Dispatcher) handleGetInfo(ctx context.Context, req wire.Frame) (wire.Frame, error) {
	greq, err := wire.DecodeGetInfoRequest(req.Body)
	if err != nil {
		return wire.Frame{}, err
	}

	exists, err := d.blobs.Exists(ctx, greq.Hash)
	if err != nil {
		return wire.Frame{Type: req.Type, SenderID: req.SenderID,
			Body: wire.EncodeGetInfoReply(greq.MsgID, greq.Hash, wire.ErrFileOperationFailed, 0)}, nil
	}
	if !exists {
		return wire.Frame{Type: req.Type, SenderID: req.SenderID,
			Body: wire.EncodeGetInfoReply(greq.MsgID, greq.Hash, wire.ErrAssetNotFound, 0)}, nil
	}

	size, err := d.blobs.Size(ctx, greq.Hash)
	if err != nil {
		return wire.Frame{Type: req.Type, SenderID: req.SenderID,
			Body: wire.EncodeGetInfoReply(greq.MsgID, greq.Hash, wire.ErrFileOperationFailed, 0)}, nil
	}
	return wire.Frame{Type: req.Type, SenderID: req.SenderID,
		Body: wire.EncodeGetInfoReply(greq.MsgID, greq.Hash, wire.NoError, uint64(size))}, nil
}

func (d *Dispatcher) handleGetAsset(ctx context.Context, req wire.Frame) (wire.Frame, error) {
	greq, err := wire.DecodeGetAssetRequest(req.Body)
	if err != nil {
		return wire.Frame{}, err
	}
	if greq.End < greq.Start {
		return wire.Frame{Type: req.Type, SenderID: req.SenderID,
			Body: wire.EncodeGetAssetReply(greq.MsgID, wire.ErrInvalidByteRange, nil)}, nil
	}

	result := <-transfer.Submit(d.transfers, func() ([]byte, error) {
		return d.readRange(ctx, greq.Hash, greq.Start, greq.End)
	})

	if result.Err != nil {
		code := wire.ErrFileOperationFailed
		if isNotFound(result.Err) {
			code = wire.ErrAssetNotFound
		} else if isInvalidRange(result.Err) {
			code = wire.ErrInvalidByteRange
		}
		return wire.Frame{Type: req.Type, SenderID: req.SenderID,
			Body: wire.EncodeGetAssetReply(greq.MsgID, code, nil)}, nil
	}

	d.stats.BytesServed.Add(float64(len(result.Value)))
	return wire.Frame{Type: req.Type, SenderID: req.SenderID,
		Body: wire.EncodeGetAssetReply(greq.MsgID, wire.NoError, result.Value)}, nil
}

func (d *Dispatcher) readRange(ctx context.Context, hash assethash.Hash, start, end uint64) ([]byte, error) {
	size, err := d.blobs.Size(ctx, hash)
	if err != nil {
		return nil, err
	}
	if start > uint64(size) || end >= uint64(size) {
		return nil, errInvalidRange{}
	}

	rc, err := d.blobs.Open(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if _, err := skip(rc, int64(start)); err != nil {
		return nil, err
	}

	want := int(end-start) + 1
	buf := make([]byte, want)
	n, err := readFull(rc, buf)
	return buf[:n], err
}

func (d *Dispatcher) handleUpload(ctx context.Context, req wire.Frame, canWrite bool) (wire.Frame, error) {
	ureq, err := wire.DecodeUploadRequest(req.Body)
	if err != nil {
		return wire.Frame{}, err
	}
	if !canWrite {
		return wire.Frame{Type: req.Type, SenderID: req.SenderID,
			Body: wire.EncodeUploadReply(ureq.MsgID, wire.ErrPermissionDenied, assethash.Zero)}, nil
	}
	if len(ureq.Data) > MaxAssetUploadSize {
		return wire.Frame{Type: req.Type, SenderID: req.SenderID,
			Body: wire.EncodeUploadReply(ureq.MsgID, wire.ErrAssetTooLarge, assethash.Zero)}, nil
	}

	result := <-transfer.Submit(d.transfers, func() (assethash.Hash, error) {
		if _, err := assethash.VerifyUpload(ureq.Data); err != nil {
			return assethash.Zero, err
		}
		return d.blobs.Put(ctx, ureq.Data)
	})

	if result.Err != nil {
		return wire.Frame{Type: req.Type, SenderID: req.SenderID,
			Body: wire.EncodeUploadReply(ureq.MsgID, wire.ErrFileOperationFailed, assethash.Zero)}, nil
	}
	d.stats.BytesUploaded.Add(float64(len(ureq.Data)))
	return wire.Frame{Type: req.Type, SenderID: req.SenderID,
		Body: wire.EncodeUploadReply(ureq.MsgID, wire.NoError, result.Value)}, nil
}
