// Package bake implements spec.md §4.4's BakeCoordinator: the at-most-one-
// bake-per-source-hash scheduler that turns uploaded models and opted-in
// textures into baked variants published under the hidden ".baked/"
// namespace.
//
// Grounded on the teacher's registry/storage/driver/base pattern of a
// single-purpose coordinating type wrapping pluggable strategies (here,
// Baker implementations), and on notifications/bridge.go's use of
// docker/go-events to decouple event producers from their consumer: bake
// workers never touch pendingBakes themselves, they post a typed
// completion event that only the coordinator's apply loop consumes. The
// bake pool itself is a single-worker github.com/JekaMas/workerpool.Pool,
// the same primitive TransferPool uses at larger size.
package bake

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	events "github.com/docker/go-events"
	workerpool "github.com/JekaMas/workerpool"

	"github.com/hearthworld/assetd/assethash"
	"github.com/hearthworld/assetd/assetpath"
	"github.com/hearthworld/assetd/blobstore"
	"github.com/hearthworld/assetd/internal/dcontext"
	"github.com/hearthworld/assetd/internal/uuid"
	"github.com/hearthworld/assetd/mapping"
	"github.com/hearthworld/assetd/metastore"
	"github.com/hearthworld/assetd/stats"
)

// State is a BakeTask's point in its lifecycle.
type State int

const (
	StateQueued State = iota
	StateRunning
	StateFinishedOK
	StateFinishedFail
	StateAborted
)

// Task tracks one outstanding bake. The bake pool holds only a non-owning
// reference to it: pendingBakes is the sole owner, and releases it once a
// completion event has been applied.
type Task struct {
	ID         string
	SourceHash assethash.Hash
	SourcePath string
	LocalFile  string
	State      State

	abort chan struct{}
}

type completionKind int

const (
	kindCompleted completionKind = iota
	kindFailed
	kindAborted
)

// completionEvent is the message a bake worker posts back to the
// coordinator; it is the only channel through which a worker goroutine
// influences pendingBakes.
type completionEvent struct {
	kind       completionKind
	taskID     string
	sourceHash assethash.Hash
	sourcePath string
	scratchDir string
	outputs    []string
	err        error
}

// eventSink adapts a Go channel to the events.Sink interface, the same
// producer-facing shape notifications/bridge.go writes manifest events
// through.
type eventSink struct {
	c chan events.Event
}

func (s *eventSink) Write(e events.Event) error {
	s.c <- e
	return nil
}

func (s *eventSink) Close() error {
	close(s.c)
	return nil
}

// Coordinator is spec.md's BakeCoordinator.
type Coordinator struct {
	mappings     *mapping.Store
	metas        *metastore.Store
	blobs        *blobstore.BlobStore
	modelBaker   Baker
	textureBaker Baker
	modelExts    map[string]bool
	textureExts  map[string]bool
	scratchRoot  string
	bakeVersion  int
	toggles      *CompressionToggles
	stats        *stats.Reporter

	pool *workerpool.WorkerPool
	sink *eventSink

	mu           sync.Mutex // dispatch-context-only: see spec's concurrency model
	pendingBakes map[assethash.Hash]*Task

	done chan struct{}
}

// New constructs a Coordinator. scratchRoot is a directory the coordinator
// may freely create and remove subdirectories under for in-progress bake
// output.
func New(mappings *mapping.Store, metas *metastore.Store, blobs *blobstore.BlobStore, modelBaker, textureBaker Baker, modelExts []string, bakeVersion int, scratchRoot string, reporter *stats.Reporter) *Coordinator {
	if len(modelExts) == 0 {
		modelExts = DefaultModelExts
	}
	modelExtSet := make(map[string]bool, len(modelExts))
	for _, ext := range modelExts {
		modelExtSet[ext] = true
	}

	textureExts := make(map[string]bool)
	if textureBaker != nil {
		for _, ext := range textureBaker.Extensions() {
			textureExts[ext] = true
		}
	}

	if bakeVersion <= 0 {
		bakeVersion = CurrentBakeVersion
	}

	c := &Coordinator{
		mappings:     mappings,
		metas:        metas,
		blobs:        blobs,
		modelBaker:   modelBaker,
		textureBaker: textureBaker,
		modelExts:    modelExtSet,
		textureExts:  textureExts,
		scratchRoot:  scratchRoot,
		bakeVersion:  bakeVersion,
		toggles:      &CompressionToggles{},
		stats:        reporter,
		pool:         workerpool.New(1),
		sink:         &eventSink{c: make(chan events.Event, 16)},
		pendingBakes: make(map[assethash.Hash]*Task),
		done:         make(chan struct{}),
	}
	c.toggles.Capture()
	go c.applyLoop(context.Background())
	return c
}

// MaybeBake schedules a bake for (path, hash) if it is bakeable, has not
// already failed, and does not already have a baked output published.
func (c *Coordinator) MaybeBake(ctx context.Context, path string, hash assethash.Hash) {
	if assetpath.IsHidden(path) {
		return
	}

	k := c.classify(path, c.metas.HasMeta(hash))
	if k == kindNotBakeable {
		return
	}

	if _, meta := c.metas.Read(ctx, hash); meta.FailedLastBake {
		return
	}

	bakedPath := assetpath.HiddenPrefix + hash.String() + "/" + k.sentinel()
	if _, ok := c.mappings.Get(bakedPath); ok {
		return
	}

	c.schedule(ctx, hash, path)
}

func (c *Coordinator) schedule(ctx context.Context, hash assethash.Hash, path string) {
	c.mu.Lock()
	if _, exists := c.pendingBakes[hash]; exists {
		c.mu.Unlock()
		return
	}
	task := &Task{
		ID:         uuid.NewString(),
		SourceHash: hash,
		SourcePath: path,
		State:      StateQueued,
		abort:      make(chan struct{}),
	}
	c.pendingBakes[hash] = task
	c.mu.Unlock()

	c.stats.BakesScheduled.Inc()
	c.stats.BakesInFlight.Inc()
	c.pool.Submit(func() {
		c.runBake(ctx, task)
	})
}

func (c *Coordinator) runBake(ctx context.Context, task *Task) {
	c.mu.Lock()
	task.State = StateRunning
	c.mu.Unlock()

	baker := c.modelBaker
	isModel := c.modelExts[assetpath.Extension(task.SourcePath)]
	if !isModel {
		baker = c.textureBaker
	}

	scratchDir, err := os.MkdirTemp(c.scratchRoot, "bake-*")
	if err != nil {
		c.sink.Write(completionEvent{kind: kindFailed, taskID: task.ID, sourceHash: task.SourceHash, sourcePath: task.SourcePath, err: err})
		return
	}

	rc, err := c.blobs.Open(ctx, task.SourceHash)
	if err != nil {
		os.RemoveAll(scratchDir)
		c.sink.Write(completionEvent{kind: kindFailed, taskID: task.ID, sourceHash: task.SourceHash, sourcePath: task.SourcePath, err: err})
		return
	}
	localFile := filepath.Join(scratchDir, "source"+filepath.Ext(task.SourcePath))
	f, err := os.Create(localFile)
	if err != nil {
		rc.Close()
		os.RemoveAll(scratchDir)
		c.sink.Write(completionEvent{kind: kindFailed, taskID: task.ID, sourceHash: task.SourceHash, sourcePath: task.SourcePath, err: err})
		return
	}
	_, copyErr := io.Copy(f, rc)
	f.Close()
	rc.Close()
	if copyErr != nil {
		os.RemoveAll(scratchDir)
		c.sink.Write(completionEvent{kind: kindFailed, taskID: task.ID, sourceHash: task.SourceHash, sourcePath: task.SourcePath, err: copyErr})
		return
	}

	select {
	case <-task.abort:
		os.RemoveAll(scratchDir)
		c.sink.Write(completionEvent{kind: kindAborted, taskID: task.ID, sourceHash: task.SourceHash})
		return
	default:
	}

	outputs, err := baker.Bake(ctx, task.SourcePath, localFile, scratchDir, task.abort)
	if err != nil {
		c.sink.Write(completionEvent{
			kind: kindFailed, taskID: task.ID, sourceHash: task.SourceHash,
			sourcePath: task.SourcePath, scratchDir: scratchDir, err: err,
		})
		return
	}

	c.sink.Write(completionEvent{
		kind: kindCompleted, taskID: task.ID, sourceHash: task.SourceHash,
		sourcePath: task.SourcePath, scratchDir: scratchDir, outputs: outputs,
	})
}

// applyLoop is the sole goroutine that mutates pendingBakes and writes
// through MappingStore/MetaStore on a bake's behalf. It is the "single
// dispatch context" for bake completions.
func (c *Coordinator) applyLoop(ctx context.Context) {
	for ev := range c.sink.c {
		evt := ev.(completionEvent)
		switch evt.kind {
		case kindCompleted:
			c.applyCompletion(ctx, evt)
		case kindFailed:
			c.applyFailure(ctx, evt)
		case kindAborted:
			c.applyAbort(evt)
		}
	}
	close(c.done)
}

// applyCompletion publishes a completed bake's outputs. Any per-output
// failure (reading the staged file, publishing the blob, or recording the
// mapping) turns the whole bake into a failure: spec.md §4.4 has no notion
// of a partially-applied bake, so a failure here is recorded the same way
// applyFailure records a bake that failed during Bake itself.
func (c *Coordinator) applyCompletion(ctx context.Context, evt completionEvent) {
	logger := dcontext.GetLogger(ctx)

	var firstErr error
	for _, f := range evt.outputs {
		data, err := os.ReadFile(f)
		if err != nil {
			logger.Errorf("bake: read output %s: %v", f, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		oh, err := c.blobs.Put(ctx, data)
		if err != nil {
			logger.Errorf("bake: publish output %s: %v", f, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		relName := bakedRelName(f, evt.sourcePath)
		target := assetpath.HiddenPrefix + evt.sourceHash.String() + "/" + relName
		if err := c.mappings.Set(ctx, target, oh); err != nil {
			logger.Errorf("bake: set mapping %s: %v", target, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	os.RemoveAll(evt.scratchDir)

	if firstErr != nil {
		c.applyFailure(ctx, completionEvent{
			kind: kindFailed, taskID: evt.taskID, sourceHash: evt.sourceHash,
			sourcePath: evt.sourcePath, err: firstErr,
		})
		return
	}

	if err := c.metas.Write(ctx, evt.sourceHash, metastore.Meta{BakeVersion: c.bakeVersion}); err != nil {
		logger.Errorf("bake: write meta for %s: %v", evt.sourceHash, err)
	}

	c.mu.Lock()
	delete(c.pendingBakes, evt.sourceHash)
	c.mu.Unlock()
	c.stats.BakesSucceeded.Inc()
	c.stats.BakesInFlight.Dec()
}

// bakedRelName canonicalizes a bake output's filename so that two source
// assets producing identical baked bytes share the same published blob
// name: model outputs always use ModelSentinel; outputs of a non-fbx
// source use TextureSentinel; anything else keeps its own filename.
func bakedRelName(outputFile, sourcePath string) string {
	if assetpath.Extension(outputFile) == "fbx" {
		return ModelSentinel
	}
	if assetpath.Extension(sourcePath) != "fbx" {
		return TextureSentinel
	}
	return filepath.Base(outputFile)
}

func (c *Coordinator) applyFailure(ctx context.Context, evt completionEvent) {
	logger := dcontext.GetLogger(ctx)
	if evt.scratchDir != "" {
		os.RemoveAll(evt.scratchDir)
	}

	reason := ""
	if evt.err != nil {
		reason = evt.err.Error()
	}
	if err := c.metas.Write(ctx, evt.sourceHash, metastore.Meta{FailedLastBake: true, LastBakeErrors: reason}); err != nil {
		logger.Errorf("bake: write failure meta for %s: %v", evt.sourceHash, err)
	}

	c.mu.Lock()
	delete(c.pendingBakes, evt.sourceHash)
	c.mu.Unlock()
	c.stats.BakesFailed.Inc()
	c.stats.BakesInFlight.Dec()
}

func (c *Coordinator) applyAbort(evt completionEvent) {
	c.mu.Lock()
	delete(c.pendingBakes, evt.sourceHash)
	c.mu.Unlock()
	c.stats.BakesInFlight.Dec()
}

// SetBakingEnabled implements spec.md §4.4's bake-enable policy for each
// path in paths whose mapping exists and is bakeable.
func (c *Coordinator) SetBakingEnabled(ctx context.Context, paths []string, enabled bool) error {
	for _, p := range paths {
		hash, ok := c.mappings.Get(p)
		if !ok {
			continue
		}
		k := c.classify(p, c.metas.HasMeta(hash))
		if k == kindNotBakeable {
			continue
		}

		bakedPath := assetpath.HiddenPrefix + hash.String() + "/" + k.sentinel()
		current, hasBaked := c.mappings.Get(bakedPath)

		if enabled {
			if hasBaked && current == hash {
				if err := c.mappings.DeleteMany(ctx, []string{bakedPath}); err != nil {
					return err
				}
				c.MaybeBake(ctx, p, hash)
			}
			continue
		}

		if hasBaked && current == hash {
			continue // already disabled
		}
		if err := c.mappings.DeleteMany(ctx, []string{assetpath.HiddenPrefix + hash.String() + "/"}); err != nil {
			return err
		}
		if err := c.mappings.Set(ctx, bakedPath, hash); err != nil {
			return err
		}
	}
	return nil
}

// Bakeable reports whether path/hash is subject to the bake pipeline and,
// if so, the sentinel filename its baked output is published under.
func (c *Coordinator) Bakeable(path string, hash assethash.Hash) (sentinel string, ok bool) {
	k := c.classify(path, c.metas.HasMeta(hash))
	if k == kindNotBakeable {
		return "", false
	}
	return k.sentinel(), true
}

// Pending reports whether a bake is currently tracked for hash, and
// whether it is actively running (as opposed to merely queued).
func (c *Coordinator) Pending(hash assethash.Hash) (pending, running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.pendingBakes[hash]
	if !ok {
		return false, false
	}
	return true, t.State == StateRunning
}

// Shutdown aborts every pending task and waits for each to acknowledge,
// then restores the compression toggles captured at construction.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	tasks := make([]*Task, 0, len(c.pendingBakes))
	for _, t := range c.pendingBakes {
		tasks = append(tasks, t)
	}
	c.mu.Unlock()

	for _, t := range tasks {
		close(t.abort)
	}

	c.pool.StopWait()
	c.sink.Close()
	<-c.done
	c.toggles.Restore()
}
