// Package inmemory implements storagedriver.StorageDriver backed by a
// process-local map. Intended solely for tests, mirroring the teacher's
// registry/storage/driver/inmemory driver's purpose, but built on a flat
// key->bytes map rather than a full directory tree: this server's on-disk
// footprint is two flat namespaces (files/<hash> and map.json), not an
// arbitrarily nested filesystem.
package inmemory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/hearthworld/assetd/storagedriver"
)

const driverName = "inmemory"

// Driver is a storagedriver.StorageDriver backed by an in-process map.
type Driver struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ storagedriver.StorageDriver = (*Driver)(nil)

// New constructs an empty Driver.
func New() *Driver {
	return &Driver{files: make(map[string][]byte)}
}

func (d *Driver) Name() string { return driverName }

func (d *Driver) GetContent(ctx context.Context, path string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	content, ok := d.files[path]
	if !ok {
		return nil, storagedriver.PathNotFoundError{Path: path}
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

func (d *Driver) PutContent(ctx context.Context, path string, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored := make([]byte, len(content))
	copy(stored, content)
	d.files[path] = stored
	return nil
}

func (d *Driver) Reader(ctx context.Context, path string, offset int64) (io.ReadCloser, error) {
	content, err := d.GetContent(ctx, path)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > int64(len(content)) {
		return nil, storagedriver.InvalidOffsetError{Path: path, Offset: offset}
	}
	return io.NopCloser(bytes.NewReader(content[offset:])), nil
}

func (d *Driver) Writer(ctx context.Context, path string, append bool) (storagedriver.FileWriter, error) {
	var initial []byte
	if append {
		existing, err := d.GetContent(ctx, path)
		if err == nil {
			initial = existing
		}
	}
	return &fileWriter{driver: d, path: path, buf: append2(initial)}, nil
}

func append2(b []byte) *bytes.Buffer {
	buf := new(bytes.Buffer)
	buf.Write(b)
	return buf
}

func (d *Driver) Stat(ctx context.Context, path string) (storagedriver.FileInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if content, ok := d.files[path]; ok {
		return fileInfo{path: path, size: int64(len(content))}, nil
	}

	prefix := path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	for k := range d.files {
		if strings.HasPrefix(k, prefix) {
			return fileInfo{path: path, isDir: true}, nil
		}
	}
	return nil, storagedriver.PathNotFoundError{Path: path}
}

func (d *Driver) List(ctx context.Context, path string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	prefix := path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	seen := make(map[string]struct{})
	for k := range d.files {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			seen[prefix+rest] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (d *Driver) Move(ctx context.Context, sourcePath, destPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	content, ok := d.files[sourcePath]
	if !ok {
		return storagedriver.PathNotFoundError{Path: sourcePath}
	}
	d.files[destPath] = content
	delete(d.files, sourcePath)
	return nil
}

func (d *Driver) Delete(ctx context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefix := path + "/"
	deleted := false
	if _, ok := d.files[path]; ok {
		delete(d.files, path)
		deleted = true
	}
	for k := range d.files {
		if strings.HasPrefix(k, prefix) {
			delete(d.files, k)
			deleted = true
		}
	}
	_ = deleted
	return nil
}

type fileInfo struct {
	path  string
	size  int64
	isDir bool
}

func (fi fileInfo) Path() string { return fi.path }
func (fi fileInfo) Size() int64  { return fi.size }
func (fi fileInfo) IsDir() bool  { return fi.isDir }

type fileWriter struct {
	driver    *Driver
	path      string
	buf       *bytes.Buffer
	closed    bool
	committed bool
	cancelled bool
}

func (fw *fileWriter) Write(p []byte) (int, error) {
	if fw.closed || fw.committed || fw.cancelled {
		return 0, storagedriver.InvalidPathError{Path: fw.path}
	}
	return fw.buf.Write(p)
}

func (fw *fileWriter) Size() int64 { return int64(fw.buf.Len()) }

func (fw *fileWriter) Close() error {
	fw.closed = true
	return nil
}

func (fw *fileWriter) Cancel(ctx context.Context) error {
	fw.cancelled = true
	return nil
}

func (fw *fileWriter) Commit(ctx context.Context) error {
	if fw.committed || fw.cancelled {
		return storagedriver.InvalidPathError{Path: fw.path}
	}
	fw.committed = true
	return fw.driver.PutContent(ctx, fw.path, fw.buf.Bytes())
}
