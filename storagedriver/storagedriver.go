// Package storagedriver defines the pluggable key/value storage interface
// the BlobStore and MappingStore are built on, grounded on the teacher's
// registry/storage/driver abstraction but pared down to the handful of
// methods this server's two on-disk structures (hash-named blob files and
// a single map.json) actually need.
package storagedriver

import (
	"context"
	"fmt"
	"io"
)

// StorageDriver defines methods that a storage driver must implement for a
// filesystem-like key/value object store.
type StorageDriver interface {
	// Name returns the human-readable name of the driver.
	Name() string

	// GetContent retrieves the content stored at path as a []byte. For
	// small objects only.
	GetContent(ctx context.Context, path string) ([]byte, error)

	// PutContent stores content at path, atomically from the caller's
	// perspective: implementations must never expose a partial write
	// under its final name.
	PutContent(ctx context.Context, path string, content []byte) error

	// Reader returns an io.ReadCloser for the content at path, starting
	// at offset.
	Reader(ctx context.Context, path string, offset int64) (io.ReadCloser, error)

	// Writer returns a FileWriter for path. If append is false, any
	// existing content at path is truncated.
	Writer(ctx context.Context, path string, append bool) (FileWriter, error)

	// Stat returns the FileInfo for path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the direct descendants of path.
	List(ctx context.Context, path string) ([]string, error)

	// Move moves the object at sourcePath to destPath, removing the
	// original.
	Move(ctx context.Context, sourcePath, destPath string) error

	// Delete recursively deletes path and its subpaths. Deleting a path
	// that does not exist is not an error.
	Delete(ctx context.Context, path string) error
}

// FileWriter is a handle to an in-progress write. Writes are not visible
// under their final name until Commit succeeds.
type FileWriter interface {
	io.WriteCloser

	// Size returns the number of bytes written so far.
	Size() int64

	// Cancel discards the writer's progress and any partial file.
	Cancel(ctx context.Context) error

	// Commit flushes the writer's progress and makes it visible.
	Commit(ctx context.Context) error
}

// FileInfo describes a stored object.
type FileInfo interface {
	Path() string
	Size() int64
	IsDir() bool
}

// PathNotFoundError is returned when operating on a nonexistent path.
type PathNotFoundError struct {
	Path string
}

func (e PathNotFoundError) Error() string {
	return fmt.Sprintf("storagedriver: path not found: %s", e.Path)
}

// InvalidPathError is returned when the provided path is malformed.
type InvalidPathError struct {
	Path string
}

func (e InvalidPathError) Error() string {
	return fmt.Sprintf("storagedriver: invalid path: %s", e.Path)
}

// InvalidOffsetError is returned when attempting to read or write from an
// invalid offset.
type InvalidOffsetError struct {
	Path   string
	Offset int64
}

func (e InvalidOffsetError) Error() string {
	return fmt.Sprintf("storagedriver: invalid offset %d for path %s", e.Offset, e.Path)
}

// IsPathNotFound reports whether err indicates a missing path.
func IsPathNotFound(err error) bool {
	_, ok := err.(PathNotFoundError)
	return ok
}
