package dispatch

import (
	"io"

	"github.com/hearthworld/assetd/storagedriver"
)

// errInvalidRange marks a requested byte range as out of bounds.
type errInvalidRange struct{}

func (errInvalidRange) Error() string { return "dispatch: invalid byte range" }

func isInvalidRange(err error) bool {
	_, ok := err.(errInvalidRange)
	return ok
}

func isNotFound(err error) bool {
	return storagedriver.IsPathNotFound(err)
}

// skip discards n bytes from r, since BlobStore.Open returns a plain
// io.ReadCloser rather than an io.Seeker.
func skip(r io.Reader, n int64) (int64, error) {
	return io.CopyN(io.Discard, r, n)
}

func readFull(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return n, nil
	}
	return n, err
}
