package bake

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// Baker runs an external bake for a single source file, writing whatever
// output files it produces into scratchDir and returning their paths. The
// model and texture bakers are installed separately (see
// Coordinator.textureExts, supplied by the texture baker at startup) since
// each owns a disjoint extension set.
//
// Implementations must respond to abort promptly: once it is closed, Bake
// should return as soon as it can unwind the external tool's state.
type Baker interface {
	Bake(ctx context.Context, sourcePath, localFile, scratchDir string, abort <-chan struct{}) ([]string, error)
	// Extensions returns the lowercase source extensions this baker
	// accepts, used to populate Coordinator.textureExts.
	Extensions() []string
}

// PassthroughBaker copies its input unchanged into scratchDir. It stands
// in for the real FBX/KTX bake tools this server delegates to, useful for
// local development and as the default until a production baker plugin is
// registered.
type PassthroughBaker struct {
	exts []string
}

// NewPassthroughBaker returns a Baker claiming exts that simply republishes
// its input.
func NewPassthroughBaker(exts ...string) *PassthroughBaker {
	return &PassthroughBaker{exts: exts}
}

func (b *PassthroughBaker) Extensions() []string { return b.exts }

func (b *PassthroughBaker) Bake(ctx context.Context, sourcePath, localFile, scratchDir string, abort <-chan struct{}) ([]string, error) {
	select {
	case <-abort:
		return nil, context.Canceled
	default:
	}

	in, err := os.Open(localFile)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	// Distinct from localFile: os.Create truncates before io.Copy reads,
	// so writing to the same path as the input would publish an empty blob.
	outPath := filepath.Join(scratchDir, "baked"+filepath.Ext(localFile))
	out, err := os.Create(outPath)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return nil, err
	}
	return []string{outPath}, nil
}
