// Package version records the asset server's build identity, adapted
// from the teacher's version package: a module path and a version string
// a linker flag can override at build time.
package version

import (
	"fmt"
	"os"
)

var mainpkg = "github.com/hearthworld/assetd"

// version is replaced by -ldflags at release build time; absent that, it
// marks the binary as a non-release build.
var version = "v0.1.0+unknown"

var revision = ""

// Package returns the module path the running binary was built from.
func Package() string { return mainpkg }

// Version returns the module version the running binary was built from.
func Version() string { return version }

// Revision returns the VCS revision the program was built at, if known.
func Revision() string { return revision }

// Print writes a single "<cmd> <project> <version>" line to stdout.
func Print() {
	fmt.Fprintln(os.Stdout, os.Args[0], Package(), Version())
}
