// Command assetd is the process entrypoint for the asset core: the
// content-addressed blob store, mutable path->hash namespace, and bake
// pipeline described in this module's design documents. It does not itself
// speak the platform's datagram transport; see server.Server.Dispatcher
// for the boundary a transport implementation hands decoded frames to.
package main

import (
	"fmt"
	"os"

	"github.com/hearthworld/assetd/server"
)

func main() {
	if err := server.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
