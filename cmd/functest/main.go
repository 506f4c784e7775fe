// Package main implements functest, the command line companion of the
// functional test kit. It inspects and clears the fixture dump cache,
// computes cache keys and manages the content repository blob store.
package main

import (
	"os"

	"github.com/pterm/pterm"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
