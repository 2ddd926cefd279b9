// Command xcrap runs declarative extraction pipelines against web pages
// and local documents.
package main

import (
	"os"

	"github.com/jmylchreest/xcrap/cmd/xcrap/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
