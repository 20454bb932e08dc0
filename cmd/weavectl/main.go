// Command weavectl is the entry point for the document vector store access
// layer. It provides a CLI interface (via Cobra) and an optional HTTP server
// exposing the same operations over REST.
package main

import (
	"fmt"
	"os"

	"github.com/bolajil/genai-knowledge-assistant-sub002/cmd/weavectl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
