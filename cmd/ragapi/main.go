// Command ragapi is the entry point for the RAG question-answering service.
// It provides a CLI interface (via Cobra) and an HTTP server that streams
// retrieval-augmented answers over plain text.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/rag-api-go/cmd/ragapi/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
