// tokenizers is a command line tool to encode and decode text with HuggingFace tokenizers,
// train new ones and convert SentencePiece models.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
