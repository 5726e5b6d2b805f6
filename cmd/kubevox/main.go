// Kubevox is a voice/text assistant that turns natural-language utterances
// into Kubernetes cluster operations, using a locally hosted llama.cpp
// server to pick and parameterize the calls.
//
// Usage:
//
//	kubevox ask "how many pods are running?"
//	kubevox listen < audio-stream
//	kubevox serve
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
