// Command ddsctl spins up a single DomainParticipant for manually exercising
// the engine from a terminal: publish a string on a topic, or subscribe and
// print whatever arrives.
package main

import (
	"fmt"
	"os"

	"github.com/dustdds-go/dds/cmd/ddsctl/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
