// command dmasim runs DMA transfer scenarios against a simulated i.MX RT
// eDMA controller.
package main

import (
	"fmt"
	"log"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dmasim: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string) error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	cmd := newRootCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}
