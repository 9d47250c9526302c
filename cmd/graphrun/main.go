// Command graphrun is a small CLI front-end over the graph package's
// public run/resume/inspect operations, backed by an in-process demo
// graph (see demo.go).
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
