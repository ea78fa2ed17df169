// Package main provides the vocorder CLI.
//
// Usage:
//
//	vocorder [flags] <command> [args]
//
// Commands:
//
//	devices  - list audio devices
//	record   - record a take against a backing track
//	play     - audition a WAV file
//	analyze  - batch-analyze recordings into the cache
//	clip     - analyze one clip and print its curves summary
//	notes    - inspect the note index
//	cache    - inspect or drop cached analysis entries
package main

import (
	"fmt"
	"os"

	"github.com/vocorder/vocorder/cmd/vocorder/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
