// Command roundctl runs maintenance tasks against a shortlist store:
// schema migration, leaderboard inspection and round exports.
package main

import (
	"fmt"
	"os"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitError)
	}
}
