// Package main provides the entry point for the discover CLI tool.
package main

import "github.com/FairHead/eventourismo-discover/cmd/discover/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
