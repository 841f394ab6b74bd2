// Command verso manages a spaced repetition card collection from the
// terminal: adding cards, reviewing due ones, and training scheduling
// weights from the accumulated review history.
package main

import "os"

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
