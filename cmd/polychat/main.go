// Command polychat is a terminal client for a multi-modal assistant.
//
// Usage:
//
//	polychat [--config path] [--mode chat|image|video] [--provider name] [--feed]
//	polychat init [--force]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
