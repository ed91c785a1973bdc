// Package main provides a one-shot utility for session key generation.
//
// It emits the key pair the todo server verifies session tokens with.
package main

import (
	"os"

	"github.com/louisbranch/todolist/internal/platform/config"
	"github.com/louisbranch/todolist/internal/tools/sessionkey"
)

func main() {
	if err := sessionkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate session key: %v", err)
	}
}
