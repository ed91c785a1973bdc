// Package config loads service configuration from the environment and
// optional TOML files.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseFile overlays values decoded from a TOML file onto target.
//
// Keys missing from the file leave target untouched, so callers load env
// defaults first and then apply the file. An empty path is a no-op.
func ParseFile(path string, target any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	meta, err := toml.DecodeFile(path, target)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Exitf writes "<program>: <message>" to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	writeFatal(stderr, filepath.Base(os.Args[0]), format, args...)
	exit(1)
}

func writeFatal(w io.Writer, program string, format string, args ...any) {
	message := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintf(w, "%s: %s\n", program, message)
}
