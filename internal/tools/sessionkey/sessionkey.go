// Package sessionkey generates the Ed25519 key pair that signs session tokens.
package sessionkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/louisbranch/todolist/internal/services/todo/session"
)

// Run generates a session key pair and writes shell exports.
func Run(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate session key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export TODOLIST_SESSION_PRIVATE_KEY=%s\n", session.EncodeKey(privateKey)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "export TODOLIST_SESSION_PUBLIC_KEY=%s\n", session.EncodeKey(publicKey))
	return err
}
