package sessionkey

import (
	"bytes"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/louisbranch/todolist/internal/services/todo/session"
)

func TestRunRequiresOutput(t *testing.T) {
	if err := Run(nil, bytes.NewReader([]byte{1})); err == nil {
		t.Fatal("expected error when output is nil")
	}
}

func TestRunWritesMatchingKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader(bytes.Repeat([]byte{1}, 64))
	if err := Run(buf, reader); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	private := strings.TrimPrefix(lines[0], "export TODOLIST_SESSION_PRIVATE_KEY=")
	public := strings.TrimPrefix(lines[1], "export TODOLIST_SESSION_PUBLIC_KEY=")
	if private == lines[0] || public == lines[1] {
		t.Fatalf("unexpected output format: %q", buf.String())
	}

	privateBytes, err := session.DecodeKey(private)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	publicBytes, err := session.DecodeKey(public)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(privateBytes) != ed25519.PrivateKeySize {
		t.Fatalf("expected private key length %d, got %d", ed25519.PrivateKeySize, len(privateBytes))
	}
	if !ed25519.PublicKey(publicBytes).Equal(ed25519.PrivateKey(privateBytes).Public()) {
		t.Fatal("public key does not pair with private key")
	}
}

func TestRunShortEntropy(t *testing.T) {
	if err := Run(&bytes.Buffer{}, bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatal("expected error when entropy runs out")
	}
}
