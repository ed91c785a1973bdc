// Package session verifies and issues the signed session tokens that identify
// the caller of every todo operation.
package session

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultIssuer   = "todolist"
	DefaultAudience = "todolist-web"
	DefaultTTL      = 24 * time.Hour
)

// sessionEnv holds raw env values before post-parse validation.
type sessionEnv struct {
	Issuer     string        `env:"TODOLIST_SESSION_ISSUER" envDefault:"todolist"`
	Audience   string        `env:"TODOLIST_SESSION_AUDIENCE" envDefault:"todolist-web"`
	PublicKey  string        `env:"TODOLIST_SESSION_PUBLIC_KEY"`
	PrivateKey string        `env:"TODOLIST_SESSION_PRIVATE_KEY"`
	TTL        time.Duration `env:"TODOLIST_SESSION_TTL" envDefault:"24h"`
}

// Config defines how session tokens are verified and minted.
type Config struct {
	Issuer     string
	Audience   string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	TTL        time.Duration
	Now        func() time.Time
}

// LoadConfigFromEnv reads session configuration. The public key is always
// required; the private key is optional and, when present, must pair with it.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw sessionEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse session env: %w", err)
	}
	cfg := Config{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		TTL:      raw.TTL,
		Now:      now,
	}
	if cfg.Issuer == "" {
		return Config{}, errors.New("TODOLIST_SESSION_ISSUER is required")
	}
	if cfg.Audience == "" {
		return Config{}, errors.New("TODOLIST_SESSION_AUDIENCE is required")
	}
	if cfg.TTL <= 0 {
		return Config{}, errors.New("TODOLIST_SESSION_TTL must be positive")
	}

	publicKey := strings.TrimSpace(raw.PublicKey)
	if publicKey == "" {
		return Config{}, errors.New("TODOLIST_SESSION_PUBLIC_KEY is required")
	}
	keyBytes, err := DecodeKey(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode session public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("session public key must be %d bytes", ed25519.PublicKeySize)
	}
	cfg.PublicKey = ed25519.PublicKey(keyBytes)

	if privateKey := strings.TrimSpace(raw.PrivateKey); privateKey != "" {
		keyBytes, err := DecodeKey(privateKey)
		if err != nil {
			return Config{}, fmt.Errorf("decode session private key: %w", err)
		}
		if len(keyBytes) != ed25519.PrivateKeySize {
			return Config{}, fmt.Errorf("session private key must be %d bytes", ed25519.PrivateKeySize)
		}
		cfg.PrivateKey = ed25519.PrivateKey(keyBytes)
		if !cfg.PublicKey.Equal(cfg.PrivateKey.Public()) {
			return Config{}, errors.New("session private key does not match public key")
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg, nil
}

// EncodeKey renders key material the way LoadConfigFromEnv expects it.
func EncodeKey(key []byte) string {
	return base64.RawStdEncoding.EncodeToString(key)
}

// DecodeKey accepts padded or unpadded standard base64.
func DecodeKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
