package session

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/todolist/internal/platform/errors"
	"github.com/louisbranch/todolist/internal/platform/requestctx"
	"github.com/louisbranch/todolist/internal/services/todo/platform/sessioncookie"
)

const signingMethod = "EdDSA"

// sessionClaims is the JWT payload.
type sessionClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Verifier validates session tokens against the configured public key.
type Verifier struct {
	cfg Config
}

// NewVerifier creates a verifier for cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.PublicKey) != ed25519.PublicKeySize {
		return nil, errors.New("session verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{cfg: cfg}, nil
}

// Verify checks the token signature and claims and returns its identity.
func (v *Verifier) Verify(token string) (requestctx.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return requestctx.Identity{}, apperrors.E(apperrors.KindUnauthorized, "session token is required")
	}
	if v == nil {
		return requestctx.Identity{}, errors.New("session verifier is not configured")
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.PublicKey, nil
	},
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return requestctx.Identity{}, mapJWTError(err)
	}

	if parsed.Issuer != v.cfg.Issuer {
		return requestctx.Identity{}, apperrors.E(apperrors.KindUnauthorized, "session issuer mismatch")
	}
	if !audienceContains(parsed.Audience, v.cfg.Audience) {
		return requestctx.Identity{}, apperrors.E(apperrors.KindUnauthorized, "session audience mismatch")
	}
	if parsed.ExpiresAt == nil {
		return requestctx.Identity{}, apperrors.E(apperrors.KindUnauthorized, "session exp is required")
	}
	now := v.cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.After(now) {
		return requestctx.Identity{}, apperrors.E(apperrors.KindUnauthorized, "session is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return requestctx.Identity{}, apperrors.E(apperrors.KindUnauthorized, "session not active yet")
	}

	identity := requestctx.Identity{
		ID:    strings.TrimSpace(parsed.Subject),
		Name:  strings.TrimSpace(parsed.Name),
		Email: strings.TrimSpace(parsed.Email),
	}
	if !identity.Authenticated() {
		return requestctx.Identity{}, apperrors.E(apperrors.KindUnauthorized, "session subject is required")
	}
	return identity, nil
}

// Resolve returns the identity carried by the request, reading the bearer
// header before the session cookie. Invalid tokens resolve to nothing.
func (v *Verifier) Resolve(r *http.Request) (requestctx.Identity, bool) {
	token, ok := TokenFromRequest(r)
	if !ok {
		return requestctx.Identity{}, false
	}
	identity, err := v.Verify(token)
	if err != nil {
		return requestctx.Identity{}, false
	}
	return identity, true
}

// TokenFromRequest extracts the raw session token without verifying it.
func TokenFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), true
		}
	}
	return sessioncookie.Read(r)
}

// Issuer mints session tokens with the configured private key.
type Issuer struct {
	cfg Config
}

// NewIssuer creates an issuer for cfg.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.PrivateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("session issuer is not configured")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{cfg: cfg}, nil
}

// Issue signs a token for identity and returns it with its expiry.
func (i *Issuer) Issue(identity requestctx.Identity) (string, time.Time, error) {
	if i == nil {
		return "", time.Time{}, errors.New("session issuer is not configured")
	}
	if !identity.Authenticated() {
		return "", time.Time{}, errors.New("user id is required")
	}
	now := i.cfg.Now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.cfg.TTL)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   strings.TrimSpace(identity.ID),
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Name:  strings.TrimSpace(identity.Name),
		Email: strings.TrimSpace(identity.Email),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(i.cfg.PrivateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.Wrap(apperrors.KindUnauthorized, "session signature is invalid", err)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.Wrap(apperrors.KindUnauthorized, "session alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.KindUnauthorized, "session is invalid", err)
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}
