// Package sessiontoken mints signed session tokens for local use.
package sessiontoken

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/louisbranch/todolist/internal/platform/requestctx"
	"github.com/louisbranch/todolist/internal/services/todo/session"
)

// Config holds the identity and lifetime of the minted token.
type Config struct {
	Subject string
	Name    string
	Email   string
	TTL     time.Duration
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.Subject, "sub", "", "user id carried as the token subject (required)")
	fs.StringVar(&cfg.Name, "name", "", "display name")
	fs.StringVar(&cfg.Email, "email", "", "email address")
	fs.DurationVar(&cfg.TTL, "ttl", 0, "token lifetime (default: TODOLIST_SESSION_TTL)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return Config{}, errors.New("-sub is required")
	}
	if cfg.TTL < 0 {
		return Config{}, errors.New("-ttl must not be negative")
	}
	return cfg, nil
}

// Run signs a token for cfg and writes it with its expiry.
func Run(cfg Config, sessionCfg session.Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}
	if cfg.TTL > 0 {
		sessionCfg.TTL = cfg.TTL
	}
	issuer, err := session.NewIssuer(sessionCfg)
	if err != nil {
		return fmt.Errorf("set TODOLIST_SESSION_PRIVATE_KEY (see session-key): %w", err)
	}
	token, expiresAt, err := issuer.Issue(requestctx.Identity{
		ID:    cfg.Subject,
		Name:  cfg.Name,
		Email: cfg.Email,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n# expires %s\n", token, expiresAt.Format(time.RFC3339))
	return err
}
