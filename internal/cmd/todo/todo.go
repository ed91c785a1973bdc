// Package todo parses todo server flags and launches the service.
package todo

import (
	"context"
	"flag"
	"strconv"
	"time"

	entrypoint "github.com/louisbranch/todolist/internal/platform/cmd"
	server "github.com/louisbranch/todolist/internal/services/todo/app"
	"github.com/louisbranch/todolist/internal/services/todo/session"
)

// Config holds todo command configuration.
type Config struct {
	HTTPAddr            string `env:"TODOLIST_HTTP_ADDR" envDefault:":8080" toml:"http_addr"`
	DBPath              string `env:"TODOLIST_DB_PATH" envDefault:"data/todo.db" toml:"db_path"`
	TrustForwardedProto bool   `env:"TODOLIST_TRUST_FORWARDED_PROTO" toml:"trust_forwarded_proto"`
	ConfigPath          string `env:"TODOLIST_CONFIG" toml:"-"`
}

// ParseConfig parses environment, the optional config file and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.ConfigPath, "config", "", "Path to a TOML config file")
	fs.Func("http-addr", "HTTP listen address", func(value string) error {
		cfg.HTTPAddr = value
		return nil
	})
	fs.Func("db-path", "Path to the todo SQLite database", func(value string) error {
		cfg.DBPath = value
		return nil
	})
	fs.BoolFunc("trust-forwarded-proto", "Trust X-Forwarded-Proto when deciding cookie security", func(value string) error {
		trust, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		cfg.TrustForwardedProto = trust
		return nil
	})
	// TODOLIST_CONFIG has to be known before the file overlay runs.
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := entrypoint.ParseConfigFromArgs(&cfg, cfg.ConfigPath, fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the todo HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTodo, func(ctx context.Context) error {
		sessionCfg, err := session.LoadConfigFromEnv(time.Now)
		if err != nil {
			return err
		}
		srv, err := server.NewServer(ctx, server.Config{
			HTTPAddr:            cfg.HTTPAddr,
			DBPath:              cfg.DBPath,
			TrustForwardedProto: cfg.TrustForwardedProto,
			Session:             sessionCfg,
		})
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx)
	})
}
