// Package main mints a session token for the identity given on the command line.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/louisbranch/todolist/internal/platform/cmd"
	"github.com/louisbranch/todolist/internal/platform/config"
	"github.com/louisbranch/todolist/internal/services/todo/session"
	"github.com/louisbranch/todolist/internal/tools/sessiontoken"
)

func main() {
	cfg, err := sessiontoken.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	err = cmd.RunWithTelemetry(context.Background(), cmd.ServiceSessionToken, func(context.Context) error {
		sessionCfg, err := session.LoadConfigFromEnv(time.Now)
		if err != nil {
			return err
		}
		return sessiontoken.Run(cfg, sessionCfg, os.Stdout)
	})
	if err != nil {
		config.Exitf("mint session token: %v", err)
	}
}
