package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/server"
	"github.com/matheus3301/chatsync/internal/session"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", session.ConfigPath(), "path to config.toml")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Resolve(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		server.Module(server.Params{
			Server:  cfg.Server,
			Console: true,
			Debug:   *debugFlag,
		}),
		fx.NopLogger,
	)

	app.Run()
}
