package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/matheus3301/chatsync/internal/tui"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "client profile (overrides config default)")
	configFlag := flag.String("config", session.ConfigPath(), "path to config.toml")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Resolve(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}

	profile := session.ResolveProfile(*profileFlag, cfg)
	if err := session.ValidateProfile(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := session.EnsureDir(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Path:      session.ClientLogPath(profile, "chattui"),
		Component: "chattui",
		Debug:     *debugFlag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open log: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	chat, err := app.New(app.Options{
		BaseURL:   cfg.BaseURL,
		TokenPath: session.TokenPath(profile),
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	chat.Start()
	defer chat.Close()

	configPath := *configFlag
	t := tui.NewApp(chat, tui.Options{
		Profile: profile,
		Theme:   ui.ThemeByName(cfg.Theme),
		SaveTheme: func(name string) error {
			// Only the theme key changes; environment overrides are not persisted.
			fileCfg, err := config.Load(configPath)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if fileCfg == nil {
				fileCfg = config.Default()
			}
			fileCfg.Theme = name
			return config.Save(configPath, fileCfg)
		},
		Logger: logger.Named("tui"),
	})
	if err := t.Run(); err != nil {
		logger.Error("tui exited with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
