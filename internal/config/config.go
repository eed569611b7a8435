package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config represents ~/.chatsync/config.toml. Every key can be overridden by
// a CHATSYNC_* environment variable (optionally loaded from a .env file).
type Config struct {
	// DefaultProfile names the client profile used when --profile is absent.
	DefaultProfile string `toml:"default_profile" envconfig:"DEFAULT_PROFILE"`
	// BaseURL is where clients reach the service and hub, e.g. http://localhost:5001.
	BaseURL string `toml:"base_url" envconfig:"BASE_URL"`
	// Theme is the client color theme: "dark" or "light".
	Theme string `toml:"theme" envconfig:"THEME"`

	Server Server `toml:"server" ignored:"true"`
}

// Server holds the settings of the chatd daemon.
type Server struct {
	Port           int      `toml:"port" envconfig:"PORT"`
	AllowedOrigins []string `toml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	DataDir        string   `toml:"data_dir" envconfig:"DATA_DIR"`
	JWTSecret      string   `toml:"jwt_secret" envconfig:"JWT_SECRET"`
	GRPCAddr       string   `toml:"grpc_addr" envconfig:"GRPC_ADDR"`
	RedisURL       string   `toml:"redis_url" envconfig:"REDIS_URL"`
	Production     bool     `toml:"production" envconfig:"PRODUCTION"`
	StaticDir      string   `toml:"static_dir" envconfig:"STATIC_DIR"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		BaseURL:        "http://localhost:5001",
		Theme:          "dark",
		Server: Server{
			Port:           5001,
			AllowedOrigins: []string{"http://localhost:5173"},
			GRPCAddr:       "127.0.0.1:5002",
		},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds the effective configuration: defaults, then the file at path
// if it exists, then the .env file in the working directory, then CHATSYNC_*
// environment variables.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := envconfig.Process("chatsync", cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process("chatsync", &cfg.Server); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
