package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.chatsync.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatsync")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// ProfileDir returns the directory of a client profile.
func ProfileDir(profile string) string {
	return filepath.Join(BaseDir(), "profiles", profile)
}

// TokenPath returns where a profile keeps its session token between runs.
func TokenPath(profile string) string {
	return filepath.Join(ProfileDir(profile), "session.token")
}

// ClientLogPath returns the log file of a client binary running a profile.
func ClientLogPath(profile, component string) string {
	return filepath.Join(ProfileDir(profile), "logs", component+".log")
}

// ServerDataDir returns the default data directory of chatd.
func ServerDataDir() string {
	return filepath.Join(BaseDir(), "server")
}

// ServerDBPath returns the service database inside a data directory.
func ServerDBPath(dataDir string) string {
	return filepath.Join(dataDir, "chatsync.db")
}

// ServerLogPath returns the chatd log file inside a data directory.
func ServerLogPath(dataDir string) string {
	return filepath.Join(dataDir, "logs", "chatd.log")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(profile string) error {
	dirs := []string{
		ProfileDir(profile),
		filepath.Join(ProfileDir(profile), "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
