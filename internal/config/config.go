package config

import (
	"os"
	"path/filepath"
	"time"
)

const CurrentVersion = 1

const (
	DefaultProjectCacheTTLSeconds = 30
	DefaultSessionCacheSize       = 20
	DefaultScanWorkers            = 8
)

type Config struct {
	Version int `json:"version"`
	// ClaudeDir overrides the Claude data dir (default ~/.claude).
	ClaudeDir string `json:"claudeDir,omitempty"`
	// PersistentBackup keeps a <session>.ccbak<unix> copy next to every
	// changed session in addition to the temporary backup.
	PersistentBackup       bool         `json:"persistentBackup"`
	ProjectCacheTTLSeconds int          `json:"projectCacheTTLSeconds,omitempty"`
	SessionCacheSize       int          `json:"sessionCacheSize,omitempty"`
	ScanWorkers            int          `json:"scanWorkers,omitempty"`
	Watch                  *bool        `json:"watch,omitempty"`
	Resume                 ResumeConfig `json:"resume"`
}

type ResumeConfig struct {
	ClaudePath string   `json:"claudePath,omitempty"`
	Flags      []string `json:"flags,omitempty"`
	CustomArgs string   `json:"customArgs,omitempty"`
	// Yolo starts resumed sessions with --permission-mode bypassPermissions.
	Yolo bool `json:"yolo,omitempty"`
}

func Default() Config {
	return Config{Version: CurrentVersion}
}

func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ccr", "config.json"), nil
}

func (c Config) ProjectCacheTTL() time.Duration {
	if c.ProjectCacheTTLSeconds <= 0 {
		return DefaultProjectCacheTTLSeconds * time.Second
	}
	return time.Duration(c.ProjectCacheTTLSeconds) * time.Second
}

func (c Config) SessionCacheCapacity() int {
	if c.SessionCacheSize <= 0 {
		return DefaultSessionCacheSize
	}
	return c.SessionCacheSize
}

func (c Config) Workers() int {
	if c.ScanWorkers <= 0 {
		return DefaultScanWorkers
	}
	return c.ScanWorkers
}

// WatchEnabled reports whether file watching is on; it defaults to true.
func (c Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}
