package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type field struct {
	get func(Config) string
	set func(*Config, string) error
}

var fields = map[string]field{
	"claudeDir": {
		get: func(c Config) string { return c.ClaudeDir },
		set: func(c *Config, v string) error { c.ClaudeDir = strings.TrimSpace(v); return nil },
	},
	"persistentBackup": {
		get: func(c Config) string { return strconv.FormatBool(c.PersistentBackup) },
		set: func(c *Config, v string) error { return setBool(&c.PersistentBackup, v) },
	},
	"projectCacheTTLSeconds": {
		get: func(c Config) string { return strconv.Itoa(int(c.ProjectCacheTTL().Seconds())) },
		set: func(c *Config, v string) error { return setPositiveInt(&c.ProjectCacheTTLSeconds, v) },
	},
	"sessionCacheSize": {
		get: func(c Config) string { return strconv.Itoa(c.SessionCacheCapacity()) },
		set: func(c *Config, v string) error { return setPositiveInt(&c.SessionCacheSize, v) },
	},
	"scanWorkers": {
		get: func(c Config) string { return strconv.Itoa(c.Workers()) },
		set: func(c *Config, v string) error { return setPositiveInt(&c.ScanWorkers, v) },
	},
	"watch": {
		get: func(c Config) string { return strconv.FormatBool(c.WatchEnabled()) },
		set: func(c *Config, v string) error {
			var b bool
			if err := setBool(&b, v); err != nil {
				return err
			}
			c.Watch = &b
			return nil
		},
	},
	"resume.claudePath": {
		get: func(c Config) string { return c.Resume.ClaudePath },
		set: func(c *Config, v string) error { c.Resume.ClaudePath = strings.TrimSpace(v); return nil },
	},
	"resume.flags": {
		get: func(c Config) string { return strings.Join(c.Resume.Flags, ",") },
		set: func(c *Config, v string) error { c.Resume.Flags = splitList(v); return nil },
	},
	"resume.customArgs": {
		get: func(c Config) string { return c.Resume.CustomArgs },
		set: func(c *Config, v string) error { c.Resume.CustomArgs = strings.TrimSpace(v); return nil },
	},
	"resume.yolo": {
		get: func(c Config) string { return strconv.FormatBool(c.Resume.Yolo) },
		set: func(c *Config, v string) error { return setBool(&c.Resume.Yolo, v) },
	},
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the effective value of key, defaults applied.
func (c Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	return f.get(c), nil
}

func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := f.set(c, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid boolean %q", v)
	}
	*dst = b
	return nil
}

func setPositiveInt(dst *int, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fmt.Errorf("expected a positive integer, got %q", v)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
