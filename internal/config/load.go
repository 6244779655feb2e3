package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}
	cfg.UI.Mode = strings.ToLower(strings.TrimSpace(cfg.UI.Mode))

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// ReplyTimeout bounds remote enqueue and reply waits; zero means unbounded.
func (c Config) ReplyTimeout() time.Duration {
	return time.Duration(c.Bridge.ReplyTimeoutMS) * time.Millisecond
}

// TickInterval is the main loop period.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Frame.TickMS) * time.Millisecond
}

// Headless reports whether the main loop runs without a renderer.
func (c Config) Headless() bool {
	return strings.EqualFold(strings.TrimSpace(c.UI.Mode), UIModeHeadless)
}
