package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Listen.HTTP) == "" {
		return nil, fmt.Errorf("listen.http must not be empty")
	}
	httpHost, err := splitAddr("listen.http", cfg.Listen.HTTP)
	if err != nil {
		return nil, err
	}
	if grpcAddr := strings.TrimSpace(cfg.Listen.GRPC); grpcAddr != "" {
		if _, err := splitAddr("listen.grpc", grpcAddr); err != nil {
			return nil, err
		}
		if grpcAddr == strings.TrimSpace(cfg.Listen.HTTP) {
			return nil, fmt.Errorf("listen.grpc must differ from listen.http")
		}
	}
	if cfg.Listen.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("listen.max_body_bytes must be > 0")
	}
	if cfg.Bridge.ReplyTimeoutMS < 0 {
		return nil, fmt.Errorf("bridge.reply_timeout_ms must be >= 0")
	}
	if cfg.Frame.TickMS <= 0 {
		return nil, fmt.Errorf("frame.tick_ms must be > 0")
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.UI.Mode))
	if mode != UIModeTUI && mode != UIModeHeadless {
		return nil, fmt.Errorf("ui.mode must be one of: tui, headless")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	if !isLoopback(httpHost) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("listen.http %q is reachable beyond loopback; the endpoint has no authentication", cfg.Listen.HTTP)})
	}
	if cfg.Frame.TickMS > 1000 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("frame.tick_ms=%d drains remote commands less than once per second", cfg.Frame.TickMS)})
	}
	if cfg.Bridge.ReplyTimeoutMS == 0 {
		warnings = append(warnings, Warning{Message: "bridge.reply_timeout_ms=0 lets remote callers wait indefinitely"})
	}

	return warnings, nil
}

// ParseLevel maps log.level onto a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
}

func splitAddr(key string, addr string) (string, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	if port == "" {
		return "", fmt.Errorf("%s: missing port", key)
	}
	return host, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
