package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsHaveNoWarnings(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty http", mutate: func(c *Config) { c.Listen.HTTP = " " }, wantErr: "listen.http must not be empty"},
		{name: "http without port", mutate: func(c *Config) { c.Listen.HTTP = "127.0.0.1" }, wantErr: "listen.http"},
		{name: "bad grpc", mutate: func(c *Config) { c.Listen.GRPC = "nowhere" }, wantErr: "listen.grpc"},
		{name: "same endpoints", mutate: func(c *Config) { c.Listen.GRPC = c.Listen.HTTP }, wantErr: "must differ"},
		{name: "zero body cap", mutate: func(c *Config) { c.Listen.MaxBodyBytes = 0 }, wantErr: "max_body_bytes"},
		{name: "negative timeout", mutate: func(c *Config) { c.Bridge.ReplyTimeoutMS = -1 }, wantErr: "reply_timeout_ms"},
		{name: "zero tick", mutate: func(c *Config) { c.Frame.TickMS = 0 }, wantErr: "frame.tick_ms"},
		{name: "unknown mode", mutate: func(c *Config) { c.UI.Mode = "vr" }, wantErr: "ui.mode"},
		{name: "unknown level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Listen.HTTP = "0.0.0.0:3039"
	cfg.Frame.TickMS = 2000
	cfg.Bridge.ReplyTimeoutMS = 0

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	require.Contains(t, warnings[0].Message, "beyond loopback")
	require.Contains(t, warnings[1].Message, "frame.tick_ms=2000")
	require.Contains(t, warnings[2].Message, "indefinitely")

	cfg = Default()
	cfg.Listen.HTTP = "localhost:3039"
	cfg.Listen.GRPC = ""
	warnings, err = Validate(cfg)
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)

	level, err = ParseLevel("warning")
	require.NoError(t, err)
	require.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("trace")
	require.Error(t, err)
}
