// Package config resolves, parses, validates, and defaults molview configuration.
package config

// Config is the fully materialized runtime configuration used by molview.
type Config struct {
	Listen ListenConfig `toml:"listen"`
	Bridge BridgeConfig `toml:"bridge"`
	Frame  FrameConfig  `toml:"frame"`
	UI     UIConfig     `toml:"ui"`
	Log    LogConfig    `toml:"log"`
}

// ListenConfig controls the remote command endpoints.
type ListenConfig struct {
	HTTP         string `toml:"http"`
	GRPC         string `toml:"grpc"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// BridgeConfig bounds how long a remote caller waits on the main loop.
type BridgeConfig struct {
	ReplyTimeoutMS int `toml:"reply_timeout_ms"`
}

// FrameConfig controls the main loop cadence.
type FrameConfig struct {
	TickMS int `toml:"tick_ms"`
}

// UIConfig selects the terminal view or a renderer-free loop.
type UIConfig struct {
	Mode string `toml:"mode"`
}

// LogConfig controls the JSONL log threshold and sink.
type LogConfig struct {
	Level string `toml:"level"`
	// File overrides the XDG state location when set.
	File string `toml:"file"`
}

const (
	UIModeTUI      = "tui"
	UIModeHeadless = "headless"
)

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
