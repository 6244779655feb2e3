package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Listen: ListenConfig{
			HTTP:         "127.0.0.1:3039",
			GRPC:         "127.0.0.1:3040",
			MaxBodyBytes: 64 << 20,
		},
		Bridge: BridgeConfig{ReplyTimeoutMS: 30000},
		Frame:  FrameConfig{TickMS: 16},
		UI:     UIConfig{Mode: UIModeTUI},
		Log:    LogConfig{Level: "info"},
	}
}
