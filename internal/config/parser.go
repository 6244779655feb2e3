package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Parse decodes TOML content over base and validates the result. Keys the
// Config does not know are reported as warnings, not errors.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	warnings := make([]Warning, 0)

	if strings.TrimSpace(content) != "" {
		meta, err := toml.Decode(content, &cfg)
		if err != nil {
			var perr toml.ParseError
			if errors.As(err, &perr) {
				return Config{}, nil, fmt.Errorf("line %d: %s", perr.Position.Line, perr.Message)
			}
			return Config{}, nil, err
		}
		for _, key := range meta.Undecoded() {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("unknown config key %q ignored", key.String())})
		}
	}

	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validated...), nil
}
