package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if OMAJINAI_CONFIG is set
//  3. env (prefix OMAJINAI_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("OMAJINAI_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: OMAJINAI_ADDR, OMAJINAI_CACHE_SIZE, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("OMAJINAI_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "omajinai_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	switch {
	case cfg.Addr == "":
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.BeatmapsPath == "":
		return nil, fmt.Errorf("%w: beatmaps_path must not be empty", ErrInvalidConfig)
	case cfg.CacheSize <= 0:
		return nil, fmt.Errorf("%w: cache_size must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}
