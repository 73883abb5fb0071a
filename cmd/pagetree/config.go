package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// config is read from the environment.
type config struct {
	SigningKey    string `env:"PAGETREE_SIGNING_KEY"`
	EncryptDrafts bool   `env:"PAGETREE_ENCRYPT_DRAFTS"`
	AssetPrefix   string `env:"PAGETREE_ASSET_PREFIX" envDefault:"/pagetree/assets"`
	DraftPrefix   string `env:"PAGETREE_DRAFT_PREFIX" envDefault:"/pagetree/draft"`
	LogLevel      string `env:"PAGETREE_LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"PAGETREE_LOG_FORMAT" envDefault:"text"`
	OTelEndpoint  string `env:"PAGETREE_OTEL_ENDPOINT"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
