// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package reader is a terminal host for the viewer.

It mints access tokens from a Lectern server, drives a [viewer.Controller]
from the keyboard and writes every rendered page to a PNG file.

Keys:

	←  PgUp         previous page
	→  PgDn  Space  next page
	Home / End      first / last page
	+ = / -         zoom in / out
	f / Esc         toggle / leave fullscreen
	r               retry after an error
	q  Ctrl-C       quit
*/
package reader

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"

	"github.com/taibuivan/lectern/internal/viewer"
)

// Config holds the reader settings. Viewer knobs use the VIEWER_ prefix,
// for example VIEWER_MAX_ZOOM.
type Config struct {
	ServerURL  string `env:"READER_SERVER_URL"  envDefault:"http://localhost:8080"`
	ResourceID int64  `env:"READER_RESOURCE_ID,required"`
	Name       string `env:"READER_NAME"        envDefault:"document"`
	OutputDir  string `env:"READER_OUTPUT"      envDefault:"./pages"`
	Debug      bool   `env:"READER_DEBUG"       envDefault:"false"`

	Viewer viewer.Options `envPrefix:"VIEWER_"`
}

// LoadConfig parses the environment into a [Config].
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("reader: failed to parse environment variables: %w", err)
	}

	if cfg.ResourceID <= 0 {
		return nil, fmt.Errorf("reader: READER_RESOURCE_ID must be positive")
	}

	parsed, err := url.Parse(cfg.ServerURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("reader: READER_SERVER_URL %q is not an absolute URL", cfg.ServerURL)
	}

	return cfg, nil
}
