package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Option adjusts how Load reads variables.
type Option func(*env.Options)

// WithEnvironment reads from vars instead of the process environment.
// Variables missing from vars fall back to their envDefault.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) {
		if vars == nil {
			vars = map[string]string{}
		}
		o.Environment = vars
	}
}

// WithPrefix prepends prefix to every variable name in cfg's tags.
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// Load fills cfg, a pointer to a struct with `env` tags:
//
//	type Config struct {
//	    HTTPPort   int    `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
//	    BackendURL string `env:"BACKEND_URL" envDefault:"http://localhost:8000"`
//	}
func Load(cfg any, opts ...Option) error {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
