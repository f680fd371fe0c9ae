// Package config parses typed configuration structs from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from environment variables according to its `env` and
// `envDefault` struct tags. Semantic validation beyond parsing belongs to the
// caller; internal/config layers it on top of this.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
