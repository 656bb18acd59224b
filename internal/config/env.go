// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds settings that come only from the environment.
type Env struct {
	OddsToken    string   `env:"ODDS_API_TOKEN"`
	DB           string   `env:"TENNISBET_DB"`
	OddsURL      string   `env:"TENNISBET_ODDS_URL"      envDefault:"https://api.the-odds-api.com"`
	ATPURL       string   `env:"TENNISBET_ATP_URL"       envDefault:"https://www.atptour.com"`
	LivescoreURL string   `env:"TENNISBET_LIVESCORE_URL" envDefault:"https://www.livescore.com"`
	OddsRegions  []string `env:"TENNISBET_ODDS_REGIONS"  envDefault:"fr" envSeparator:","`
	Cache        bool     `env:"TENNISBET_CACHE"         envDefault:"true"`
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
