package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/faltabot/pkg/log"
)

type EngineConfig struct {
	// Inference
	MaxIterations int `env:"ENGINE_MAX_ITERATIONS" envDefault:"100"`

	// Case retrieval
	TopK            int     `env:"CASES_TOP_K" envDefault:"5"`
	MinSimilarity   float64 `env:"CASES_MIN_SIMILARITY" envDefault:"0.4"`
	RecentCaseLimit int     `env:"CASES_RECENT_LIMIT" envDefault:"1000"`
}

func NewEngineConfig(ctx context.Context) *EngineConfig {
	c := &EngineConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Engine config")
	}
	return c
}
