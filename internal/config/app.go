package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/faltabot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"FALTABOT_RUNTIME_PATH" envDefault:".faltabot"`

	// Transport Flags
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableCLI      bool `env:"ENABLE_CLI" envDefault:"true"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "faltabot.db")
}

func (c AppConfig) GetRulesPath() string {
	return filepath.Join(c.RuntimePath, "rules.json")
}

func (c AppConfig) GetBackupDir() string {
	return filepath.Join(c.RuntimePath, "rules_backup")
}

func (c AppConfig) GetWeightsPath() string {
	return filepath.Join(c.RuntimePath, "weights.yaml")
}
