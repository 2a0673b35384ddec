package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/faltabot/internal/config"
	"github.com/sandevgo/faltabot/internal/expert"
	"github.com/sandevgo/faltabot/internal/expert/cbr"
	"github.com/sandevgo/faltabot/internal/expert/infer"
	"github.com/sandevgo/faltabot/internal/rules"
	"github.com/sandevgo/faltabot/internal/service/monitor"
	"github.com/sandevgo/faltabot/internal/storage/sqlite"
	"github.com/sandevgo/faltabot/internal/transport/cli"
	"github.com/sandevgo/faltabot/internal/transport/telegram"
	"github.com/sandevgo/faltabot/pkg/log"
	"github.com/sandevgo/faltabot/pkg/srv"
)

// App bundles the wired components so one-shot commands and the
// long-running services share the same construction path.
type App struct {
	Cfg     *config.AppConfig
	DB      *sql.DB
	System  *expert.System
	Manager *rules.Manager
	Monitor *monitor.Monitor
}

func NewApp(ctx context.Context) (*App, error) {
	logger := log.FromCtx(ctx)

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, err
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	engineCfg := config.NewEngineConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}
	caseRepo := sqlite.NewCaseRepo(db)
	execRepo := sqlite.NewExecutionRepo(db)

	// 3. Case memory
	weights, err := cbr.LoadWeights(appCfg.GetWeightsPath())
	if err != nil {
		logger.Warn().Err(err).Msg("invalid weights file, using defaults")
		weights = cbr.DefaultWeights()
	}
	cases := cbr.New(caseRepo,
		cbr.WithWeights(weights),
		cbr.WithRecentLimit(engineCfg.RecentCaseLimit),
		cbr.WithTopK(engineCfg.TopK),
		cbr.WithMinSimilarity(engineCfg.MinSimilarity),
	)

	// 4. Inference engine with monitoring hook
	engine := infer.New(
		infer.WithMaxIterations(engineCfg.MaxIterations),
		infer.WithRecorder(monitor.NewRecorder(execRepo)),
	)

	return &App{
		Cfg:     appCfg,
		DB:      db,
		System:  expert.NewSystem(engine, cases),
		Manager: rules.NewManager(appCfg.GetRulesPath(), appCfg.GetBackupDir()),
		Monitor: monitor.New(execRepo),
	}, nil
}

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	app, err := NewApp(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	services = append(services, srv.NewCleanup(app.DB.Close))

	// Transports
	if app.Cfg.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, app.System, app.Manager, app.Monitor)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize telegram bot")
		}
		services = append(services, bot)
	}
	if app.Cfg.EnableCLI {
		console, err := cli.NewReadLine(app.System, app.Manager, app.Cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize console")
		}
		services = append(services, console)
	}

	return services
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
