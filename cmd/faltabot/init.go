package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandevgo/faltabot/internal/config"
	"github.com/sandevgo/faltabot/internal/core"
	"github.com/sandevgo/faltabot/internal/rules"
	"github.com/sandevgo/faltabot/pkg/env"
	"github.com/sandevgo/faltabot/pkg/log"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create the runtime directory with a starter rule set",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()
		logger := log.FromCtx(ctx)

		runtimePath := config.GetRuntimePath()
		if err := os.MkdirAll(runtimePath, 0o755); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}

		// .env with defaults, kept if one already exists
		envPath := filepath.Join(runtimePath, ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			content, err := env.MarshalEnv(&config.AppConfig{RuntimePath: runtimePath})
			if err != nil {
				return err
			}
			if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
				return fmt.Errorf("failed to write .env: %w", err)
			}
			logger.Info().Str("path", envPath).Msg("created .env")
		}

		// starter rules, kept if a rule file already exists
		appCfg := config.NewAppConfig(ctx)
		rulesPath := appCfg.GetRulesPath()
		if _, err := os.Stat(rulesPath); os.IsNotExist(err) {
			mgr := rules.NewManager(rulesPath, appCfg.GetBackupDir())
			for _, r := range starterRules() {
				if err := mgr.Add(r); err != nil {
					return fmt.Errorf("failed to seed rule %s: %w", r.ID, err)
				}
			}
			logger.Info().Str("path", rulesPath).Msg("created starter rule set")
		}

		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("Done! You can now run 'faltabot start'.")
		return nil
	},
}

func starterRules() []core.Rule {
	return []core.Rule{
		{
			ID:          "ausencia_sin_aviso",
			Name:        "Ausencia sin aviso previo",
			Condition:   "motivo == 'Ausencia sin Aviso'",
			Action:      "mark_sanction()",
			Priority:    10,
			Severity:    core.SeverityError,
			Explanation: "La ausencia sin aviso previo genera sanción según convenio.",
			CreatedBy:   "init",
		},
		{
			ID:          "enfermedad_sin_certificado",
			Name:        "Enfermedad prolongada sin certificado",
			Condition:   "motivo == 'Enfermedad Inculpable' and duracion > 2 and not certificate_uploaded",
			Action:      "require_approval()",
			Priority:    20,
			Severity:    core.SeverityWarning,
			Explanation: "Más de dos días de enfermedad requieren certificado médico.",
			CreatedBy:   "init",
		},
		{
			ID:          "ausencias_reiteradas",
			Name:        "Ausencias reiteradas en el mes",
			Condition:   "ausencias_ultimo_mes >= 3",
			Action:      "add_observacion('Ausencias reiteradas en el último mes')",
			Priority:    30,
			Severity:    core.SeverityWarning,
			Explanation: "Tres o más ausencias en el mes se elevan a supervisión.",
			CreatedBy:   "init",
		},
		{
			ID:          "certificado_vencido",
			Name:        "Certificado fuera de plazo",
			Condition:   "certificate_uploaded and hours_since(fecha_falta) > 48",
			Action:      "add_observacion('Certificado presentado fuera de plazo')",
			Priority:    40,
			Severity:    core.SeverityInfo,
			Explanation: "El certificado se presentó después de las 48 horas.",
			CreatedBy:   "init",
		},
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
