package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sandevgo/faltabot/internal/expert/explain"
	"github.com/sandevgo/faltabot/pkg/log"
	"github.com/spf13/cobra"
)

var (
	processAudience string
	processAsJSON   bool
)

var processCmd = &cobra.Command{
	Use:   "process <facts.json>",
	Short: "Decide one absence report and exit",
	Long:  `Reads an absence report from a JSON file, runs the rules and case memory over it and prints the decision.`,
	Args:  cobra.ExactArgs(1),

	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read facts file: %w", err)
		}
		var facts map[string]any
		if err := json.Unmarshal(data, &facts); err != nil {
			return fmt.Errorf("failed to parse facts file: %w", err)
		}

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.DB.Close()

		snapshot, err := app.Manager.Snapshot()
		if err != nil {
			return err
		}

		audience := explain.Audience(processAudience)
		decision, err := app.System.ProcessAbsence(ctx, snapshot, facts, audience)
		if err != nil {
			return err
		}

		if processAsJSON {
			out, err := json.MarshalIndent(decision, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		} else {
			fmt.Println(decision.Explanation)
		}

		if decision.StoreErr != nil {
			log.FromCtx(ctx).Warn().Err(decision.StoreErr).Msg("case was not stored for learning")
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processAudience, "audience", string(explain.AudienceHR), "explanation audience: employee, hr, supervisor or admin")
	processCmd.Flags().BoolVar(&processAsJSON, "json", false, "print the full decision as json")
	rootCmd.AddCommand(processCmd)
}
