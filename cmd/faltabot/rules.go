package main

import (
	"fmt"
	"time"

	"github.com/sandevgo/faltabot/internal/core"
	"github.com/sandevgo/faltabot/internal/expert/eval"
	"github.com/sandevgo/faltabot/internal/rules"
	"github.com/sandevgo/faltabot/internal/service/wizard"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the business rule set",
}

var rulesListCmd = &cobra.Command{
	Use:          "list",
	Short:        "Print the loaded rules in firing order",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.DB.Close()

		snapshot, err := app.Manager.Snapshot()
		if err != nil {
			return err
		}
		for _, r := range snapshot.Rules() {
			fmt.Printf("%3d  %-30s %-10s %s\n", r.Priority, r.ID, r.Severity, r.Condition)
		}
		return nil
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:          "validate",
	Short:        "Check every stored rule and report conflicts",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.DB.Close()

		ruleset, err := app.Manager.List()
		if err != nil {
			return err
		}

		failures := 0
		for _, r := range ruleset {
			others := make([]core.Rule, 0, len(ruleset)-1)
			for _, o := range ruleset {
				if o.ID != r.ID {
					others = append(others, o)
				}
			}
			if err := app.Manager.Validate(r, others); err != nil {
				failures++
				fmt.Printf("FAIL %s: %v\n", r.ID, err)
			}
		}

		for _, c := range rules.AnalyzeRuleset(ruleset) {
			fmt.Printf("WARN %s: %s (%s)\n", c.RuleID, c.Message, c.Type)
		}

		if failures > 0 {
			return fmt.Errorf("%d invalid rule(s)", failures)
		}
		fmt.Printf("%d rules ok\n", len(ruleset))
		return nil
	},
}

var rulesNewCmd = &cobra.Command{
	Use:          "new",
	Short:        "Author a new rule interactively",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.DB.Close()

		existing, err := app.Manager.List()
		if err != nil {
			return err
		}

		state, err := wizard.Run(wizard.NewRuleState(existing))
		if err != nil {
			return err
		}
		if err := app.Manager.Add(state.Draft); err != nil {
			return err
		}
		fmt.Printf("rule %q saved\n", state.Draft.ID)
		return nil
	},
}

var rulesTestCmd = &cobra.Command{
	Use:          "test <condition>",
	Short:        "Evaluate a condition against a sample record",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		ok, reason := eval.ValidateCondition(args[0])
		if !ok {
			return fmt.Errorf("invalid condition: %s", reason)
		}
		fmt.Printf("condition ok (%s)\n", time.Since(start).Round(time.Microsecond))
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesListCmd, rulesValidateCmd, rulesNewCmd, rulesTestCmd)
	rootCmd.AddCommand(rulesCmd)
}
