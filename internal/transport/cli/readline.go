// Package cli is the local console transport. The operator builds an
// absence report line by line and submits it for a decision without
// leaving the terminal.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/faltabot/internal/config"
	"github.com/sandevgo/faltabot/internal/expert"
	"github.com/sandevgo/faltabot/internal/expert/explain"
	"github.com/sandevgo/faltabot/internal/rules"
	"github.com/sandevgo/faltabot/internal/transport/intake"
	"github.com/sandevgo/faltabot/pkg/log"
)

type ReadLine struct {
	cfg     *config.AppConfig
	system  *expert.System
	manager *rules.Manager
	rl      *readline.Instance
	draft   []string
}

func NewReadLine(system *expert.System, manager *rules.Manager, cfg *config.AppConfig) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:     cfg,
		system:  system,
		manager: manager,
		rl:      rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("Console started. Enter key = value lines, 'go' to decide, 'exit' to quit.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit":
			return nil
		case "clear":
			r.draft = nil
			fmt.Fprintln(r.rl.Stdout(), "draft cleared")
			continue
		case "show":
			for _, l := range r.draft {
				fmt.Fprintln(r.rl.Stdout(), l)
			}
			continue
		case "go":
			r.decide(ctx)
			continue
		}

		r.draft = append(r.draft, line)
	}
}

func (r *ReadLine) decide(ctx context.Context) {
	logger := log.FromCtx(ctx)
	out := r.rl.Stdout()

	facts, err := intake.ParseFacts(strings.Join(r.draft, "\n"))
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	snapshot, err := r.manager.Snapshot()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load rules")
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	decision, err := r.system.ProcessAbsence(ctx, snapshot, facts, explain.AudienceAdmin)
	if err != nil {
		logger.Error().Err(err).Msg("absence processing failed")
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(out, decision.Explanation)
	if decision.StoreErr != nil {
		fmt.Fprintln(out, "[System] case was not stored for learning")
	}
	r.draft = nil
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
