package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/faltabot/internal/config"
	"github.com/sandevgo/faltabot/internal/expert"
	"github.com/sandevgo/faltabot/internal/expert/explain"
	"github.com/sandevgo/faltabot/internal/rules"
	"github.com/sandevgo/faltabot/internal/service/monitor"
	"github.com/sandevgo/faltabot/internal/transport/intake"
	"github.com/sandevgo/faltabot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

const monitorWindow = 7 * 24 * time.Hour

type Bot struct {
	bot     *tele.Bot
	cfg     *config.TelegramConfig
	system  *expert.System
	manager *rules.Manager
	monitor *monitor.Monitor
	sender  *sender
	ownerID int64
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	system *expert.System,
	manager *rules.Manager,
	mon *monitor.Monitor,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:     b,
		cfg:     cfg,
		system:  system,
		manager: manager,
		monitor: mon,
		sender:  newSender(b),
		ownerID: cfg.OwnerID,
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Middleware: Only allow the owner
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != bot.ownerID {
				return nil // Ignore unauthorized users
			}
			return next(c)
		}
	})

	b.Handle("/start", bot.handleStart)
	b.Handle("/rules", bot.handleRules)
	b.Handle("/stats", bot.handleStats)
	b.Handle("/feedback", bot.handleFeedback)
	b.Handle(tele.OnText, bot.handleAbsence)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	return b.sender.sendMarkdown(ctx, c.Chat(), strings.TrimSpace(`
Send an absence report as JSON or as key = value lines, for example:

`+"```"+`
empleado_id = EMP-1042
motivo = Enfermedad Inculpable
duracion = 3
certificate_uploaded = true
ausencias_ultimo_mes = 1
sector = linea1
`+"```"+`

Commands: /rules, /stats, /feedback <case_id> <text>
`), false)
}

func (b *Bot) handleRules(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)

	ruleset, err := b.manager.List()
	if err != nil {
		return c.Send(fmt.Sprintf("error: %v", err))
	}
	if len(ruleset) == 0 {
		return c.Send("No rules loaded.")
	}

	var md strings.Builder
	md.WriteString("## Rules\n\n")
	for _, r := range ruleset {
		fmt.Fprintf(&md, "- **%s** (%s, priority %d): `%s`\n", r.Name, r.ID, r.Priority, r.Condition)
	}

	conflicts := rules.AnalyzeRuleset(ruleset)
	if len(conflicts) > 0 {
		md.WriteString("\n## Possible conflicts\n\n")
		for _, cf := range conflicts {
			fmt.Fprintf(&md, "- %s\n", cf.Message)
		}
	}
	return b.sender.sendMarkdown(ctx, c.Chat(), md.String(), false)
}

func (b *Bot) handleStats(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)

	ruleset, err := b.manager.List()
	if err != nil {
		return c.Send(fmt.Sprintf("error: %v", err))
	}
	report, err := b.monitor.Generate(ctx, ruleset, monitorWindow)
	if err != nil {
		return c.Send(fmt.Sprintf("error: %v", err))
	}

	md := monitor.Render(report)

	stats, err := b.system.Cases().Stats(ctx)
	if err == nil {
		md += fmt.Sprintf("\nStored cases: %d (learning %s)\n", stats.TotalCases, learningLabel(stats.LearningActive))
	}
	return b.sender.sendMarkdown(ctx, c.Chat(), md, false)
}

func (b *Bot) handleFeedback(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)

	args := strings.Fields(c.Message().Payload)
	if len(args) < 2 {
		return c.Send("usage: /feedback <case_id> <text>")
	}
	caseID := args[0]
	text := strings.Join(args[1:], " ")

	if err := b.system.Cases().UpdateFeedback(ctx, caseID, text, true); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("case_id", caseID).Msg("failed to record feedback")
		return c.Send(fmt.Sprintf("error: %v", err))
	}
	return c.Send(fmt.Sprintf("Feedback recorded for case %s.", caseID))
}

func (b *Bot) handleAbsence(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx)

	facts, err := intake.ParseFacts(c.Text())
	if err != nil {
		return c.Send(fmt.Sprintf("Could not read the report: %v. Send /start for the expected format.", err))
	}

	// Notify user we are working
	_ = c.Notify(tele.Typing)

	snapshot, err := b.manager.Snapshot()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load rules")
		return c.Send(fmt.Sprintf("error: %v", err))
	}

	decision, err := b.system.ProcessAbsence(ctx, snapshot, facts, explain.AudienceHR)
	if err != nil {
		logger.Error().Err(err).Msg("absence processing failed")
		return c.Send(fmt.Sprintf("error: %v", err))
	}

	if err := b.sender.sendMarkdown(ctx, c.Chat(), decision.Explanation, false); err != nil {
		return err
	}
	if decision.StoreErr != nil {
		return c.Send("Note: the case could not be stored for learning.")
	}
	return nil
}

func learningLabel(active bool) string {
	if active {
		return "active"
	}
	return "warming up"
}
