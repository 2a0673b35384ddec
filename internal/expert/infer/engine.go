package infer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/faltabot/internal/core"
	"github.com/sandevgo/faltabot/internal/expert/eval"
	"github.com/sandevgo/faltabot/pkg/log"
)

// DefaultMaxIterations bounds one forward-chaining run. It is a
// deterministic safety cap, not a wall-clock timeout.
const DefaultMaxIterations = 100

// Recorder receives one row per rule firing for monitoring. Errors are
// logged and never abort the run.
type Recorder interface {
	Record(ctx context.Context, ex core.RuleExecution) error
}

// Engine drives forward chaining over one caller-owned fact
// environment per invocation. The engine itself holds no mutable
// state, so a single Engine may serve concurrent runs.
type Engine struct {
	maxIterations int
	clock         func() time.Time
	recorder      Recorder
}

type Option func(*Engine)

func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		maxIterations: DefaultMaxIterations,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes forward chaining: the highest-priority unfired rule
// whose condition holds fires, mutates the environment, and the scan
// restarts from the top, since an action may unlock a lower-priority
// rule or disqualify a previously eligible one. Each rule fires at
// most once, so every run terminates.
//
// Per-rule evaluation and action failures degrade to "did not fire"
// and never abort the run. Only malformed top-level input (missing
// rules, reserved fact names) fails before processing starts.
func (e *Engine) Run(ctx context.Context, ruleset []core.Rule, facts map[string]any) (*core.InferenceResult, error) {
	logger := log.FromCtx(ctx)
	started := time.Now()

	if ruleset == nil {
		return nil, fmt.Errorf("rule snapshot is required")
	}

	env := make(eval.Env, len(facts)+8)
	for name, raw := range facts {
		if isReserved(name) {
			return nil, fmt.Errorf("fact %q collides with a reserved name", name)
		}
		v, err := eval.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", name, err)
		}
		env[name] = v
	}

	now := e.clock()
	injectSpecials(env, now)
	env[factObservations] = eval.List()

	// Ascending priority, ties keep definition order.
	rules := append([]core.Rule(nil), ruleset...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })

	runID := uuid.NewString()
	var (
		steps        []core.InferenceStep
		conclusions  []string
		actionsTaken []string
		observations []core.Observation
	)

	halt := core.HaltIterationCap
	for iteration := 0; iteration < e.maxIterations; iteration++ {
		fired := false

		for _, rule := range rules {
			if env[executedFact(rule.ID)].Truthy() {
				continue
			}
			if rule.ActivationCondition != "" {
				active, err := eval.EvalBool(rule.ActivationCondition, env)
				if err != nil {
					logger.Debug().Err(err).Str("rule", rule.ID).Msg("activation condition failed, skipping rule")
					continue
				}
				if !active {
					continue
				}
			}

			evalStart := time.Now()
			condition, err := eval.Eval(rule.Condition, env)
			if err != nil {
				// Fail closed per rule: one malformed condition must
				// not block unrelated rules.
				logger.Warn().Err(err).Str("rule", rule.ID).Msg("condition evaluation failed, rule does not fire")
				continue
			}
			if !condition.Truthy() {
				continue
			}

			step := core.InferenceStep{
				RuleID:          rule.ID,
				RuleName:        rule.Name,
				Condition:       rule.Condition,
				ConditionResult: true,
				Action:          rule.Action,
				FactsUsed:       env.Scalars(),
				Timestamp:       time.Now(),
			}

			summary := e.executeAction(ctx, rule, env, now, &observations)
			steps = append(steps, step)
			if summary != "" {
				actionsTaken = append(actionsTaken, summary)
				conclusions = append(conclusions, rule.Name)
			}

			env[executedFact(rule.ID)] = eval.Bool(true)
			e.record(ctx, runID, rule, summary, step.FactsUsed, time.Since(evalStart))

			fired = true
			break
		}

		if !fired {
			halt = core.HaltFixedPoint
			break
		}
	}

	return &core.InferenceResult{
		RunID:        runID,
		Conclusions:  conclusions,
		ActionsTaken: actionsTaken,
		Steps:        steps,
		Observations: observations,
		FinalFacts:   lowerEnv(env),
		Halt:         halt,
		Elapsed:      time.Since(started),
	}, nil
}

// executeAction runs a fired rule's action. Unrecognized or failing
// actions are logged no-ops: the rule is still marked fired, no fact
// is mutated, and the empty summary keeps it out of ActionsTaken.
func (e *Engine) executeAction(ctx context.Context, rule core.Rule, env eval.Env, now time.Time, observations *[]core.Observation) string {
	logger := log.FromCtx(ctx)

	action, err := ParseAction(rule.Action)
	if err != nil {
		logger.Warn().Err(err).Str("rule", rule.ID).Str("action", rule.Action).Msg("unrecognized action, skipping")
		return ""
	}

	switch a := action.(type) {
	case AddObservation:
		msg, err := eval.Evaluate(a.Message, env)
		if err != nil {
			logger.Warn().Err(err).Str("rule", rule.ID).Msg("observation message failed to evaluate")
			return ""
		}
		obs := core.Observation{
			Message:   msg.String(),
			Severity:  rule.Severity,
			RuleID:    rule.ID,
			Timestamp: now,
		}
		*observations = append(*observations, obs)
		list := append(env[factObservations].AsList(), eval.String(obs.Message))
		env[factObservations] = eval.List(list...)
		return fmt.Sprintf("observation added: %s", obs.Message)

	case MarkSanction:
		env[factSanctionApplied] = eval.Bool(true)
		env[factSanctionReason] = eval.String(rule.Name)
		return "sanction applied"

	case RequireApproval:
		env[factApprovalRequired] = eval.Bool(true)
		env[factApprovalReason] = eval.String(rule.Name)
		return "supervisor approval required"

	case SetFact:
		v, err := eval.Evaluate(a.Value, env)
		if err != nil {
			logger.Warn().Err(err).Str("rule", rule.ID).Msg("set_fact value failed to evaluate")
			return ""
		}
		env[a.Name] = v
		return fmt.Sprintf("fact set: %s = %s", a.Name, v)
	}
	return ""
}

func (e *Engine) record(ctx context.Context, runID string, rule core.Rule, summary string, factsUsed map[string]any, elapsed time.Duration) {
	if e.recorder == nil {
		return
	}
	ex := core.RuleExecution{
		RunID:           runID,
		RuleID:          rule.ID,
		RuleName:        rule.Name,
		ExecutedAt:      time.Now(),
		CaseFacts:       factsUsed,
		ConditionResult: true,
		ActionExecuted:  summary,
		ElapsedMillis:   float64(elapsed.Microseconds()) / 1000.0,
	}
	if err := e.recorder.Record(ctx, ex); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("rule", rule.ID).Msg("failed to record rule execution")
	}
}

// lowerEnv produces the final fact snapshot: callables are dropped,
// everything else lowers to plain Go values.
func lowerEnv(env eval.Env) map[string]any {
	out := make(map[string]any, len(env))
	for k, v := range env {
		if v.Kind() == eval.KindFunc {
			continue
		}
		out[k] = v.ToAny()
	}
	return out
}
