package explain

import (
	"fmt"
	"strings"

	"github.com/sandevgo/faltabot/internal/core"
)

// Audience tunes tone and technical depth of an explanation.
type Audience string

const (
	AudienceEmployee   Audience = "employee"
	AudienceHR         Audience = "hr"
	AudienceSupervisor Audience = "supervisor"
	AudienceAdmin      Audience = "admin"
)

// DetailLevel controls how much of the reasoning trace is rendered.
type DetailLevel string

const (
	DetailBasic     DetailLevel = "basic"
	DetailMedium    DetailLevel = "medium"
	DetailDetailed  DetailLevel = "detailed"
	DetailTechnical DetailLevel = "technical"
)

// Options select the rendering for one explanation.
type Options struct {
	Audience Audience
	Detail   DetailLevel
}

// DefaultOptions picks a sensible detail level per audience: employees
// get a readable summary, staff get the trace.
func DefaultOptions(audience Audience) Options {
	detail := DetailMedium
	switch audience {
	case AudienceSupervisor, AudienceHR:
		detail = DetailDetailed
	case AudienceAdmin:
		detail = DetailTechnical
	}
	return Options{Audience: audience, Detail: detail}
}

// Generator renders inference results and CBR analysis as markdown.
// The output goes to humans (chat, CLI); nothing parses it back.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// Explain renders the full reasoning trace for one processed record.
func (g *Generator) Explain(result *core.InferenceResult, rec *core.Recommendation, opts Options) string {
	var b strings.Builder

	if opts.Detail != DetailBasic {
		fmt.Fprintf(&b, "The system evaluated **%d rule firing(s)** in %.3fs.\n\n",
			len(result.Steps), result.Elapsed.Seconds())
	}

	if len(result.Steps) == 0 {
		b.WriteString("No rules applied — the record looks normal.\n")
	} else {
		b.WriteString("**Reasoning:**\n")
		for i, step := range result.Steps {
			fmt.Fprintf(&b, "%d. Rule **%s** fired", i+1, step.RuleName)
			if opts.Detail == DetailDetailed || opts.Detail == DetailTechnical {
				fmt.Fprintf(&b, " — condition `%s`", step.Condition)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(result.Observations) > 0 {
		b.WriteString("**Observations:**\n")
		for _, obs := range result.Observations {
			fmt.Fprintf(&b, "- [%s] %s\n", obs.Severity, obs.Message)
		}
		b.WriteString("\n")
	}

	if chains := detectChains(result.Steps); len(chains) > 0 &&
		(opts.Detail == DetailDetailed || opts.Detail == DetailTechnical) {
		b.WriteString("**Rule chaining:**\n")
		for _, chain := range chains {
			fmt.Fprintf(&b, "- %s\n", chain)
		}
		b.WriteString("\n")
	}

	if rec != nil && len(rec.SimilarCases) > 0 && opts.Audience != AudienceEmployee {
		fmt.Fprintf(&b, "**Similar cases:** %d found, predicted outcome **%s** (confidence %.0f%%).\n\n",
			len(rec.SimilarCases), rec.PredictedOutcome, rec.Confidence*100)
	}

	if result.Halt == core.HaltIterationCap {
		b.WriteString("_Note: the evaluation stopped at its iteration cap; the result is partial._\n\n")
	}

	if opts.Detail == DetailTechnical {
		fmt.Fprintf(&b, "Run `%s`, halt reason: %s.\n", result.RunID, result.Halt)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// detectChains reports firings where an earlier set_fact unlocked a
// later rule, i.e. the fact name it set appears in a later condition.
func detectChains(steps []core.InferenceStep) []string {
	var chains []string
	for i, earlier := range steps {
		name, ok := setFactName(earlier.Action)
		if !ok {
			continue
		}
		for _, later := range steps[i+1:] {
			if strings.Contains(later.Condition, name) {
				chains = append(chains, fmt.Sprintf("rule %s established %q, which triggered rule %s",
					earlier.RuleName, name, later.RuleName))
			}
		}
	}
	return chains
}

// setFactName extracts the fact name out of a set_fact action text.
// Best-effort string inspection: this is presentation, not semantics.
func setFactName(action string) (string, bool) {
	trimmed := strings.TrimSpace(action)
	if !strings.HasPrefix(trimmed, "set_fact(") {
		return "", false
	}
	rest := strings.TrimPrefix(trimmed, "set_fact(")
	for _, quote := range []string{`'`, `"`} {
		if strings.HasPrefix(rest, quote) {
			if end := strings.Index(rest[1:], quote); end >= 0 {
				return rest[1 : 1+end], true
			}
		}
	}
	return "", false
}
