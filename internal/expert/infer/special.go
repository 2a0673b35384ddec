package infer

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/faltabot/internal/expert/eval"
)

// Reserved fact names the engine owns. Callers must not pre-populate
// any of these; Run rejects the environment before processing starts.
const (
	factNow              = "now"
	factCurrentHour      = "current_hour"
	factObservations     = "observaciones"
	factSanctionApplied  = "sancion_aplicada"
	factSanctionReason   = "sancion_motivo"
	factApprovalRequired = "requiere_aprobacion"
	factApprovalReason   = "aprobacion_motivo"

	fnDaysSince  = "days_since"
	fnHoursSince = "hours_since"
	fnIsWeekend  = "is_weekend"
)

var reservedNames = map[string]struct{}{
	factNow:              {},
	factCurrentHour:      {},
	factObservations:     {},
	factSanctionApplied:  {},
	factSanctionReason:   {},
	factApprovalRequired: {},
	factApprovalReason:   {},
	fnDaysSince:          {},
	fnHoursSince:         {},
	fnIsWeekend:          {},
}

// executedFact is the per-rule guard flag written into the environment
// after a rule fires. It both prevents re-firing and lets later rules
// condition on earlier firings.
func executedFact(ruleID string) string {
	return "rule_" + ruleID + "_executed"
}

func isReserved(name string) bool {
	if _, ok := reservedNames[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "rule_") && strings.HasSuffix(name, "_executed")
}

// missingTimestampFallback: asking how long since an absent date
// answers "a very long time" instead of failing, so deadline rules
// stay simple to write.
const missingTimestampFallback = 999

// injectSpecials binds the special functions and the run-start clock
// into the environment. The timestamp is fixed once per run so every
// rule in the run sees the same "now".
func injectSpecials(env eval.Env, now time.Time) {
	env[factNow] = eval.Time(now)
	env[factCurrentHour] = eval.Int(int64(now.Hour()))

	env[fnDaysSince] = eval.Callable(func(args []eval.Value) (eval.Value, error) {
		if len(args) != 1 {
			return eval.Null(), fmt.Errorf("days_since() takes 1 argument")
		}
		if args[0].IsNull() {
			return eval.Int(missingTimestampFallback), nil
		}
		if args[0].Kind() != eval.KindTime {
			return eval.Null(), fmt.Errorf("days_since() needs a timestamp, got %s", args[0].Kind())
		}
		return eval.Int(int64(now.Sub(args[0].AsTime()).Hours() / 24)), nil
	})

	env[fnHoursSince] = eval.Callable(func(args []eval.Value) (eval.Value, error) {
		if len(args) != 1 {
			return eval.Null(), fmt.Errorf("hours_since() takes 1 argument")
		}
		if args[0].IsNull() {
			return eval.Float(missingTimestampFallback), nil
		}
		if args[0].Kind() != eval.KindTime {
			return eval.Null(), fmt.Errorf("hours_since() needs a timestamp, got %s", args[0].Kind())
		}
		return eval.Float(now.Sub(args[0].AsTime()).Hours()), nil
	})

	env[fnIsWeekend] = eval.Callable(func(args []eval.Value) (eval.Value, error) {
		if len(args) != 0 {
			return eval.Null(), fmt.Errorf("is_weekend() takes no arguments")
		}
		wd := now.Weekday()
		return eval.Bool(wd == time.Saturday || wd == time.Sunday), nil
	})
}
