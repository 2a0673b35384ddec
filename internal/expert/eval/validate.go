package eval

import (
	"fmt"
	"time"
)

// sampleEnv mirrors a realistic absence record so validation exercises
// the exact evaluator used at inference time. The special functions are
// stubbed with fixed answers; only their signatures matter here.
func sampleEnv() Env {
	return Env{
		"motivo":               String("ART"),
		"duracion":             Int(5),
		"ausencias_ultimo_mes": Int(2),
		"certificate_uploaded": Bool(false),
		"certificate_deadline": Time(time.Now()),
		"validation_status":    String("validated"),
		"sector":               String("linea1"),
		"current_hour":         Int(14),
		"hours_since":          Callable(func([]Value) (Value, error) { return Float(24), nil }),
		"days_since":           Callable(func([]Value) (Value, error) { return Int(1), nil }),
		"is_weekend":           Callable(func([]Value) (Value, error) { return Bool(false), nil }),
	}
}

// ValidateCondition checks that a rule condition parses, evaluates and
// yields a boolean. A condition accepted here is guaranteed parseable
// and safe when the engine later evaluates it for real: both paths run
// the same grammar.
func ValidateCondition(condition string) (bool, string) {
	if condition == "" {
		return false, "condition must not be empty"
	}
	v, err := Eval(condition, sampleEnv())
	if err != nil {
		return false, fmt.Sprintf("invalid condition: %v", err)
	}
	if v.Kind() != KindBool {
		return false, fmt.Sprintf("condition must evaluate to true/false, got %s", v.Kind())
	}
	return true, "condition is valid"
}
