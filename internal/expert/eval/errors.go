package eval

import "fmt"

// GrammarError means the expression text is outside the allowed
// grammar. It is raised at parse time and is what rule authors see when
// validation rejects a condition or action.
type GrammarError struct {
	Pos     int
	Message string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("invalid expression at position %d: %s", e.Pos, e.Message)
}

// EvalError means a structurally valid expression failed against a
// specific fact environment (e.g. ordering a string against a number).
// The inference engine treats it as "condition is false" for that rule.
type EvalError struct {
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating %q: %v", e.Expr, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }
