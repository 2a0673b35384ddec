package infer

import (
	"fmt"

	"github.com/sandevgo/faltabot/internal/expert/eval"
)

// Action is the parsed form of a rule's action text. The vocabulary is
// fixed and small; the switch over these variants in the engine is
// exhaustive, so a new action kind cannot be half-wired.
type Action interface {
	isAction()
}

// AddObservation appends a structured observation. The message may be
// any expression; it is evaluated and rendered at fire time.
type AddObservation struct {
	Message eval.Node
}

// MarkSanction sets the sanction flag and reason.
type MarkSanction struct{}

// RequireApproval sets the supervisor-approval flag and reason.
type RequireApproval struct{}

// SetFact inserts or overwrites a named fact, which is what lets one
// rule unlock another.
type SetFact struct {
	Name  string
	Value eval.Node
}

func (AddObservation) isAction()  {}
func (MarkSanction) isAction()    {}
func (RequireApproval) isAction() {}
func (SetFact) isAction()         {}

// ParseAction parses action text through the same restricted grammar
// used for conditions. Anything that is not one of the known calls is
// an error; the engine downgrades that to a logged no-op.
func ParseAction(text string) (Action, error) {
	node, err := eval.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("malformed action: %w", err)
	}
	call, ok := node.(eval.Call)
	if !ok {
		return nil, fmt.Errorf("action must be a call like add_observacion(...)")
	}

	switch call.Name {
	case "add_observacion":
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("add_observacion takes exactly 1 argument")
		}
		return AddObservation{Message: call.Args[0]}, nil

	case "mark_sanction":
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("mark_sanction takes no arguments")
		}
		return MarkSanction{}, nil

	case "require_approval":
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("require_approval takes no arguments")
		}
		return RequireApproval{}, nil

	case "set_fact":
		if len(call.Args) != 2 {
			return nil, fmt.Errorf("set_fact takes exactly 2 arguments: name and value")
		}
		lit, ok := call.Args[0].(eval.Literal)
		if !ok || lit.Val.Kind() != eval.KindString {
			return nil, fmt.Errorf("set_fact's first argument must be a quoted fact name")
		}
		name := lit.Val.AsString()
		if isReserved(name) {
			return nil, fmt.Errorf("set_fact cannot overwrite reserved fact %q", name)
		}
		return SetFact{Name: name, Value: call.Args[1]}, nil
	}

	return nil, fmt.Errorf("unknown action %q", call.Name)
}

// ValidateAction is the authoring-time check exposed to rule
// management. An action accepted here is guaranteed to parse into a
// known variant at inference time; both go through ParseAction.
func ValidateAction(text string) (bool, string) {
	if text == "" {
		return false, "action must not be empty"
	}
	if _, err := ParseAction(text); err != nil {
		return false, err.Error()
	}
	return true, "action is valid"
}
