// Package wizard implements the stateless multi-step selection flow used to
// configure an advanced agent run: provider → workspace → role → model.
// Every interactive component carries a correlation token that encodes all
// choices made so far, so no per-flow state is kept server side.
package wizard

import (
	"errors"
	"fmt"
	"strings"
)

// Delim separates fields inside a correlation token. Only the trailing field
// of a step may contain it (it usually carries a filesystem path).
const Delim = ":"

// MaxTokenLen is the platform's hard cap on component identifiers.
const MaxTokenLen = 100

// ErrMalformedToken is returned when a token does not carry the fixed fields
// its step requires. Callers should treat the interaction as expired.
var ErrMalformedToken = errors.New("wizard: malformed correlation token")

// Step names. Each component's identifier is the step name joined with the
// accumulated fields; the step name determines how many fixed fields precede
// the trailing one.
const (
	StepProvider  = "run-adv-provider"
	StepWorkspace = "run-adv-workspace"
	StepRole      = "run-adv-role"
	StepModel     = "run-adv-model"
	StepAuto      = "run-adv-auto"
)

// stepSpec fixes the decode rule for one step: the total field count, with
// the last field treated as trailing (kept verbatim, delimiter included).
type stepSpec struct {
	arity int
}

// stepTable is the single source of truth for per-step field arity. Field
// order is chosen so the workspace path, the only field that may contain the
// delimiter, is always last.
var stepTable = map[string]stepSpec{
	StepProvider:  {arity: 0}, // no accumulated fields yet
	StepWorkspace: {arity: 1}, // provider
	StepRole:      {arity: 2}, // provider, workspace
	StepModel:     {arity: 3}, // provider, role, workspace
	StepAuto:      {arity: 3}, // provider, role, workspace
}

// Encode builds the correlation token for a step from its accumulated fields.
// Fixed fields must not contain the delimiter; only the final field may.
// This is a precondition on callers, not enforced here — fixed fields are
// chosen from closed sets (provider names, role names) that never contain it.
func Encode(step string, fields ...string) (string, error) {
	spec, ok := stepTable[step]
	if !ok {
		return "", fmt.Errorf("wizard: unknown step %q", step)
	}
	if len(fields) != spec.arity {
		return "", fmt.Errorf("wizard: step %s takes %d fields, got %d", step, spec.arity, len(fields))
	}
	parts := append([]string{step}, fields...)
	token := strings.Join(parts, Delim)
	if len(token) > MaxTokenLen {
		return "", fmt.Errorf("wizard: token for step %s exceeds %d chars", step, MaxTokenLen)
	}
	return token, nil
}

// Decode recovers the accumulated fields from a component identifier for the
// given step. It splits only as many times as the step's arity requires, so
// the trailing field keeps any delimiter characters it contains.
func Decode(step, token string) ([]string, error) {
	spec, ok := stepTable[step]
	if !ok {
		return nil, fmt.Errorf("wizard: unknown step %q", step)
	}
	// step name + arity fields, trailing field verbatim.
	parts := strings.SplitN(token, Delim, spec.arity+1)
	if parts[0] != step {
		return nil, fmt.Errorf("%w: token %q does not match step %s", ErrMalformedToken, token, step)
	}
	if len(parts) != spec.arity+1 {
		return nil, fmt.Errorf("%w: step %s needs %d fields, token %q has %d",
			ErrMalformedToken, step, spec.arity, token, len(parts)-1)
	}
	return parts[1:], nil
}

// StepOf extracts the step name from a raw component identifier without
// decoding the fields, so the router can dispatch on it.
func StepOf(token string) (string, bool) {
	name := token
	if i := strings.Index(token, Delim); i >= 0 {
		name = token[:i]
	}
	_, ok := stepTable[name]
	return name, ok
}
