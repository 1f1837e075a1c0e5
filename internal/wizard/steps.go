package wizard

import "fmt"

// DefaultRoles are the agent roles offered by the role step.
var DefaultRoles = []Option{
	{Label: "Builder", Value: "builder"},
	{Label: "Tester", Value: "tester"},
	{Label: "Investigator", Value: "investigator"},
	{Label: "Architect", Value: "architect"},
	{Label: "Reviewer", Value: "reviewer"},
}

// Option is a single selectable entry in a wizard step.
type Option struct {
	Label string
	Value string
}

// Prompt describes the next component to render: a select menu whose
// identifier is Token and, for the model step, an extra auto-select button
// identified by AutoToken.
type Prompt struct {
	Step      string
	Token     string
	Title     string
	Options   []Option
	AutoToken string // non-empty only on the model step
}

// StartAction is the terminal result of a completed flow. When Auto is set
// the model was not chosen explicitly and must be resolved by policy.
type StartAction struct {
	Provider  string
	Workspace string
	Role      string
	Model     string
	Auto      bool
}

// Outcome is either the next prompt to render or the terminal start action,
// never both.
type Outcome struct {
	Prompt *Prompt
	Start  *StartAction
}

// Chain holds the option sources for each step. Models is called lazily with
// the accumulated provider and role when the model step is rendered.
type Chain struct {
	Providers  []Option
	Workspaces []Option
	Roles      []Option // defaults to DefaultRoles
	Models     func(provider, role string) []Option
}

// Begin returns the opening prompt of the flow (provider selection).
func (c *Chain) Begin() (*Prompt, error) {
	token, err := Encode(StepProvider)
	if err != nil {
		return nil, err
	}
	return &Prompt{
		Step:    StepProvider,
		Token:   token,
		Title:   "Select a provider",
		Options: c.Providers,
	}, nil
}

// Advance consumes one component activation: the component's identifier and
// the value the user selected. Each call is a pure function of those two
// inputs plus the Chain's option sources; the accumulated choices travel
// entirely inside the identifier.
func (c *Chain) Advance(customID, selection string) (*Outcome, error) {
	step, ok := StepOf(customID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown step in %q", ErrMalformedToken, customID)
	}
	fields, err := Decode(step, customID)
	if err != nil {
		return nil, err
	}

	switch step {
	case StepProvider:
		provider := selection
		token, err := Encode(StepWorkspace, provider)
		if err != nil {
			return nil, err
		}
		return &Outcome{Prompt: &Prompt{
			Step:    StepWorkspace,
			Token:   token,
			Title:   "Select a workspace",
			Options: c.Workspaces,
		}}, nil

	case StepWorkspace:
		provider, workspace := fields[0], selection
		token, err := Encode(StepRole, provider, workspace)
		if err != nil {
			return nil, err
		}
		return &Outcome{Prompt: &Prompt{
			Step:    StepRole,
			Token:   token,
			Title:   "Select a role",
			Options: c.roles(),
		}}, nil

	case StepRole:
		provider, workspace, role := fields[0], fields[1], selection
		token, err := Encode(StepModel, provider, role, workspace)
		if err != nil {
			return nil, err
		}
		autoToken, err := Encode(StepAuto, provider, role, workspace)
		if err != nil {
			return nil, err
		}
		var models []Option
		if c.Models != nil {
			models = c.Models(provider, role)
		}
		return &Outcome{Prompt: &Prompt{
			Step:      StepModel,
			Token:     token,
			Title:     "Select a model, or let me pick",
			Options:   models,
			AutoToken: autoToken,
		}}, nil

	case StepModel:
		return &Outcome{Start: &StartAction{
			Provider:  fields[0],
			Role:      fields[1],
			Workspace: fields[2],
			Model:     selection,
		}}, nil

	case StepAuto:
		return &Outcome{Start: &StartAction{
			Provider:  fields[0],
			Role:      fields[1],
			Workspace: fields[2],
			Auto:      true,
		}}, nil
	}
	return nil, fmt.Errorf("%w: unhandled step %q", ErrMalformedToken, step)
}

func (c *Chain) roles() []Option {
	if len(c.Roles) > 0 {
		return c.Roles
	}
	return DefaultRoles
}
