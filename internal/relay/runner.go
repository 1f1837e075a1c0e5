package relay

import (
	"context"

	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/session"
)

// TurnRequest carries everything a provider needs for one chat turn. Model
// and Workspace are already resolved from the session overrides and the
// agent template.
type TurnRequest struct {
	Agent     config.AgentConfig
	Session   session.Session
	Model     string
	Workspace string
	Prompt    string
}

// AgentRunner executes one chat turn against a provider. Implementations own
// the provider's wire protocol; the relay only needs the reply text and the
// turn's cost. Run must honor ctx cancellation: a cancelled turn returns
// ctx.Err() and its partial output is discarded.
type AgentRunner interface {
	Run(ctx context.Context, req TurnRequest) (reply string, cost float64, err error)
}
