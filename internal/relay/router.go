package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jessesep/claude-code-discord-sub002/internal/catalog"
	"github.com/jessesep/claude-code-discord-sub002/internal/config"
	"github.com/jessesep/claude-code-discord-sub002/internal/segment"
	"github.com/jessesep/claude-code-discord-sub002/internal/session"
	"github.com/jessesep/claude-code-discord-sub002/internal/wizard"
)

// maxSelectOptions is the platform cap on entries in one select menu.
const maxSelectOptions = 25

// modelListTimeout bounds the catalog lookup done while rendering the model
// step of the wizard.
const modelListTimeout = 10 * time.Second

// routeKey identifies one (user, channel) conversation slot.
type routeKey struct {
	UserID    string
	ChannelID string
}

// inflightTurn tracks a provider call in progress for a key so a new start,
// switch, or end can cancel it.
type inflightTurn struct {
	cancel context.CancelFunc
}

// Router dispatches inbound platform events: slash commands mutate the
// session registry, component activations advance the wizard, and plain
// messages become provider chat turns whose output is segmented and sent
// back. Each event is handled in its own goroutine; the router's only state
// is the in-flight turn table.
type Router struct {
	cfg      *config.Config
	registry *session.Registry
	catalog  *catalog.Catalog
	runner   AgentRunner
	adapter  Adapter
	extra    map[string]Adapter // per-platform overrides, keyed by Event.Platform

	botUserID string
	out       io.Writer

	mu       sync.Mutex
	inflight map[routeKey]*inflightTurn
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Config    *config.Config
	Registry  *session.Registry
	Catalog   *catalog.Catalog
	Runner    AgentRunner
	Adapter   Adapter
	Extra     map[string]Adapter // optional: secondary adapters by platform name
	BotUserID string             // bot's user ID for self-message filtering
	Out       io.Writer          // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("relay: router: config is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("relay: router: registry is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("relay: router: catalog is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("relay: router: runner is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("relay: router: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		cfg:       opts.Config,
		registry:  opts.Registry,
		catalog:   opts.Catalog,
		runner:    opts.Runner,
		adapter:   opts.Adapter,
		extra:     opts.Extra,
		botUserID: opts.BotUserID,
		out:       out,
		inflight:  make(map[routeKey]*inflightTurn),
	}, nil
}

// Handle classifies and routes a single inbound event.
func (r *Router) Handle(ctx context.Context, ev Event) {
	if r.botUserID != "" && ev.UserID == r.botUserID {
		return
	}

	switch ev.Kind {
	case KindCommand:
		fmt.Fprintf(r.out, "relay: router: command %s [ch=%s user=%s]\n", ev.Command, ev.ChannelID, ev.UserName)
		r.handleCommand(ctx, ev)
	case KindComponent:
		fmt.Fprintf(r.out, "relay: router: component %q [ch=%s user=%s]\n", truncate(ev.CustomID, 60), ev.ChannelID, ev.UserName)
		r.handleComponent(ctx, ev)
	case KindMessage:
		r.handleMessage(ctx, ev)
	default:
		fmt.Fprintf(r.out, "relay: router: ignore unknown event kind %q\n", ev.Kind)
	}
}

// ---------------------------------------------------------------------------
// Slash commands
// ---------------------------------------------------------------------------

func (r *Router) handleCommand(ctx context.Context, ev Event) {
	switch ev.Command {
	case "agent-start":
		r.startAgent(ctx, ev, false)
	case "agent-switch":
		r.startAgent(ctx, ev, true)
	case "agent-end":
		r.endAgent(ctx, ev)
	case "agent-list":
		r.listAgents(ctx, ev)
	case "agent-status":
		r.agentStatus(ctx, ev)
	case "run-advanced":
		r.beginWizard(ctx, ev)
	default:
		r.respond(ctx, ev, Response{Text: fmt.Sprintf("Unknown command %q.", ev.Command), Ephemeral: true})
	}
}

func (r *Router) startAgent(ctx context.Context, ev Event, isSwitch bool) {
	agentID := ev.Args["agent"]
	agent, err := r.cfg.Agent(agentID)
	if err != nil {
		if errors.Is(err, config.ErrUnknownAgent) {
			r.respond(ctx, ev, Response{
				Text:      fmt.Sprintf("Unknown agent %q. Use /agent list to see what's configured.", agentID),
				Ephemeral: true,
			})
			return
		}
		r.respond(ctx, ev, Response{Text: fmt.Sprintf("Agent lookup failed: %v", err), Ephemeral: true})
		return
	}

	ov := session.Overrides{
		Role:      ev.Args["role"],
		Workspace: ev.Args["workspace"],
	}
	key := routeKey{ev.UserID, ev.ChannelID}

	var sess session.Session
	if isSwitch {
		r.cancelInflight(key)
		sess = r.registry.Switch(ev.UserID, ev.ChannelID, agent.ID, ov)
	} else {
		sess = r.registry.Start(ev.UserID, ev.ChannelID, agent.ID, ov)
	}

	fmt.Fprintf(r.out, "relay: router: session %s started [agent=%s user=%s]\n", sess.ID, agent.ID, ev.UserName)
	r.respond(ctx, ev, Response{
		Text: fmt.Sprintf("Now talking to **%s** (%s, risk %s). Just type in this channel.",
			agent.DisplayName, agent.Provider, agent.RiskLevel),
	})
}

func (r *Router) endAgent(ctx context.Context, ev Event) {
	key := routeKey{ev.UserID, ev.ChannelID}
	r.cancelInflight(key)
	if r.registry.End(ev.UserID, ev.ChannelID) {
		r.respond(ctx, ev, Response{Text: "Session ended."})
		return
	}
	r.respond(ctx, ev, Response{Text: "No active session to end.", Ephemeral: true})
}

func (r *Router) listAgents(ctx context.Context, ev Event) {
	embed := Embed{Title: "Configured agents", Color: "#5865f2"}
	for _, a := range r.cfg.Agents {
		value := truncate(a.Description, segment.MaxFieldValue-64)
		if value != "" {
			value += "\n"
		}
		value += fmt.Sprintf("provider: %s, model: %s, risk: %s", a.Provider, a.DefaultModel, a.RiskLevel)
		embed.Fields = append(embed.Fields, Field{
			Name:  fmt.Sprintf("%s (%s)", a.DisplayName, a.ID),
			Value: value,
		})
	}
	r.respond(ctx, ev, Response{Embeds: []Embed{embed}})
}

func (r *Router) agentStatus(ctx context.Context, ev Event) {
	sess, ok := r.registry.Active(ev.UserID, ev.ChannelID)
	if !ok {
		r.respond(ctx, ev, Response{Text: "No active session. Use /agent start or /run-advanced.", Ephemeral: true})
		return
	}
	agent, err := r.cfg.Agent(sess.AgentID)
	name := sess.AgentID
	if err == nil {
		name = agent.DisplayName
	}
	embed := Embed{
		Title: "Session status",
		Color: "#36a64f",
		Fields: []Field{
			{Name: "Agent", Value: name, Short: true},
			{Name: "Model", Value: r.resolveModel(sess, agent), Short: true},
			{Name: "Messages", Value: fmt.Sprintf("%d", sess.MessageCount), Short: true},
			{Name: "Cost", Value: fmt.Sprintf("$%.4f", sess.AccumulatedCost), Short: true},
			{Name: "Started", Value: sess.StartTime.Format(time.RFC3339), Short: true},
		},
	}
	if sess.WorkspaceOverride != "" {
		embed.Fields = append(embed.Fields, Field{Name: "Workspace", Value: sess.WorkspaceOverride})
	}
	r.respond(ctx, ev, Response{Embeds: []Embed{embed}, Ephemeral: true})
}

// ---------------------------------------------------------------------------
// Wizard flow
// ---------------------------------------------------------------------------

func (r *Router) beginWizard(ctx context.Context, ev Event) {
	prompt, err := r.chain().Begin()
	if err != nil {
		log.Printf("relay: router: begin wizard: %v", err)
		r.respond(ctx, ev, Response{Text: "Could not start the advanced run flow.", Ephemeral: true})
		return
	}
	r.respond(ctx, ev, Response{Prompt: prompt, Ephemeral: true})
}

func (r *Router) handleComponent(ctx context.Context, ev Event) {
	out, err := r.chain().Advance(ev.CustomID, ev.Selection())
	if err != nil {
		// Malformed or stale token: the interaction is unrecoverable, but the
		// handler must not crash. Offer a restart instead.
		log.Printf("relay: router: advance wizard: %v", err)
		r.respond(ctx, ev, Response{
			Text:      "That selection has expired or is invalid. Run /run-advanced to start over.",
			Ephemeral: true,
		})
		return
	}
	if out.Prompt != nil {
		r.respond(ctx, ev, Response{Prompt: out.Prompt, Ephemeral: true})
		return
	}
	r.finishWizard(ctx, ev, out.Start)
}

func (r *Router) finishWizard(ctx context.Context, ev Event, start *wizard.StartAction) {
	agent, ok := r.agentForProvider(start.Provider)
	if !ok {
		r.respond(ctx, ev, Response{
			Text:      fmt.Sprintf("No agent is configured for provider %q.", start.Provider),
			Ephemeral: true,
		})
		return
	}

	model := start.Model
	if start.Auto {
		model = r.catalog.AutoSelect(ctx, start.Provider, start.Role).Name
	}

	key := routeKey{ev.UserID, ev.ChannelID}
	r.cancelInflight(key)
	sess := r.registry.Switch(ev.UserID, ev.ChannelID, agent.ID, session.Overrides{
		Model:     model,
		Provider:  start.Provider,
		Role:      start.Role,
		Workspace: start.Workspace,
	})

	fmt.Fprintf(r.out, "relay: router: session %s started via wizard [agent=%s model=%s]\n", sess.ID, agent.ID, model)
	r.respond(ctx, ev, Response{Embeds: []Embed{{
		Title: "Session ready",
		Color: "#36a64f",
		Fields: []Field{
			{Name: "Agent", Value: agent.DisplayName, Short: true},
			{Name: "Provider", Value: start.Provider, Short: true},
			{Name: "Role", Value: start.Role, Short: true},
			{Name: "Model", Value: model, Short: true},
			{Name: "Workspace", Value: start.Workspace},
		},
	}}})
}

// chain assembles the wizard's option sources from config and catalog state.
func (r *Router) chain() *wizard.Chain {
	return &wizard.Chain{
		Providers:  r.providerOptions(),
		Workspaces: r.workspaceOptions(),
		Models: func(provider, role string) []wizard.Option {
			ctx, cancel := context.WithTimeout(context.Background(), modelListTimeout)
			defer cancel()
			models := r.catalog.ListModels(ctx, provider)
			opts := make([]wizard.Option, 0, len(models))
			for _, m := range models {
				opts = append(opts, wizard.Option{Label: m.Name, Value: m.Name})
				if len(opts) == maxSelectOptions {
					break
				}
			}
			return opts
		},
	}
}

// providerOptions lists the distinct providers of configured agents, in
// first-seen order.
func (r *Router) providerOptions() []wizard.Option {
	seen := make(map[string]bool)
	var opts []wizard.Option
	for _, a := range r.cfg.Agents {
		if seen[a.Provider] {
			continue
		}
		seen[a.Provider] = true
		opts = append(opts, wizard.Option{Label: a.Provider, Value: a.Provider})
	}
	return opts
}

func (r *Router) workspaceOptions() []wizard.Option {
	var opts []wizard.Option
	for _, w := range r.cfg.Workspaces {
		label := w.Name
		if label == "" {
			label = w.Path
		}
		opts = append(opts, wizard.Option{Label: label, Value: w.Path})
		if len(opts) == maxSelectOptions {
			break
		}
	}
	return opts
}

// agentForProvider picks the first configured agent bound to the provider.
func (r *Router) agentForProvider(provider string) (config.AgentConfig, bool) {
	for _, a := range r.cfg.Agents {
		if a.Provider == provider {
			return a, true
		}
	}
	return config.AgentConfig{}, false
}

// ---------------------------------------------------------------------------
// Chat turns
// ---------------------------------------------------------------------------

func (r *Router) handleMessage(ctx context.Context, ev Event) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	sess, ok := r.registry.Active(ev.UserID, ev.ChannelID)
	if !ok {
		return
	}
	agent, err := r.cfg.Agent(sess.AgentID)
	if err != nil {
		log.Printf("relay: router: session %s references unknown agent %s", sess.ID, sess.AgentID)
		return
	}

	fmt.Fprintf(r.out, "relay: router: turn [session=%s agent=%s] %q\n", sess.ID, agent.ID, truncate(text, 80))

	key := routeKey{ev.UserID, ev.ChannelID}
	turnCtx, cancel := context.WithCancel(ctx)
	turn := &inflightTurn{cancel: cancel}
	r.storeInflight(key, turn)
	defer r.clearInflight(key, turn)
	defer cancel()

	if err := r.adapterFor(ev.Platform).Typing(turnCtx, ev.ChannelID); err != nil {
		log.Printf("relay: router: typing indicator: %v", err)
	}

	reply, cost, err := r.runner.Run(turnCtx, TurnRequest{
		Agent:     agent,
		Session:   sess,
		Model:     r.resolveModel(sess, agent),
		Workspace: sess.WorkspaceOverride,
		Prompt:    text,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Superseded by a switch/end; discard whatever was built.
			fmt.Fprintf(r.out, "relay: router: turn cancelled [session=%s]\n", sess.ID)
			return
		}
		log.Printf("relay: router: run turn [session=%s]: %v", sess.ID, err)
		r.send(ctx, ev, fmt.Sprintf("Agent call failed: %v", err))
		return
	}

	if err := r.registry.RecordTurn(sess.ID, cost); err != nil {
		// Session may have been ended while the provider was running.
		log.Printf("relay: router: record turn: %v", err)
	}

	chunks, err := segment.Split(reply, segment.MaxMessageLen, true)
	if err != nil {
		log.Printf("relay: router: segment reply [session=%s]: %v", sess.ID, err)
		return
	}
	for _, chunk := range chunks {
		if turnCtx.Err() != nil {
			fmt.Fprintf(r.out, "relay: router: delivery cancelled at chunk %d/%d [session=%s]\n",
				chunk.Index+1, chunk.Total, sess.ID)
			return
		}
		r.send(turnCtx, ev, chunk.Text)
	}
}

// resolveModel returns the session's model override, or the template default.
func (r *Router) resolveModel(sess session.Session, agent config.AgentConfig) string {
	if sess.ModelOverride != "" {
		return sess.ModelOverride
	}
	return agent.DefaultModel
}

// ---------------------------------------------------------------------------
// In-flight turn tracking
// ---------------------------------------------------------------------------

func (r *Router) storeInflight(k routeKey, t *inflightTurn) {
	r.mu.Lock()
	if prev := r.inflight[k]; prev != nil {
		prev.cancel()
	}
	r.inflight[k] = t
	r.mu.Unlock()
}

func (r *Router) clearInflight(k routeKey, t *inflightTurn) {
	r.mu.Lock()
	if r.inflight[k] == t {
		delete(r.inflight, k)
	}
	r.mu.Unlock()
}

// cancelInflight stops any provider call in progress for the key.
func (r *Router) cancelInflight(k routeKey) {
	r.mu.Lock()
	if t := r.inflight[k]; t != nil {
		t.cancel()
		delete(r.inflight, k)
	}
	r.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// adapterFor picks the adapter an event should be answered through.
func (r *Router) adapterFor(platform string) Adapter {
	if a, ok := r.extra[platform]; ok {
		return a
	}
	return r.adapter
}

func (r *Router) respond(ctx context.Context, ev Event, resp Response) {
	if err := r.adapterFor(ev.Platform).Respond(ctx, ev, resp); err != nil {
		log.Printf("relay: router: respond: %v", err)
	}
}

func (r *Router) send(ctx context.Context, ev Event, text string) {
	err := r.adapterFor(ev.Platform).Send(ctx, OutboundMessage{ChannelID: ev.ChannelID, Text: text})
	if err != nil {
		log.Printf("relay: router: send: %v", err)
	}
}

// truncate returns s truncated to maxLen with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
