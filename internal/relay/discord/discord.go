// Package discord implements the relay Adapter for Discord using the Gateway
// WebSocket and interaction API.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jessesep/claude-code-discord-sub002/internal/relay"
	"github.com/jessesep/claude-code-discord-sub002/internal/wizard"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data, options...)
}
func (r *realSession) ChannelTyping(channelID string, options ...discordgo.RequestOption) error {
	return r.s.ChannelTyping(channelID, options...)
}
func (r *realSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	return r.s.InteractionRespond(interaction, resp, options...)
}
func (r *realSession) ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	return r.s.ApplicationCommandBulkOverwrite(appID, guildID, commands, options...)
}

// Adapter implements relay.Adapter for Discord.
type Adapter struct {
	sess      session
	botToken  string
	guildID   string
	appID     string
	botUserID string

	mu            sync.Mutex
	connected     bool
	closed        bool
	inbound       chan relay.Event
	removeHandler []func()
	baseBackoff   time.Duration
	maxBackoff    time.Duration
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken string // Discord bot token
	GuildID  string // guild to register slash commands in; empty for global
	// For testing: inject a mock session instead of real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}

	a := &Adapter{
		botToken:    opts.BotToken,
		guildID:     opts.GuildID,
		inbound:     make(chan relay.Event, 100),
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if opts.Session != nil {
		a.sess = opts.Session
	}
	return a, nil
}

// Connect opens the Gateway connection and registers the slash commands.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		a.mu.Unlock()
		return nil
	}

	// Create real session if not injected (production path).
	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			a.mu.Unlock()
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}
	sess := a.sess
	// Release before Open: the Ready handler needs the lock, and the gateway
	// may dispatch it before Open returns.
	a.mu.Unlock()

	ready := make(chan struct{})
	var readyOnce sync.Once
	sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.appID = r.Application.ID
		a.mu.Unlock()
		readyOnce.Do(func() { close(ready) })
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})
	sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})
	sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Resumed) {
		log.Printf("discord: gateway session resumed")
	})

	if err := sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	// Registering commands needs the application ID from Ready.
	select {
	case <-ready:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("discord: timed out waiting for ready")
	case <-ctx.Done():
		return ctx.Err()
	}

	a.mu.Lock()
	a.connected = true
	appID := a.appID
	a.mu.Unlock()

	if _, err := sess.ApplicationCommandBulkOverwrite(appID, a.guildID, commandDefinitions()); err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	return nil
}

// Listen returns the inbound event channel, registering the interaction and
// message handlers. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan relay.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("discord: not connected")
	}

	a.removeHandler = append(a.removeHandler,
		a.sess.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			a.handleInteraction(i)
		}),
		a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			a.handleMessage(m)
		}),
	)
	return a.inbound, nil
}

// Send delivers a plain message (or embeds) to a channel.
func (a *Adapter) Send(ctx context.Context, msg relay.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	if msg.ChannelID == "" {
		return fmt.Errorf("discord: no channel specified")
	}

	data := &discordgo.MessageSend{Content: msg.Text}
	for _, e := range msg.Embeds {
		data.Embeds = append(data.Embeds, toEmbed(e))
	}

	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSendComplex(msg.ChannelID, data)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Respond answers a slash command or component interaction.
func (a *Adapter) Respond(ctx context.Context, ev relay.Event, resp relay.Response) error {
	interaction, ok := ev.Ref.(*discordgo.Interaction)
	if !ok {
		// Event did not originate from an interaction (e.g. Slack bridge or a
		// plain message); fall back to a channel message.
		return a.Send(ctx, relay.OutboundMessage{
			ChannelID: ev.ChannelID,
			Text:      resp.Text,
			Embeds:    resp.Embeds,
		})
	}

	data := &discordgo.InteractionResponseData{Content: resp.Text}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	for _, e := range resp.Embeds {
		data.Embeds = append(data.Embeds, toEmbed(e))
	}
	if resp.Prompt != nil {
		data.Components = promptComponents(resp.Prompt)
		if data.Content == "" {
			data.Content = resp.Prompt.Title
		}
	}

	err := a.retryOnRateLimit(ctx, func() error {
		return a.sess.InteractionRespond(interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		})
	})
	if err != nil {
		return fmt.Errorf("discord: respond: %w", err)
	}
	return nil
}

// Typing sends the typing indicator. Best-effort; expires after ~10s.
func (a *Adapter) Typing(ctx context.Context, channelID string) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()
	return a.sess.ChannelTyping(channelID)
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	for _, remove := range a.removeHandler {
		remove()
	}
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// BotUserID returns the bot's Discord user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// ---------------------------------------------------------------------------
// Inbound translation
// ---------------------------------------------------------------------------

// handleInteraction converts a slash command or component activation into a
// relay.Event.
func (a *Adapter) handleInteraction(i *discordgo.InteractionCreate) {
	user := i.User
	if i.Member != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}

	ev := relay.Event{
		Platform:  "discord",
		ChannelID: i.ChannelID,
		UserID:    user.ID,
		UserName:  user.Username,
		Timestamp: time.Now(),
		Ref:       i.Interaction,
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		ev.Kind = relay.KindCommand
		ev.Command, ev.Args = flattenCommand(data)
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		ev.Kind = relay.KindComponent
		ev.CustomID = data.CustomID
		ev.Values = data.Values
	default:
		return
	}

	a.deliver(ev)
}

// flattenCommand folds a subcommand into a single "parent-sub" name and
// collects string options by name.
func flattenCommand(data discordgo.ApplicationCommandInteractionData) (string, map[string]string) {
	name := data.Name
	options := data.Options
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		name = name + "-" + options[0].Name
		options = options[0].Options
	}
	args := make(map[string]string, len(options))
	for _, opt := range options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			args[opt.Name] = opt.StringValue()
		}
	}
	return name, args
}

// handleMessage converts a Discord message event into a relay.Event.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	a.mu.Lock()
	botID := a.botUserID
	a.mu.Unlock()
	if m.Author.ID == botID {
		return
	}

	ts, _ := discordgo.SnowflakeTimestamp(m.ID)
	a.deliver(relay.Event{
		Kind:      relay.KindMessage,
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Text:      m.Content,
		Timestamp: ts,
	})
}

func (a *Adapter) deliver(ev relay.Event) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}
	select {
	case a.inbound <- ev:
	default:
		log.Printf("discord: inbound queue full, dropping %s event", ev.Kind)
	}
}

// ---------------------------------------------------------------------------
// Outbound translation
// ---------------------------------------------------------------------------

// promptComponents renders a wizard prompt as a select menu plus, when the
// prompt carries an auto token, a button row.
func promptComponents(p *wizard.Prompt) []discordgo.MessageComponent {
	menu := discordgo.SelectMenu{
		CustomID:    p.Token,
		Placeholder: p.Title,
	}
	for _, opt := range p.Options {
		menu.Options = append(menu.Options, discordgo.SelectMenuOption{
			Label: opt.Label,
			Value: opt.Value,
		})
	}

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}},
	}
	if p.AutoToken != "" {
		components = append(components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					CustomID: p.AutoToken,
					Label:    "Auto-select",
					Style:    discordgo.PrimaryButton,
				},
			},
		})
	}
	return components
}

// toEmbed converts a relay.Embed to a Discord Embed.
func toEmbed(e relay.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Body,
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if e.Color != "" {
		embed.Color = parseHexColor(e.Color)
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}
		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}

// commandDefinitions builds the slash command set registered on connect.
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "agent",
			Description: "Manage agent chat sessions",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "start",
					Description: "Start a session with an agent",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "agent",
							Description: "Agent ID",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "workspace",
							Description: "Workspace path override",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "role",
							Description: "Role override",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "switch",
					Description: "Switch this channel to a different agent",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "agent",
							Description: "Agent ID",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "end",
					Description: "End the active session",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List configured agents",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show the active session",
				},
			},
		},
		{
			Name:        "run-advanced",
			Description: "Start a session with guided provider, workspace, role and model selection",
		},
	}
}
