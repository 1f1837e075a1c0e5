// Package relay routes chat platform events between users, the session
// registry, the selection wizard, and the agent providers.
package relay

import (
	"context"
	"time"

	"github.com/jessesep/claude-code-discord-sub002/internal/wizard"
)

// Event kinds delivered by adapters.
const (
	KindCommand   = "command"   // slash command invocation
	KindComponent = "component" // button/select-menu activation
	KindMessage   = "message"   // plain channel message
)

// Adapter is the interface platform-specific implementations must satisfy.
// Each adapter handles connection management, event delivery, and message
// sending for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound events from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan Event, error)

	// Send delivers a plain outbound message to a channel.
	Send(ctx context.Context, msg OutboundMessage) error

	// Respond answers a command or component interaction.
	Respond(ctx context.Context, ev Event, resp Response) error

	// Typing signals that the bot is working on a reply. Best-effort.
	Typing(ctx context.Context, channelID string) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// Event is a single inbound platform event, normalized across adapters.
type Event struct {
	Kind      string
	Platform  string // e.g. "discord", "slack"
	ChannelID string
	UserID    string
	UserName  string
	Timestamp time.Time

	// Command events.
	Command string            // e.g. "agent-start", "run-advanced"
	Args    map[string]string // slash command options by name

	// Component events.
	CustomID string   // correlation token carried by the component
	Values   []string // selected values (single-select menus carry one)

	// Message events.
	Text string

	// Ref is the adapter-private interaction handle needed by Respond.
	Ref interface{}
}

// Selection returns the first selected value of a component event.
func (e Event) Selection() string {
	if len(e.Values) == 0 {
		return ""
	}
	return e.Values[0]
}

// OutboundMessage is a plain message to deliver to a channel.
type OutboundMessage struct {
	ChannelID string
	Text      string
	Embeds    []Embed
}

// Response answers an interaction: text, optionally a wizard prompt rendered
// as interactive components, optionally embeds.
type Response struct {
	Text      string
	Ephemeral bool
	Prompt    *wizard.Prompt
	Embeds    []Embed
}

// Embed is a rich-content block, platform-rendered.
type Embed struct {
	Title  string
	Body   string
	Footer string
	Color  string // hex sidebar color hint, e.g. "#36a64f"
	Fields []Field
}

// Field is a key-value pair displayed inside an embed.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}
