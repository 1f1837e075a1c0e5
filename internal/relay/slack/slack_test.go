package slack

import (
	"context"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/jessesep/claude-code-discord-sub002/internal/relay"
	"github.com/jessesep/claude-code-discord-sub002/internal/wizard"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockClient struct {
	mu       sync.Mutex
	posted   []string
	postedTo []string
	authErr  error
}

func (m *mockClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return &slackapi.AuthTestResponse{UserID: "UBOT"}, nil
}

func (m *mockClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postedTo = append(m.postedTo, channelID)
	m.posted = append(m.posted, "")
	return channelID, "1.0", nil
}

func (m *mockClient) GetUserInfo(userID string) (*slackapi.User, error) {
	return &slackapi.User{ID: userID, RealName: "Test User"}, nil
}

type mockSocket struct {
	events chan socketmode.Event
}

func (m *mockSocket) Run() error                             { return nil }
func (m *mockSocket) EventsChan() chan socketmode.Event      { return m.events }
func (m *mockSocket) Ack(socketmode.Request, ...interface{}) {}

func connectedAdapter(t *testing.T) (*Adapter, *mockClient) {
	t.Helper()
	client := &mockClient{}
	a, err := New(AdapterOpts{
		Client: client,
		Socket: &mockSocket{events: make(chan socketmode.Event, 4)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a, client
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestNew_RequiresTokens(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Fatal("expected error without tokens or mocks")
	}
	if _, err := New(AdapterOpts{Client: &mockClient{}}); err == nil {
		t.Fatal("expected error without app token or socket mock")
	}
}

func TestConnect_SetsBotUserID(t *testing.T) {
	a, _ := connectedAdapter(t)
	if a.BotUserID() != "UBOT" {
		t.Errorf("got bot ID %q, want UBOT", a.BotUserID())
	}
}

// ---------------------------------------------------------------------------
// Inbound translation
// ---------------------------------------------------------------------------

func recvEvent(t *testing.T, events <-chan relay.Event) relay.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return relay.Event{}
	}
}

func TestHandleMessage_PlainText(t *testing.T) {
	a, _ := connectedAdapter(t)
	events, err := a.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	a.handleMessage(&slackevents.MessageEvent{
		Channel:   "C1",
		User:      "U1",
		Text:      "hello there",
		TimeStamp: "1700000000.000100",
	})

	ev := recvEvent(t, events)
	if ev.Kind != relay.KindMessage || ev.Text != "hello there" {
		t.Errorf("got %+v, want plain message", ev)
	}
	if ev.Platform != "slack" || ev.ChannelID != "C1" {
		t.Errorf("envelope wrong: %+v", ev)
	}
}

func TestHandleMessage_TextCommand(t *testing.T) {
	a, _ := connectedAdapter(t)
	events, _ := a.Listen(context.Background())

	a.handleMessage(&slackevents.MessageEvent{
		Channel: "C1",
		User:    "U1",
		Text:    "!agent start general /srv/backend builder",
	})

	ev := recvEvent(t, events)
	if ev.Kind != relay.KindCommand || ev.Command != "agent-start" {
		t.Fatalf("got %+v, want agent-start command", ev)
	}
	if ev.Args["agent"] != "general" || ev.Args["workspace"] != "/srv/backend" || ev.Args["role"] != "builder" {
		t.Errorf("args wrong: %v", ev.Args)
	}
}

func TestHandleMessage_Filters(t *testing.T) {
	a, _ := connectedAdapter(t)
	events, _ := a.Listen(context.Background())

	a.handleMessage(&slackevents.MessageEvent{Channel: "C1", User: "UBOT", Text: "self"})
	a.handleMessage(&slackevents.MessageEvent{Channel: "C1", User: "U2", BotID: "B1", Text: "bot"})
	a.handleMessage(&slackevents.MessageEvent{Channel: "C1", User: "U3", SubType: "message_changed", Text: "edit"})

	select {
	case ev := <-events:
		t.Fatalf("filtered message leaked: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleMessage_AfterCloseDropped(t *testing.T) {
	a, _ := connectedAdapter(t)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A late event off the socket must be dropped, not panic on the closed
	// inbound channel.
	a.handleMessage(&slackevents.MessageEvent{Channel: "C1", User: "U1", Text: "late"})
	a.handleAppMention(&slackevents.AppMentionEvent{Channel: "C1", User: "U1", Text: "<@UBOT> late"})
}

func TestHandleAppMention_StripsMention(t *testing.T) {
	a, _ := connectedAdapter(t)
	events, _ := a.Listen(context.Background())

	a.handleAppMention(&slackevents.AppMentionEvent{
		Channel: "C1",
		User:    "U1",
		Text:    "<@UBOT> what is the status?",
	})

	ev := recvEvent(t, events)
	if ev.Text != "what is the status?" {
		t.Errorf("mention not stripped: %q", ev.Text)
	}
}

func TestParseTextCommand(t *testing.T) {
	tests := []struct {
		in  string
		cmd string
		ok  bool
	}{
		{"!agent start general", "agent-start", true},
		{"!agent end", "agent-end", true},
		{"!agent list", "agent-list", true},
		{"!run-advanced", "run-advanced", true},
		{"!agent", "", false},
		{"!unknown thing", "", false},
		{"just chatting", "", false},
		{"!", "", false},
	}
	for _, tt := range tests {
		cmd, _, ok := parseTextCommand(tt.in)
		if ok != tt.ok || cmd != tt.cmd {
			t.Errorf("parseTextCommand(%q) = (%q, %v), want (%q, %v)", tt.in, cmd, ok, tt.cmd, tt.ok)
		}
	}
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

func TestRespond_PromptDegradesToHint(t *testing.T) {
	a, client := connectedAdapter(t)

	err := a.Respond(context.Background(), relay.Event{ChannelID: "C1"}, relay.Response{
		Prompt: &wizard.Prompt{Step: wizard.StepProvider, Title: "Select a provider"},
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(client.postedTo) != 1 || client.postedTo[0] != "C1" {
		t.Errorf("hint not posted: %v", client.postedTo)
	}
}

func TestSend_RequiresChannel(t *testing.T) {
	a, _ := connectedAdapter(t)
	if err := a.Send(context.Background(), relay.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error without channel")
	}
}

func TestParseSlackTimestamp(t *testing.T) {
	ts := parseSlackTimestamp("1700000000.000100")
	if ts.Unix() != 1700000000 {
		t.Errorf("got %v, want unix 1700000000", ts.Unix())
	}
	if !parseSlackTimestamp("garbage").IsZero() {
		t.Error("garbage timestamp should map to zero time")
	}
}
