package relay

import (
	"context"
	"sync"
)

// MockAdapter is an in-memory Adapter used in tests and by the dry-run
// doctor checks. It records everything sent through it.
type MockAdapter struct {
	mu        sync.Mutex
	connected bool
	events    chan Event
	Sent      []OutboundMessage
	Responses []Response
	Typed     []string

	// SendErr, when set, is returned by Send.
	SendErr error
}

// NewMockAdapter creates a MockAdapter with a buffered event channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{events: make(chan Event, 16)}
}

// Connect marks the adapter connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Listen returns the injected event channel.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan Event, error) {
	return m.events, nil
}

// Inject queues an inbound event as if the platform delivered it.
func (m *MockAdapter) Inject(ev Event) {
	m.events <- ev
}

// Send records the outbound message.
func (m *MockAdapter) Send(ctx context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Respond records the interaction response.
func (m *MockAdapter) Respond(ctx context.Context, ev Event, resp Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return nil
}

// Typing records the channel the indicator was sent to.
func (m *MockAdapter) Typing(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Typed = append(m.Typed, channelID)
	return nil
}

// Close closes the event channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		close(m.events)
		m.connected = false
	}
	return nil
}

// LastResponse returns the most recent recorded response.
func (m *MockAdapter) LastResponse() (Response, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return Response{}, false
	}
	return m.Responses[len(m.Responses)-1], true
}

// SentTexts returns the texts of all recorded Send calls.
func (m *MockAdapter) SentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Sent))
	for i, msg := range m.Sent {
		out[i] = msg.Text
	}
	return out
}
