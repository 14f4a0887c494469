package notification

import (
	"context"
	"errors"
	"sync"
)

// Message is a delivery captured by MockSender.
type Message struct {
	Channel Channel
	To      string
	Subject string
	Body    string
}

// MockSender records SMS and email deliveries. Set Fail to make every
// delivery return an error.
type MockSender struct {
	mu       sync.Mutex
	messages []Message
	Fail     bool
}

func (m *MockSender) SendSMS(_ context.Context, to, body string) error {
	return m.record(Message{Channel: ChannelSMS, To: to, Body: body})
}

func (m *MockSender) SendEmail(_ context.Context, to, subject, body string) error {
	return m.record(Message{Channel: ChannelEmail, To: to, Subject: subject, Body: body})
}

func (m *MockSender) record(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	if m.Fail {
		return errors.New("mock delivery failure")
	}
	return nil
}

// Messages returns a copy of the recorded deliveries.
func (m *MockSender) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
