package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/valueobject/mails"
)

// MockMailSender records every payload it accepts. Fail makes the next calls return err.
type MockMailSender struct {
	mu        sync.Mutex
	sentMails []mails.Payload
	err       error
	calls     int
}

func NewMockMailSender() *MockMailSender {
	return &MockMailSender{
		sentMails: make([]mails.Payload, 0),
	}
}

func (m *MockMailSender) SendMail(ctx context.Context, payload mails.Payload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return "", m.err
	}

	m.sentMails = append(m.sentMails, payload)
	return fmt.Sprintf("mock-%d", len(m.sentMails)), nil
}

func (m *MockMailSender) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}

// Calls counts every SendMail invocation, failed ones included.
func (m *MockMailSender) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

func (m *MockMailSender) GetSentMails() []mails.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]mails.Payload{}, m.sentMails...)
}

func (m *MockMailSender) LastMailTo(email string) (mails.Payload, bool) {
	sent := m.GetSentMails()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].To == email {
			return sent[i], true
		}
	}
	return mails.Payload{}, false
}

func (m *MockMailSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sentMails = make([]mails.Payload, 0)
	m.err = nil
	m.calls = 0
}

func (m *MockMailSender) AssertMailSent(t *testing.T, email, subject string) {
	t.Helper()
	for _, mail := range m.GetSentMails() {
		if mail.To == email && strings.Contains(mail.Subject, subject) {
			return
		}
	}
	t.Errorf("Expected mail to %s with subject containing %s not found", email, subject)
}

func (m *MockMailSender) AssertNoMailSent(t *testing.T) {
	t.Helper()
	if sent := m.GetSentMails(); len(sent) != 0 {
		t.Errorf("Expected no mails, got %d", len(sent))
	}
}
