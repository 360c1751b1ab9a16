// Package email sends transactional mail through Resend, or captures it
// in memory when running without an email provider.
package email

import (
	"sync"

	"github.com/kuitang/notesaas/internal/obs"
)

var logger = obs.Pkg("email")

// EmailService sends a templated message to one recipient.
type EmailService interface {
	Send(to, templateName string, data any) error
}

// SentEmail is one message captured by MockEmailService.
type SentEmail struct {
	To       string
	Template string
	Subject  string
	Data     any
}

// MockEmailService captures messages instead of sending them. It still
// renders each template so template errors surface in tests.
type MockEmailService struct {
	mu     sync.Mutex
	emails []SentEmail
}

func NewMockEmailService() *MockEmailService {
	return &MockEmailService{}
}

func (m *MockEmailService) Send(to, templateName string, data any) error {
	subject, _, err := Render(templateName, data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, SentEmail{To: to, Template: templateName, Subject: subject, Data: data})
	logger.Info("email_captured", "to", to, "template", templateName)
	return nil
}

// Emails returns a copy of every captured message, oldest first.
func (m *MockEmailService) Emails() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.emails...)
}

// LastEmail returns the most recent message, or the zero value.
func (m *MockEmailService) LastEmail() SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.emails) == 0 {
		return SentEmail{}
	}
	return m.emails[len(m.emails)-1]
}

func (m *MockEmailService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails)
}
