package email

import (
	"fmt"

	"github.com/resend/resend-go/v3"
)

// ResendEmailService implements EmailService using the Resend API.
type ResendEmailService struct {
	client      *resend.Client
	fromAddress string
}

// NewResendEmailService creates a Resend-backed sender. fromAddress must be
// a verified sender in Resend.
func NewResendEmailService(apiKey, fromAddress string) *ResendEmailService {
	return &ResendEmailService{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
	}
}

// Send renders templateName with data and sends it to one recipient.
func (r *ResendEmailService) Send(to, templateName string, data any) error {
	subject, html, err := Render(templateName, data)
	if err != nil {
		return err
	}

	sent, err := r.client.Emails.Send(&resend.SendEmailRequest{
		From:    r.fromAddress,
		To:      []string{to},
		Subject: subject,
		Html:    html,
		Tags:    []resend.Tag{{Name: "template", Value: templateName}},
	})
	if err != nil {
		return fmt.Errorf("resend: failed to send %s email: %w", templateName, err)
	}
	logger.Info("email_sent", "template", templateName, "resend_id", sent.Id)
	return nil
}
