// Package email sends operator alerts over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"sales_pipeline_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// PartialFailureAlert is the operator-facing summary of a saga incident.
type PartialFailureAlert struct {
	IncidentID     string
	OrganizationID string
	LeadID         string
	OrderID        string
	Operation      string
	Cause          string
	DetectedAt     time.Time
}

// AlertSender delivers operator alerts.
type AlertSender interface {
	SendPartialFailureAlert(ctx context.Context, alert PartialFailureAlert) error
}

// NoopAlertSender is used when SMTP is not configured.
type NoopAlertSender struct{}

func (NoopAlertSender) SendPartialFailureAlert(context.Context, PartialFailureAlert) error {
	return nil
}

// SMTPSender implements AlertSender using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host       string
	port       int
	username   string
	password   string
	fromName   string
	fromEmail  string
	recipients []string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string, recipients []string) *SMTPSender {
	return &SMTPSender{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		fromName:   fromName,
		fromEmail:  fromEmail,
		recipients: recipients,
	}
}

// NewAlertSender returns an SMTP sender when alerting is configured and a
// no-op sender otherwise.
func NewAlertSender(cfg config.AlertConfig) AlertSender {
	if !cfg.IsAlertEmailEnabled() {
		return NoopAlertSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetAlertFromAddress(),
		"Sales Pipeline",
		cfg.GetAlertRecipients(),
	)
}

func (s *SMTPSender) SendPartialFailureAlert(ctx context.Context, alert PartialFailureAlert) error {
	msg, err := s.buildPartialFailureMessage(alert)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *SMTPSender) buildPartialFailureMessage(alert PartialFailureAlert) (*gomail.Msg, error) {
	content, err := renderEmailTemplate("partial_failure.html", partialFailureEmailData{
		baseEmailData: baseEmailData{
			Title:   "Lead win needs reconciliation",
			Heading: "Lead win needs reconciliation",
		},
		IncidentID:     alert.IncidentID,
		OrganizationID: alert.OrganizationID,
		LeadID:         alert.LeadID,
		OrderID:        alert.OrderID,
		Operation:      alert.Operation,
		Cause:          alert.Cause,
		DetectedAt:     alert.DetectedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(s.recipients...); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(fmt.Sprintf(subjectPartialFailureFmt, alert.LeadID, alert.OrderID))
	msg.SetImportance(gomail.ImportanceHigh)
	msg.SetBodyString(gomail.TypeTextHTML, content)
	return msg, nil
}

func (s *SMTPSender) send(ctx context.Context, msg *gomail.Msg) error {
	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
