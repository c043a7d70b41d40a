package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"crm_workflow_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// Digest summarises one payment sweep for the sales inbox.
type Digest struct {
	Entries    []DigestEntry
	Threshold  time.Duration
	Checked    int
	Skipped    int
	Failed     int
	ReportedAt time.Time
}

// Sender delivers internal e-mails.
type Sender interface {
	SendEscalationDigest(ctx context.Context, digest Digest) error
}

// NoopSender is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendEscalationDigest(context.Context, Digest) error {
	return nil
}

// SMTPSender delivers via a direct SMTP connection using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	inbox     string
}

// NewSender returns an SMTPSender, or a NoopSender when e-mail is disabled.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.IsEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName(), cfg.GetSalesInbox())
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName, inbox string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
		inbox:     inbox,
	}
}

func (s *SMTPSender) SendEscalationDigest(ctx context.Context, digest Digest) error {
	if len(digest.Entries) == 0 {
		return nil
	}
	subject, content, err := renderEscalationDigest(digest)
	if err != nil {
		return err
	}
	return s.send(ctx, s.inbox, subject, content)
}

func renderEscalationDigest(digest Digest) (string, string, error) {
	reportedAt := digest.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now()
	}
	content, err := renderEmailTemplate("escalation_digest.html", escalationDigestEmailData{
		baseEmailData: baseEmailData{
			Title:   "Payment escalation",
			Heading: "Orders marked as not paid",
		},
		Entries:    digest.Entries,
		Threshold:  digest.Threshold.String(),
		Checked:    digest.Checked,
		Skipped:    digest.Skipped,
		Failed:     digest.Failed,
		ReportedAt: reportedAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf(subjectEscalationDigestFmt, len(digest.Entries)), content, nil
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
