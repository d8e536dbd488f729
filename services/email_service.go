package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"bulk-email-sender/ledger"
	"bulk-email-sender/models"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/resend/resend-go/v2"
	"gopkg.in/gomail.v2"
)

var (
	ErrProviderNotConfigured = errors.New("email provider not configured")
	ErrUnknownProvider       = errors.New("unknown email provider")
	ErrNoRecipient           = errors.New("recipient has no email address")
)

const (
	ProviderSMTP    = "smtp"
	ProviderGmail   = "gmail"
	ProviderMailgun = "mailgun"
	ProviderResend  = "resend"
)

// KnownProvider reports whether name selects a supported transport.
func KnownProvider(name string) bool {
	switch name {
	case ProviderSMTP, ProviderGmail, ProviderMailgun, ProviderResend:
		return true
	}
	return false
}

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, row ledger.Row) error
}

// Renderer produces the HTML body shown in the preview and sent to a recipient.
type Renderer interface {
	Render(name, email string) (string, error)
}

type EmailService struct {
	mu        sync.RWMutex
	cfg       models.EmailConfig
	templates *TemplateService
	logger    *slog.Logger

	// Endpoint overrides for the HTTP providers. Empty means the provider default.
	mailgunAPIBase string
	resendBaseURL  string
}

func NewEmailService(cfg models.EmailConfig, logger *slog.Logger) (*EmailService, error) {
	templates, err := NewTemplateService(cfg)
	if err != nil {
		return nil, err
	}
	return &EmailService{cfg: cfg, templates: templates, logger: logger}, nil
}

// Config returns a copy of the current settings.
func (s *EmailService) Config() models.EmailConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig replaces the settings and reloads the message template.
func (s *EmailService) UpdateConfig(cfg models.EmailConfig) error {
	templates, err := NewTemplateService(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.templates = templates
	return nil
}

func (s *EmailService) snapshot() (models.EmailConfig, *TemplateService) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.templates
}

func (s *EmailService) Render(name, email string) (string, error) {
	_, templates := s.snapshot()
	return templates.Render(name, email)
}

// Send composes the message for row and transmits it with the configured provider.
func (s *EmailService) Send(ctx context.Context, row ledger.Row) error {
	if strings.TrimSpace(row.Email) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg, templates := s.snapshot()
	body, err := templates.Render(row.Name, row.Email)
	if err != nil {
		return err
	}

	switch cfg.Provider {
	case ProviderMailgun:
		err = s.sendWithMailgun(ctx, cfg, row.Email, templates.Subject(), body)
	case ProviderResend:
		err = s.sendWithResend(ctx, cfg, row.Email, templates.Subject(), body)
	case ProviderSMTP, ProviderGmail, "":
		err = s.sendWithSMTP(cfg, row.Email, templates.Subject(), body)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return err
	}

	s.logger.Info("email sent", "provider", cfg.Provider, "to", row.Email)
	return nil
}

func fromAddress(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func (s *EmailService) sendWithSMTP(cfg models.EmailConfig, to, subject, body string) error {
	if cfg.SMTPServer == "" || cfg.Email == "" || cfg.Password == "" {
		return fmt.Errorf("%w: smtp credentials missing", ErrProviderNotConfigured)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", cfg.Email, cfg.SenderName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.Email, cfg.Password)
	if cfg.SMTPPort == 465 {
		d.SSL = true
	}
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.SMTPServer,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func (s *EmailService) sendWithMailgun(ctx context.Context, cfg models.EmailConfig, to, subject, body string) error {
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" {
		return fmt.Errorf("%w: mailgun domain or api key missing", ErrProviderNotConfigured)
	}

	mg := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey)
	mg.SetAPIBase(s.mailgunBase(cfg))

	sender := cfg.Email
	if sender == "" {
		sender = "no-reply@" + cfg.MailgunDomain
	}
	message := mg.NewMessage(fromAddress(cfg.SenderName, sender), subject, "", to)
	message.SetHtml(body)

	resp, id, err := mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailgun send to %s: %w", to, err)
	}

	s.logger.Debug("mailgun accepted message", "to", to, "id", id, "response", resp)
	return nil
}

func (s *EmailService) mailgunBase(cfg models.EmailConfig) string {
	switch {
	case s.mailgunAPIBase != "":
		return s.mailgunAPIBase
	case cfg.MailgunEU:
		return mailgun.APIBaseEU
	default:
		return mailgun.APIBaseUS
	}
}

func (s *EmailService) sendWithResend(ctx context.Context, cfg models.EmailConfig, to, subject, body string) error {
	if cfg.ResendAPIKey == "" || cfg.ResendFromEmail == "" {
		return fmt.Errorf("%w: resend api key or sender missing", ErrProviderNotConfigured)
	}

	client := resend.NewClient(cfg.ResendAPIKey)
	if s.resendBaseURL != "" {
		base, err := url.Parse(s.resendBaseURL)
		if err != nil {
			return fmt.Errorf("resend base url: %w", err)
		}
		client.BaseURL = base
	}
	req := &resend.SendEmailRequest{
		From:    fromAddress(cfg.SenderName, cfg.ResendFromEmail),
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}

	sent, err := client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("resend send to %s: %w", to, err)
	}

	s.logger.Debug("resend accepted message", "to", to, "id", sent.Id)
	return nil
}
