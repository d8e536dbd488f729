package services

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"bulk-email-sender/models"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var ErrRenderFailed = errors.New("failed to render email")

const defaultBody = `<p>Dear {{.Name}},</p>
<p>Trust this mail meets you well,</p>
<p>My name is {{.SenderName}}{{if .CompanyName}}, and I am reaching out on behalf of {{.CompanyName}}{{end}}.</p>
<p>We help companies with recruitment, payroll management and staff management, and we would like to assist your HR department in its talent acquisition and management strategy.</p>
<p>Are you available for a brief call anytime? Please let me know when it would be convenient to meet with our team.</p>
<p>Kind regards,</p>`

const layoutHTML = `<div style="background-color: white; padding: 30px; border-radius: 8px; max-width: 700px; margin: auto; box-shadow: 0 2px 10px rgba(0,0,0,0.1); font-family: Arial, sans-serif; color: #333;">
{{.Content}}
<br>
<p><strong>{{.SenderName}}</strong><br>{{.SenderEmail}}{{if .CompanyName}}<br>{{.CompanyName}}{{end}}</p>
{{if .LogoURL}}<p><img src="{{.LogoURL}}" width="180" alt="{{.CompanyName}}"></p>{{end}}
<hr>
<small style="font-size: 11px;">
Confidentiality: This communication is only for the use of the addressee. It may contain information which is legally privileged, confidential and exempt from disclosure.
<br><br>
Security Warning: This e-mail is not a 100% secure communications medium.
<br><br>
Viruses: Please ensure the recipient verifies that the email is virus-free.
</small>
</div>`

// TemplateData is passed to message templates.
type TemplateData struct {
	Name        string
	Email       string
	SenderName  string
	SenderEmail string
	CompanyName string
	LogoURL     string
}

type layoutData struct {
	TemplateData
	Content template.HTML
}

// TemplateService renders the HTML body of a recipient's message.
type TemplateService struct {
	layout *template.Template
	html   *template.Template
	md     *texttemplate.Template

	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	cfg      models.EmailConfig
}

// NewTemplateService parses the built-in layout and, when cfg.TemplateFile is
// set, the custom body. Files ending in .md are rendered as markdown.
func NewTemplateService(cfg models.EmailConfig) (*TemplateService, error) {
	s := &TemplateService{
		layout:   template.Must(template.New("layout").Parse(layoutHTML)),
		markdown: goldmark.New(),
		policy:   bluemonday.UGCPolicy(),
		cfg:      cfg,
	}

	if cfg.TemplateFile == "" {
		s.html = template.Must(template.New("body").Parse(defaultBody))
		return s, nil
	}

	raw, err := os.ReadFile(cfg.TemplateFile)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", cfg.TemplateFile, err)
	}

	switch strings.ToLower(filepath.Ext(cfg.TemplateFile)) {
	case ".md", ".markdown":
		s.md, err = texttemplate.New("body").Parse(string(raw))
	default:
		s.html, err = template.New("body").Parse(string(raw))
	}
	if err != nil {
		return nil, errors.Join(ErrRenderFailed, fmt.Errorf("parse template %s: %w", cfg.TemplateFile, err))
	}
	return s, nil
}

func (s *TemplateService) data(name, email string) TemplateData {
	sender := s.cfg.SenderName
	if sender == "" {
		sender = s.cfg.Email
	}
	return TemplateData{
		Name:        name,
		Email:       email,
		SenderName:  sender,
		SenderEmail: s.cfg.Email,
		CompanyName: s.cfg.CompanyName,
		LogoURL:     s.cfg.LogoURL,
	}
}

// Render produces the self-contained HTML fragment for a recipient.
func (s *TemplateService) Render(name, email string) (string, error) {
	data := s.data(name, email)

	content, err := s.renderBody(data)
	if err != nil {
		return "", errors.Join(ErrRenderFailed, err)
	}

	var out bytes.Buffer
	if err := s.layout.Execute(&out, layoutData{TemplateData: data, Content: content}); err != nil {
		return "", errors.Join(ErrRenderFailed, err)
	}
	return out.String(), nil
}

func (s *TemplateService) renderBody(data TemplateData) (template.HTML, error) {
	if s.md == nil {
		var buf bytes.Buffer
		if err := s.html.Execute(&buf, data); err != nil {
			return "", err
		}
		return template.HTML(buf.String()), nil
	}

	var src bytes.Buffer
	if err := s.md.Execute(&src, data); err != nil {
		return "", err
	}
	var converted bytes.Buffer
	if err := s.markdown.Convert(src.Bytes(), &converted); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return template.HTML(s.policy.Sanitize(converted.String())), nil
}

// Subject returns the configured subject line.
func (s *TemplateService) Subject() string {
	return s.cfg.Subject
}
