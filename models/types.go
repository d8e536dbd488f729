package models

import (
	"time"

	"bulk-email-sender/ledger"
)

type EmailConfig struct {
	SMTPServer         string `json:"smtp_server"`
	SMTPPort           int    `json:"smtp_port"`
	Email              string `json:"email"`
	Password           string `json:"password"`
	SenderName         string `json:"sender_name"`
	Provider           string `json:"provider"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify"`

	Subject      string `json:"subject"`
	CompanyName  string `json:"company_name"`
	LogoURL      string `json:"logo_url"`
	TemplateFile string `json:"template_file"`

	MailgunDomain string `json:"mailgun_domain"`
	MailgunAPIKey string `json:"mailgun_api_key"`
	MailgunEU     bool   `json:"mailgun_eu"`

	ResendAPIKey    string `json:"resend_api_key"`
	ResendFromEmail string `json:"resend_from_email"`
}

type ServerConfig struct {
	ListenAddr string
	Username   string
	Password   string
	SessionTTL time.Duration
	LogLevel   string
	LogFormat  string
}

type Config struct {
	Email  EmailConfig
	Server ServerConfig
}

type ProgressUpdate struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Sent       int     `json:"sent"`
	Failed     int     `json:"failed"`
	Percentage float64 `json:"percentage"`
	Email      string  `json:"email"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
}

// SendResult is the outcome of one transmission attempt.
type SendResult struct {
	Name        string    `json:"name" csv:"Name"`
	Email       string    `json:"email" csv:"Email"`
	Status      string    `json:"status" csv:"Outcome"`
	Error       string    `json:"error,omitempty" csv:"Error"`
	AttemptedAt time.Time `json:"attempted_at" csv:"AttemptedAt"`
}

const (
	ResultSent   = "SENT"
	ResultFailed = "FAILED"
)

func (r SendResult) OK() bool {
	return r.Status == ResultSent
}

type BatchReport struct {
	Total   int          `json:"total"`
	Sent    int          `json:"sent"`
	Failed  int          `json:"failed"`
	Results []SendResult `json:"results"`
}

type UploadResponse struct {
	Success  bool   `json:"success"`
	FileName string `json:"file_name,omitempty"`
	Count    int    `json:"count,omitempty"`
	Pending  int    `json:"pending"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

type PreviewResponse struct {
	Success   bool        `json:"success"`
	Position  int         `json:"position"`
	Total     int         `json:"total"`
	Recipient *ledger.Row `json:"recipient,omitempty"`
	HTML      string      `json:"html,omitempty"`
	Message   string      `json:"message,omitempty"`
}

type SendResponse struct {
	Success bool         `json:"success"`
	Result  *SendResult  `json:"result,omitempty"`
	Report  *BatchReport `json:"report,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type StatsResponse struct {
	Success bool `json:"success"`
	Total   int  `json:"total"`
	Sent    int  `json:"sent"`
	Pending int  `json:"pending"`
}

type ConfigResponse struct {
	SMTPServer  string `json:"smtp_server"`
	SMTPPort    int    `json:"smtp_port"`
	Email       string `json:"email"`
	SenderName  string `json:"sender_name"`
	Provider    string `json:"provider"`
	Subject     string `json:"subject"`
	CompanyName string `json:"company_name"`

	MailgunDomain   string `json:"mailgun_domain,omitempty"`
	ResendFromEmail string `json:"resend_from_email,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
