package mail

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
)

// Config holds SMTP settings.
type Config struct {
	Enable bool   `yaml:"enable"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	From   string `yaml:"from"`
}

// Message is a single email to send.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	HTML    bool     `json:"html"`
}

// Sender delivers mail over SMTP.
type Sender struct {
	cfg Config
}

func New(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send delivers an email synchronously. A disabled mailer silently accepts
// everything so callers never need to special-case configuration.
func (s *Sender) Send(msg Message) error {
	if !s.cfg.Enable {
		return nil
	}

	host := s.cfg.Host
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", from))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString(fmt.Sprintf("Content-Type: %s; charset=UTF-8\r\n", contentType))
	body.WriteString("\r\n")
	body.WriteString(msg.Body)

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, host)
	return smtp.SendMail(addr, auth, from, msg.To, body.Bytes())
}
