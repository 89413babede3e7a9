// Package notify composes the trending digest e-mail, archives it as an
// .eml draft and delivers it over SMTP when a channel is configured.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-digest/internal/report"
	"github.com/JakeFAU/trending-digest/internal/storage"
	"github.com/JakeFAU/trending-digest/internal/trending"
)

// DefaultFrom is the sender identity used when no SMTP account is configured.
const DefaultFrom = "github-trending@noreply.com"

// DefaultSMTPPort is the STARTTLS submission port.
const DefaultSMTPPort = 587

// ErrNoRecipient is returned when neither an argument nor configuration names a recipient.
var ErrNoRecipient = errors.New("recipient is required")

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	textTemplate = texttemplate.Must(
		texttemplate.New("message.txt.tmpl").Funcs(texttemplate.FuncMap(report.Funcs)).
			ParseFS(templateFS, "templates/message.txt.tmpl"),
	)
	htmlTemplate = htmltemplate.Must(
		htmltemplate.New("message.html.tmpl").Funcs(report.Funcs).
			ParseFS(templateFS, "templates/message.html.tmpl"),
	)
)

// Config describes the delivery channel.
type Config struct {
	Recipient    string
	From         string
	SMTPServer   string
	SMTPPort     int
	SMTPEmail    string
	SMTPPassword string
}

// Configured reports whether SMTP delivery is possible.
func (c Config) Configured() bool {
	return c.SMTPServer != "" && c.SMTPEmail != "" && c.SMTPPassword != ""
}

// Sender delivers composed messages.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SenderFactory builds a Sender for a configured channel.
type SenderFactory func(cfg Config) (Sender, error)

// Message is the rendered content of one digest e-mail.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Result describes what Notify did.
type Result struct {
	Recipient  string `json:"recipient"`
	ArchiveURI string `json:"archive_uri"`
	Delivered  bool   `json:"delivered"`
}

// Notifier turns the latest report artifacts into an e-mail.
type Notifier struct {
	cfg       Config
	artifacts *report.Emitter
	archive   storage.BlobStore
	clock     trending.Clock
	newSender SenderFactory
	logger    *zap.Logger
}

// New builds a Notifier. A nil newSender uses go-mail's SMTP client.
func New(
	cfg Config,
	artifacts *report.Emitter,
	archive storage.BlobStore,
	clock trending.Clock,
	newSender SenderFactory,
	logger *zap.Logger,
) *Notifier {
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = DefaultSMTPPort
	}
	if newSender == nil {
		newSender = NewSMTPSender
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		cfg:       cfg,
		artifacts: artifacts,
		archive:   archive,
		clock:     clock,
		newSender: newSender,
		logger:    logger,
	}
}

// NewSMTPSender dials the configured server with STARTTLS and PLAIN auth.
func NewSMTPSender(cfg Config) (Sender, error) {
	client, err := mail.NewClient(cfg.SMTPServer,
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPEmail),
		mail.WithPassword(cfg.SMTPPassword),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

// Compose renders the subject and both bodies for summary.
func (n *Notifier) Compose(summary trending.Summary) (Message, error) {
	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, summary); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTemplate.Execute(&html, summary); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}
	return Message{
		Subject: "GitHub Trending Report - " + n.clock.Now().Format("2006-01-02"),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// Notify loads the latest artifacts, archives the composed e-mail and, when
// SMTP is configured, delivers it. An empty recipient falls back to the
// configured one.
func (n *Notifier) Notify(ctx context.Context, recipient string) (Result, error) {
	if recipient == "" {
		recipient = n.cfg.Recipient
	}
	if recipient == "" {
		return Result{}, ErrNoRecipient
	}
	result := Result{Recipient: recipient}

	summary, err := n.artifacts.Load(ctx)
	if err != nil {
		return result, err
	}
	jsonRaw, err := n.artifacts.LoadJSON(ctx)
	if err != nil {
		return result, err
	}
	htmlRaw, err := n.artifacts.LoadHTML(ctx)
	if err != nil {
		return result, err
	}

	content, err := n.Compose(summary)
	if err != nil {
		return result, err
	}
	msg, err := n.buildMessage(recipient, content, jsonRaw, htmlRaw)
	if err != nil {
		return result, err
	}

	if result.ArchiveURI, err = n.archiveMessage(ctx, msg); err != nil {
		return result, err
	}
	logger := n.logger.With(zap.String("recipient", recipient))
	logger.Info("email draft archived", zap.String("uri", result.ArchiveURI))

	if !n.cfg.Configured() {
		logger.Warn("smtp not configured; draft archived only")
		return result, nil
	}
	sender, err := n.newSender(n.cfg)
	if err != nil {
		return result, err
	}
	if err := sender.DialAndSendWithContext(ctx, msg); err != nil {
		return result, fmt.Errorf("deliver to %s via %s:%d: %w", recipient, n.cfg.SMTPServer, n.cfg.SMTPPort, err)
	}
	result.Delivered = true
	logger.Info("email delivered", zap.String("server", n.cfg.SMTPServer))
	return result, nil
}

func (n *Notifier) buildMessage(recipient string, content Message, jsonRaw, htmlRaw []byte) (*mail.Msg, error) {
	from := n.cfg.From
	if n.cfg.SMTPEmail != "" {
		from = n.cfg.SMTPEmail
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", from, err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", recipient, err)
	}
	msg.Subject(content.Subject)
	msg.SetDateWithValue(n.clock.Now())
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, content.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, content.HTML)
	msg.AttachReadSeeker(report.JSONObject, bytes.NewReader(jsonRaw),
		mail.WithFileContentType(mail.ContentType("application/json")))
	msg.AttachReadSeeker(report.HTMLObject, bytes.NewReader(htmlRaw),
		mail.WithFileContentType(mail.TypeTextHTML))
	return msg, nil
}

func (n *Notifier) archiveMessage(ctx context.Context, msg *mail.Msg) (string, error) {
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("serialize email: %w", err)
	}
	name := "email_draft_" + n.clock.Now().Format("20060102_150405") + ".eml"
	uri, err := n.archive.PutObject(ctx, name, "message/rfc822", &buf)
	if err != nil {
		return "", fmt.Errorf("archive email: %w", err)
	}
	return uri, nil
}
