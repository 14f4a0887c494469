// Package notification renders message templates and delivers them by SMS
// or email.
package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Channel is the medium a message is delivered over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Built-in template IDs.
const (
	TemplateOTPCode              = "otp-code"
	TemplateServiceRequestCreate = "service-request-created"
	TemplateServiceRequestStatus = "service-request-status"
	TemplateServiceResultReady   = "service-result-ready"
	TemplatePaymentRecorded      = "payment-recorded"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template is a message with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateEngine returns an engine with the built-in templates registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range builtInTemplates {
		e.templates[t.ID] = t
	}
	return e
}

var builtInTemplates = []Template{
	{
		ID:      TemplateOTPCode,
		Subject: "Your verification code",
		Body:    "Your ClinicHub verification code is {{code}}. It expires in {{minutes}} minutes.",
	},
	{
		ID:      TemplateServiceRequestCreate,
		Subject: "Request received",
		Body:    "Dear {{patient_name}}, your request for {{service_name}} has been received and is pending review.",
	},
	{
		ID:      TemplateServiceRequestStatus,
		Subject: "Request status updated",
		Body:    "Dear {{patient_name}}, the status of your request for {{service_name}} changed to {{status}}.",
	},
	{
		ID:      TemplateServiceResultReady,
		Subject: "Your result is ready",
		Body:    "Dear {{patient_name}}, the result of your {{service_name}} request is now available.",
	},
	{
		ID:      TemplatePaymentRecorded,
		Subject: "Payment recorded",
		Body:    "Dear {{patient_name}}, a payment of {{amount}} ({{method}}) was recorded for your {{service_name}} request.",
	},
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render substitutes data into the template. Placeholders without data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	pairs := make([]string, 0, len(data)*2)
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", data[k])
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}

// Dispatcher renders templates and hands them to the sender for a channel.
type Dispatcher struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	logger    zerolog.Logger
}

func NewDispatcher(email EmailSender, sms SMSSender, templates *TemplateEngine, logger zerolog.Logger) *Dispatcher {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &Dispatcher{email: email, sms: sms, templates: templates, logger: logger}
}

// Deliver renders templateID with data and sends it to recipient.
func (d *Dispatcher) Deliver(ctx context.Context, channel Channel, recipient, templateID string, data map[string]string) error {
	if recipient == "" {
		return fmt.Errorf("deliver %s: recipient is required", templateID)
	}
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return err
	}

	switch channel {
	case ChannelSMS:
		if d.sms == nil {
			return fmt.Errorf("no sms sender configured")
		}
		err = d.sms.SendSMS(ctx, recipient, body)
	case ChannelEmail:
		if d.email == nil {
			return fmt.Errorf("no email sender configured")
		}
		err = d.email.SendEmail(ctx, recipient, subject, body)
	default:
		return fmt.Errorf("unsupported channel %q", channel)
	}
	if err != nil {
		d.logger.Error().Err(err).Str("channel", string(channel)).Str("template", templateID).Msg("notification delivery failed")
		return fmt.Errorf("deliver %s via %s: %w", templateID, channel, err)
	}
	return nil
}

// SendCode delivers a one-time passcode by SMS.
func (d *Dispatcher) SendCode(ctx context.Context, phone, code string, ttl time.Duration) error {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return d.Deliver(ctx, ChannelSMS, phone, TemplateOTPCode, map[string]string{
		"code":    code,
		"minutes": fmt.Sprint(minutes),
	})
}
