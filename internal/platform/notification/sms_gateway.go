package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type SMSGatewayConfig struct {
	BaseURL   string
	APIKey    string
	Sender    string
	Timeout   time.Duration
	RetryWait time.Duration
}

// SMSGateway sends SMS through an HTTP gateway that accepts
// POST /messages {to, from, text} authenticated with X-API-Key.
type SMSGateway struct {
	httpClient *resty.Client
	sender     string
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

type smsResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func NewSMSGateway(cfg SMSGatewayConfig) *SMSGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(4*cfg.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-API-Key", cfg.APIKey)

	return &SMSGateway{httpClient: client, sender: cfg.Sender}
}

func (g *SMSGateway) SendSMS(ctx context.Context, to, body string) error {
	var result smsResponse
	resp, err := g.httpClient.R().
		SetContext(ctx).
		SetBody(smsRequest{To: to, From: g.sender, Text: body}).
		SetResult(&result).
		SetError(&result).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	if resp.IsError() {
		if result.Error != "" {
			return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode(), result.Error)
		}
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode())
	}
	return nil
}
