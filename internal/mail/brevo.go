// Package mail sends transactional template emails through the Brevo API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultBrevoURL = "https://api.brevo.com/v3/smtp/email"

type TemplateID int

const (
	TemplateVerification         TemplateID = 1
	TemplatePasswordReset        TemplateID = 2
	TemplateApplicationStatus    TemplateID = 3
	TemplateInterviewScheduled   TemplateID = 4
	TemplateDocumentVerification TemplateID = 5
	TemplateDeadlineReminder     TemplateID = 6
)

var (
	ErrNotConfigured  = errors.New("mail: api key not configured")
	ErrUnauthorized   = errors.New("mail: unauthorized")
	ErrBadRequest     = errors.New("mail: bad request")
	ErrRateLimited    = errors.New("mail: rate limited")
	ErrDeliveryFailed = errors.New("mail: delivery failed")
)

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Sender interface {
	SendTemplate(ctx context.Context, to []Recipient, template TemplateID, params map[string]any) error
}

type BrevoClient struct {
	endpoint   string
	apiKey     string
	from       Recipient
	httpClient *http.Client
}

func NewBrevoClient(endpoint, apiKey string, from Recipient, httpClient *http.Client) *BrevoClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultBrevoURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BrevoClient{
		endpoint:   strings.TrimSpace(endpoint),
		apiKey:     strings.TrimSpace(apiKey),
		from:       from,
		httpClient: httpClient,
	}
}

func (c *BrevoClient) Configured() bool {
	return c.apiKey != ""
}

type sendRequest struct {
	Sender     Recipient      `json:"sender"`
	To         []Recipient    `json:"to"`
	TemplateID int            `json:"templateId"`
	Params     map[string]any `json:"params,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *BrevoClient) SendTemplate(ctx context.Context, to []Recipient, template TemplateID, params map[string]any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return ErrBadRequest
	}
	body, err := json.Marshal(sendRequest{Sender: c.from, To: to, TemplateID: int(template), Params: params})
	if err != nil {
		return fmt.Errorf("encode mail request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail request: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read mail response: %w", err)
	}
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted {
		return nil
	}
	return mapError(resp.StatusCode, payload)
}

func mapError(status int, payload []byte) error {
	var parsed errorResponse
	_ = json.Unmarshal(payload, &parsed)
	detail := strings.TrimSpace(parsed.Message)
	if detail == "" {
		detail = strings.TrimSpace(string(payload))
	}
	var base error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		base = ErrUnauthorized
	case status == http.StatusTooManyRequests:
		base = ErrRateLimited
	case status >= 400 && status < 500:
		base = ErrBadRequest
	default:
		base = ErrDeliveryFailed
	}
	if detail == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, detail)
}
