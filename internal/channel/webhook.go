package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/innohealth/notify-engine/internal/content"
)

const defaultWebhookTimeout = 10 * time.Second

type pushRequest struct {
	DeviceToken string         `json:"deviceToken"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Icon        string         `json:"icon,omitempty"`
	ActionURL   string         `json:"actionUrl,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

type emailRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"htmlBody"`
	TextBody string `json:"textBody"`
}

// WebhookTransport posts delivery requests to a webhook-compatible endpoint.
// It serves both the push gateway and the email relay, configured per instance.
type WebhookTransport struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookTransport(endpoint string) (*WebhookTransport, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookTransportWithClient(endpoint, client)
}

func NewWebhookTransportWithClient(endpoint string, client *resty.Client) (*WebhookTransport, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookTransport{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (t *WebhookTransport) Push(ctx context.Context, deviceToken string, payload content.Payload) error {
	if strings.TrimSpace(deviceToken) == "" {
		return &TransportError{Message: "device token is required"}
	}

	return t.post(ctx, pushRequest{
		DeviceToken: deviceToken,
		Title:       payload.Title,
		Body:        payload.Body,
		Icon:        payload.Icon,
		ActionURL:   payload.ActionURL,
		Data:        payload.Data,
	})
}

func (t *WebhookTransport) Email(ctx context.Context, address, subject, htmlBody, textBody string) error {
	if strings.TrimSpace(address) == "" {
		return &TransportError{Message: "email address is required"}
	}

	return t.post(ctx, emailRequest{
		To:       address,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

func (t *WebhookTransport) post(ctx context.Context, body any) error {
	if t == nil || t.client == nil {
		return fmt.Errorf("transport is not initialized")
	}

	response, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(t.endpoint)
	if err != nil {
		return &TransportError{
			Message:   "transport request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &TransportError{
			Message:   "transport returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &TransportError{
		StatusCode: statusCode,
		Message:    transportErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func transportErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("transport returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
