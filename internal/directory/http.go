package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/innohealth/notify-engine/internal/domain"
)

const defaultDirectoryTimeout = 5 * time.Second

// HTTPDirectory resolves recipients from the portal's user service.
type HTTPDirectory struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPDirectory(baseURL string) (*HTTPDirectory, error) {
	client := resty.New()
	client.SetTimeout(defaultDirectoryTimeout)
	client.SetRetryCount(0)

	return NewHTTPDirectoryWithClient(baseURL, client)
}

func NewHTTPDirectoryWithClient(baseURL string, client *resty.Client) (*HTTPDirectory, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("directory base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid directory base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	return &HTTPDirectory{
		client:  client,
		baseURL: trimmed,
	}, nil
}

func (d *HTTPDirectory) List(ctx context.Context) ([]Recipient, error) {
	return d.fetch(ctx, d.baseURL+"/v1/recipients", nil)
}

func (d *HTTPDirectory) FindByIDs(ctx context.Context, ids []string) ([]Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.fetch(ctx, d.baseURL+"/v1/recipients", map[string]string{
		"ids": strings.Join(ids, ","),
	})
}

func (d *HTTPDirectory) FindByID(ctx context.Context, id string) (*Recipient, error) {
	recipients, err := d.FindByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: recipient %s", domain.ErrNotFound, id)
	}
	return &recipients[0], nil
}

func (d *HTTPDirectory) ListGroup(ctx context.Context, name string) ([]Recipient, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	return d.fetch(ctx, d.baseURL+"/v1/groups/"+url.PathEscape(name)+"/members", nil)
}

func (d *HTTPDirectory) fetch(ctx context.Context, endpoint string, query map[string]string) ([]Recipient, error) {
	req := d.client.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	response, err := req.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}

	statusCode := response.StatusCode()
	if statusCode == http.StatusNotFound {
		return nil, nil
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("directory returned status %d", statusCode)
	}

	var recipients []Recipient
	if err := json.Unmarshal(response.Body(), &recipients); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}

	return recipients, nil
}
