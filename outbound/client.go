package outbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goliatone/go-whatsapp/core"
)

const DefaultTimeout = 30 * time.Second

type Option func(*Client)

// WithHTTPClient sets the transport shared by every authenticated client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if c != nil && httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c != nil && timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(provider core.LoggerProvider, logger core.Logger) Option {
	return func(c *Client) {
		if c != nil {
			c.observer = core.NewObserver("whatsapp.outbound", provider, logger, c.observer.Metrics)
		}
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(c *Client) {
		if c != nil && metrics != nil {
			c.observer.Metrics = metrics
		}
	}
}

// Client talks to the Graph API on behalf of the configured business numbers.
type Client struct {
	baseURL    string
	apiVersion string
	numbers    map[string]string
	httpClient *http.Client
	timeout    time.Duration
	observer   core.Observer
}

func NewClient(cfg core.Config, opts ...Option) (*Client, error) {
	if len(cfg.Numbers) == 0 {
		return nil, core.ConfigError("outbound: at least one number is required", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.GraphBaseURL), "/")
	if baseURL == "" {
		baseURL = core.DefaultGraphBaseURL
	}
	apiVersion := strings.Trim(strings.TrimSpace(cfg.APIVersion), "/")
	if apiVersion == "" {
		apiVersion = core.DefaultAPIVersion
	}
	numbers := make(map[string]string, len(cfg.Numbers))
	for id, token := range cfg.Numbers {
		numbers[strings.TrimSpace(id)] = strings.TrimSpace(token)
	}
	client := &Client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		numbers:    numbers,
		timeout:    DefaultTimeout,
		observer:   core.NewObserver("whatsapp.outbound", nil, nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewAuthenticatedClient returns a resty client rooted at the versioned Graph
// URL and authorized with the endpoint's access token.
func (c *Client) NewAuthenticatedClient(endpointID string) (*resty.Client, error) {
	if c == nil {
		return nil, fmt.Errorf("outbound: client is nil")
	}
	endpointID = strings.TrimSpace(endpointID)
	token, ok := c.numbers[endpointID]
	if !ok || token == "" {
		return nil, endpointNotConfigured(endpointID)
	}
	var rc *resty.Client
	if c.httpClient != nil {
		rc = resty.NewWithClient(c.httpClient)
	} else {
		rc = resty.New()
	}
	return rc.
		SetBaseURL(c.baseURL+"/"+c.apiVersion).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetTimeout(c.timeout), nil
}

type sendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Success bool `json:"success"`
}

// Send posts payload to /{endpointID}/messages and returns the id of the
// created message, empty for payloads such as read receipts.
func (c *Client) Send(ctx context.Context, endpointID string, payload any) (messageID string, err error) {
	startedAt := time.Now()
	defer func() {
		c.observer.Observe(ctx, startedAt, "outbound.send", err, map[string]any{"endpoint_id": endpointID})
	}()

	rc, err := c.NewAuthenticatedClient(endpointID)
	if err != nil {
		return "", err
	}
	var result sendResponse
	var failure errorResponse
	resp, err := rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&result).
		SetError(&failure).
		Post("/" + strings.TrimSpace(endpointID) + "/messages")
	if err != nil {
		if core.IsCanceled(err) {
			return "", err
		}
		return "", graphFailure(err, 0, nil, "send", endpointID)
	}
	if resp.IsError() {
		return "", graphFailure(responseError(resp.StatusCode(), failure), resp.StatusCode(), resp.Header(), "send", endpointID)
	}
	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}

func responseError(status int, failure errorResponse) *GraphError {
	if failure.Error == nil {
		return &GraphError{Status: status, Message: http.StatusText(status)}
	}
	failure.Error.Status = status
	return failure.Error
}

var (
	_ core.Sender     = (*Client)(nil)
	_ core.ReadMarker = (*Client)(nil)
)
