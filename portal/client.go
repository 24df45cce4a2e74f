// Package portal is the REST client for the university portal backend.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"student-portal/logger"
	"student-portal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const (
	pathLogin         = "auth/login"
	pathLogout        = "auth/logout"
	pathPaymentHeads  = "payment-heads"
	pathGateways      = "payment/gateways"
	pathInitiate      = "payment/initiate"
	pathPaymentStatus = "payment/status/"
	pathApplications  = "applications/"
)

// messageKeys are the fields the backend uses for human readable errors.
var messageKeys = []string{"message", "error", "detail"}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       map[string]interface{}
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("portal: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("portal: status %d", e.StatusCode)
}

type Client struct {
	baseURL        string
	client         *http.Client
	defaultHeaders map[string]string
	log            *zap.Logger
}

type RequestOption func(*http.Request)

func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// New builds a client for baseURL. transport is normally a session.Guard.
func New(baseURL string, timeout time.Duration, transport http.RoundTripper) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout, Transport: transport},
		defaultHeaders: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		log: logger.Default().Zap().Named("portal"),
	}
}

func (c *Client) applyDefaultHeaders(req *http.Request) {
	for key, value := range c.defaultHeaders {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
}

// do sends body as JSON to path and decodes the response into out.
// Non-2xx responses become *HTTPError carrying the backend message.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, opts ...RequestOption) error {
	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	c.applyDefaultHeaders(req)
	for _, opt := range opts {
		opt(req)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("portal_request_failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	c.log.Debug("http_request_data",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.ByteString("response", raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, &herr.Body); err == nil {
			herr.Message, _, _ = utils.FirstString(herr.Body, messageKeys...)
		}
		return herr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func escape(id string) string {
	return url.PathEscape(id)
}
