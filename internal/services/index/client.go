package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"metaledger/internal/config"
	"metaledger/internal/services"
)

const (
	userAgent        = "metaledger/0.1.0"
	maxResponseBytes = 2048
	defaultTimeout   = 6 * time.Second
)

// HTTPDoer describes the HTTP client used by the index client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Payload is the wire shape accepted by the index service.
type Payload struct {
	UniqueRecordIdentifier string          `json:"unique_record_identifier"`
	Metadata               json.RawMessage `json:"metadata"`
	MetadataHash           string          `json:"metadata_hash"`
	MetadataKey            string          `json:"metadata_key"`
	MetadataKeyHash        string          `json:"metadata_key_hash"`
	ProviderName           string          `json:"provider_name"`
}

// Response is a completed exchange.
type Response struct {
	StatusCode int
	Body       string
}

// Created reports whether the service accepted the record.
func (r Response) Created() bool {
	return r.StatusCode == http.StatusCreated
}

// Client posts payloads to one endpoint.
type Client struct {
	endpoint string
	client   HTTPDoer
}

// NewClient builds a client for endpoint with a per-request timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewClientWithDoer(endpoint, &http.Client{Timeout: timeout})
}

// NewClientWithDoer builds a client around a caller-provided HTTP client.
func NewClientWithDoer(endpoint string, doer HTTPDoer) *Client {
	return &Client{endpoint: strings.TrimSpace(endpoint), client: doer}
}

// NewFromConfig returns the metadata and supplemental clients. The
// supplemental client is nil when no supplemental endpoint is configured.
func NewFromConfig(cfg *config.Config) (metadata *Client, supplemental *Client) {
	timeout := time.Duration(cfg.Index.TimeoutSeconds) * time.Second
	metadata = NewClient(cfg.Index.Endpoint, timeout)
	if endpoint := strings.TrimSpace(cfg.Index.SupplementalEndpoint); endpoint != "" {
		supplemental = NewClient(endpoint, timeout)
	}
	return metadata, supplemental
}

// Endpoint returns the URL payloads are posted to.
func (c *Client) Endpoint() string {
	if c == nil {
		return ""
	}
	return c.endpoint
}

// Post sends one payload. Any completed HTTP exchange is returned without
// error regardless of status; failing to reach the service is ErrTransport.
func (c *Client) Post(ctx context.Context, payload Payload) (Response, error) {
	if c == nil || c.client == nil || c.endpoint == "" {
		return Response{}, services.Wrap(services.ErrConfiguration, "index", "post", "index endpoint not configured", nil)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("encode index payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, services.Wrap(services.ErrConfiguration, "index", "build request", c.endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, services.Wrap(services.ErrTransport, "index", "post", c.endpoint, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_, _ = io.Copy(io.Discard, resp.Body)
	return Response{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}, nil
}
