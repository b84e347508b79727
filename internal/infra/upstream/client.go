// Package upstream is the HTTP adapter for the MMAudio generation API.
// Endpoints used:
//   - POST /api/video-to-audio — generate audio for a video
//   - POST /api/text-to-audio  — generate audio from a text prompt
//   - GET  /api/credits        — credential check and remaining credits
//
// All calls are bearer-authenticated and JSON in/out. Transient failures
// (transport errors and 5xx) are retried with bounded exponential backoff;
// 4xx responses and contract violations are never retried.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mmaudio/mmaudio-mcp-go/internal/infra/config"
)

const (
	mimeJSON            = "application/json"
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"

	// creditsTimeout bounds the credential check independently of the
	// configured generation timeout: key validation should stay fast even
	// when generation is allowed minutes.
	creditsTimeout = 10 * time.Second

	creditsPath = "/api/credits"
)

// MediaDescriptor is the generated-media descriptor nested in a successful
// generation response.
type MediaDescriptor struct {
	URL         string
	ContentType string
	FileName    string
	FileSize    int64
}

// CreditsInfo is the body of a successful GET /api/credits.
type CreditsInfo struct {
	Credits float64 `json:"credits"`
}

// Client issues authenticated requests against the MMAudio API.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	retryBase  time.Duration

	httpClient  *http.Client
	checkClient *http.Client
}

// NewClient builds a Client from resolved configuration.
func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		maxRetries:  cfg.MaxRetries,
		retryBase:   cfg.RetryBase,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		checkClient: &http.Client{Timeout: creditsTimeout},
	}
}

// Generate POSTs body to baseURL+path and returns the media descriptor found
// under responseKey in the response. Transient failures are retried up to the
// configured budget.
func (c *Client) Generate(ctx context.Context, path, responseKey string, body any) (*MediaDescriptor, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		desc, genErr := c.generateOnce(ctx, path, responseKey, payload)
		if genErr == nil {
			return desc, nil
		}
		if attempt >= c.maxRetries || !retryable(genErr) {
			return nil, genErr
		}

		delay := c.retryBase << attempt
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &TransportError{Err: ctx.Err()}
		}
	}
}

// generateOnce performs a single POST round trip.
func (c *Client) generateOnce(ctx context.Context, path, responseKey string, payload []byte) (*MediaDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set(headerContentType, mimeJSON)
	req.Header.Set(headerAuthorization, "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusToError(resp.StatusCode, raw)
	}
	return parseDescriptor(raw, responseKey)
}

// Credits performs the credential check with the given key. The configured
// key is not used; the caller decides which key to present.
func (c *Client) Credits(ctx context.Context, apiKey string) (*CreditsInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+creditsPath, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set(headerAuthorization, "Bearer "+apiKey)

	resp, err := c.checkClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusToError(resp.StatusCode, raw)
	}

	var info CreditsInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, &ContractError{Field: "credits", Reason: "body is not valid JSON"}
	}
	return &info, nil
}

// retryable reports whether an error is a transient failure worth retrying:
// transport errors and upstream 5xx. Timeouts are excluded so the total call
// latency stays bounded by roughly one configured timeout.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= 500
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// classifyTransport splits a client.Do error into timeout vs. network failure.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Err: err}
	}
	return &TransportError{Err: err}
}

// statusToError maps a non-2xx response to the error taxonomy. The message is
// taken from the body's "error" field when the body parses as JSON, otherwise
// from the raw body text.
func statusToError(status int, body []byte) error {
	msg := errorMessage(body)
	switch status {
	case http.StatusUnauthorized:
		return &AuthError{Message: msg}
	case http.StatusForbidden:
		return &QuotaError{Message: msg}
	case http.StatusTooManyRequests:
		return &RateLimitError{Message: msg}
	default:
		return &StatusError{Status: status, Message: msg}
	}
}

func errorMessage(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(body))
}

// descriptorWire uses pointers so absent fields are distinguishable from
// zero values: a missing file_size is a contract violation, not zero bytes.
type descriptorWire struct {
	URL         *string `json:"url"`
	ContentType *string `json:"content_type"`
	FileName    *string `json:"file_name"`
	FileSize    *int64  `json:"file_size"`
}

// parseDescriptor extracts and validates the media descriptor under
// responseKey in a 2xx body.
func parseDescriptor(raw []byte, responseKey string) (*MediaDescriptor, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ContractError{Field: responseKey, Reason: "body is not a JSON object"}
	}

	nested, ok := envelope[responseKey]
	if !ok {
		return nil, &ContractError{Field: responseKey, Reason: "is missing"}
	}

	var wire descriptorWire
	if err := json.Unmarshal(nested, &wire); err != nil {
		return nil, &ContractError{Field: responseKey, Reason: "has the wrong shape"}
	}

	switch {
	case wire.URL == nil || *wire.URL == "":
		return nil, &ContractError{Field: responseKey + ".url", Reason: "is missing"}
	case wire.ContentType == nil:
		return nil, &ContractError{Field: responseKey + ".content_type", Reason: "is missing"}
	case wire.FileName == nil:
		return nil, &ContractError{Field: responseKey + ".file_name", Reason: "is missing"}
	case wire.FileSize == nil:
		return nil, &ContractError{Field: responseKey + ".file_size", Reason: "is missing"}
	case *wire.FileSize < 0:
		return nil, &ContractError{Field: responseKey + ".file_size", Reason: "is negative"}
	}

	return &MediaDescriptor{
		URL:         *wire.URL,
		ContentType: *wire.ContentType,
		FileName:    *wire.FileName,
		FileSize:    *wire.FileSize,
	}, nil
}
