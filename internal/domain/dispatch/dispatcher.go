// Package dispatch turns validated tool calls into upstream requests and
// upstream outcomes into uniform result envelopes. No raw error ever escapes
// to the protocol boundary: every failure becomes a coded error envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mmaudio/mmaudio-mcp-go/internal/domain/contract"
	"github.com/mmaudio/mmaudio-mcp-go/internal/infra/config"
	"github.com/mmaudio/mmaudio-mcp-go/internal/infra/upstream"
)

// Dispatcher executes the three operations against a resolved configuration.
// It is stateless apart from the immutable configuration and safe for
// concurrent use.
type Dispatcher struct {
	cfg    config.Config
	client *upstream.Client
}

// New builds a Dispatcher from resolved configuration.
func New(cfg config.Config) *Dispatcher {
	return &Dispatcher{cfg: cfg, client: upstream.NewClient(cfg)}
}

// Generate runs one generation operation: validate, one upstream round trip,
// reshape. Validation failures return before any network call is made.
func (d *Dispatcher) Generate(ctx context.Context, op contract.Operation, raw json.RawMessage) Envelope {
	if d.cfg.APIKey == "" {
		return errorEnvelope(CodeConfiguration, "API_KEY is not configured; set it in the environment before calling generation tools")
	}

	req, err := contract.ParseRequest(op, raw)
	if err != nil {
		return errorEnvelope(CodeValidation, capitalize(err.Error()))
	}

	desc, err := d.client.Generate(ctx, op.Path, op.ResponseKey, req)
	if err != nil {
		return upstreamEnvelope(err)
	}

	return Envelope{
		Success: true,
		Message: fmt.Sprintf("Generated %.0f seconds of audio for prompt %q", req.Duration, req.Prompt),
		Result: GenerationResult{
			AudioURL:    desc.URL,
			ContentType: desc.ContentType,
			FileName:    desc.FileName,
			FileSize:    desc.FileSize,
			Duration:    req.Duration,
			Prompt:      req.Prompt,
		},
	}
}

// ValidateKey checks a key against the credits endpoint. An invalid key and
// an unreachable upstream are both expected steady-state outcomes, reported
// as success envelopes with Valid=false; only an unexpected HTTP error (such
// as a 500) becomes an error envelope.
func (d *Dispatcher) ValidateKey(ctx context.Context, override string) Envelope {
	key := strings.TrimSpace(override)
	if key == "" {
		key = d.cfg.APIKey
	}
	if key == "" {
		return errorEnvelope(CodeValidation, "No API key available: pass api_key or set the API_KEY environment variable")
	}

	info, err := d.client.Credits(ctx, key)
	if err != nil {
		var authErr *upstream.AuthError
		if errors.As(err, &authErr) {
			return Envelope{
				Success: true,
				Message: "API key is invalid",
				Result:  KeyStatus{Valid: false, Reason: "upstream rejected the key"},
			}
		}

		var timeoutErr *upstream.TimeoutError
		var transportErr *upstream.TransportError
		if errors.As(err, &timeoutErr) || errors.As(err, &transportErr) {
			return Envelope{
				Success: true,
				Message: "Could not verify API key",
				Result:  KeyStatus{Valid: false, Reason: err.Error()},
			}
		}

		return upstreamEnvelope(err)
	}

	return Envelope{
		Success: true,
		Message: "API key is valid",
		Result:  KeyStatus{Valid: true, Credits: info.Credits},
	}
}

// upstreamEnvelope maps the upstream error taxonomy onto coded error
// envelopes.
func upstreamEnvelope(err error) Envelope {
	var authErr *upstream.AuthError
	if errors.As(err, &authErr) {
		return errorEnvelope(CodeInvalidRequest, "Invalid API key: "+authErr.Message)
	}

	var quotaErr *upstream.QuotaError
	if errors.As(err, &quotaErr) {
		return errorEnvelope(CodeInsufficientCredits, "Insufficient credits: "+quotaErr.Message)
	}

	var rateErr *upstream.RateLimitError
	if errors.As(err, &rateErr) {
		return errorEnvelope(CodeRateLimited, "Rate limited by upstream: "+rateErr.Message)
	}

	var contractErr *upstream.ContractError
	if errors.As(err, &contractErr) {
		return errorEnvelope(CodeContractViolation, capitalize(contractErr.Error()))
	}

	var timeoutErr *upstream.TimeoutError
	if errors.As(err, &timeoutErr) {
		return errorEnvelope(CodeTimeout, "Upstream request timed out")
	}

	var transportErr *upstream.TransportError
	if errors.As(err, &transportErr) {
		return errorEnvelope(CodeTransport, capitalize(transportErr.Error()))
	}

	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		return errorEnvelope(CodeUpstream, fmt.Sprintf("Upstream error (status %d): %s", statusErr.Status, statusErr.Message))
	}

	return errorEnvelope(CodeUpstream, capitalize(err.Error()))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
