package upstream

import "fmt"

// AuthError is an upstream 401: the API key was rejected.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("invalid API key: %s", e.Message)
}

// QuotaError is an upstream 403: the account has insufficient credits.
type QuotaError struct {
	Message string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("insufficient credits: %s", e.Message)
}

// RateLimitError is an upstream 429.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Message)
}

// StatusError is any other non-2xx upstream response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
}

// ContractError is a 2xx upstream response whose body does not match the
// documented shape. This points at the upstream API, not at caller input.
type ContractError struct {
	Field  string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("upstream response violates contract: field %q %s", e.Field, e.Reason)
}

// TimeoutError is a request that exceeded its deadline before a response
// arrived.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError is a network-level failure before any HTTP response (DNS,
// connection refused, TLS).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
