package dispatch

// Envelope is the uniform wrapper returned for every operation. Success
// envelopes carry Message and Result; failure envelopes carry Error and Code.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Stable error codes for failure envelopes.
const (
	CodeConfiguration       = "CONFIGURATION_ERROR"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUpstream            = "UPSTREAM_ERROR"
	CodeContractViolation   = "CONTRACT_VIOLATION"
	CodeTimeout             = "TIMEOUT"
	CodeTransport           = "TRANSPORT_ERROR"
)

// GenerationResult is the success payload of a generation operation. The
// duration and prompt echo the caller's request so the caller can match what
// it asked for against what it got back.
type GenerationResult struct {
	AudioURL    string  `json:"audio_url"`
	ContentType string  `json:"content_type"`
	FileName    string  `json:"file_name"`
	FileSize    int64   `json:"file_size"`
	Duration    float64 `json:"duration"`
	Prompt      string  `json:"prompt"`
}

// KeyStatus is the success payload of validate_api_key. An invalid or
// unverifiable key is still a successful envelope; only Valid communicates
// the outcome. Credits is always present for a valid key — zero remaining
// credits is a real answer, not an absent one.
type KeyStatus struct {
	Valid   bool    `json:"valid"`
	Credits float64 `json:"credits"`
	Reason  string  `json:"reason,omitempty"`
}

func errorEnvelope(code, message string) Envelope {
	return Envelope{Success: false, Error: message, Code: code}
}
