// Dispatcher tests run against an httptest mock of the MMAudio API so every
// envelope reflects a real HTTP round trip (or the deliberate absence of one).
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmaudio/mmaudio-mcp-go/internal/domain/contract"
	"github.com/mmaudio/mmaudio-mcp-go/internal/infra/config"
)

const descriptorBody = `{"url":"https://cdn.mmaudio.net/out.flac","content_type":"audio/flac","file_name":"out.flac","file_size":92144}`

func testConfig(baseURL string) config.Config {
	return config.Config{
		APIKey:     "mk-test-key",
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: 0,
		RetryBase:  time.Millisecond,
	}
}

// countingServer returns an upstream mock that serves body with status and
// counts requests.
func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGenerate_Success_ExactlyOneCall(t *testing.T) {
	t.Parallel()

	srv, calls := countingServer(t, http.StatusOK, `{"audio":`+descriptorBody+`}`)
	d := New(testConfig(srv.URL))

	env := d.Generate(context.Background(), contract.TextToAudio, json.RawMessage(`{"prompt":"rain on leaves"}`))

	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one upstream call, got %d", calls.Load())
	}

	result, ok := env.Result.(GenerationResult)
	if !ok {
		t.Fatalf("expected GenerationResult, got %T", env.Result)
	}
	if result.AudioURL != "https://cdn.mmaudio.net/out.flac" {
		t.Errorf("unexpected audio_url %q", result.AudioURL)
	}
	if result.ContentType != "audio/flac" || result.FileName != "out.flac" || result.FileSize != 92144 {
		t.Errorf("descriptor fields not carried: %+v", result)
	}
	// Echoed request metadata.
	if result.Duration != 8 {
		t.Errorf("expected echoed default duration 8, got %g", result.Duration)
	}
	if result.Prompt != "rain on leaves" {
		t.Errorf("expected echoed prompt, got %q", result.Prompt)
	}
}

func TestGenerate_ValidationFailure_NoNetworkCall(t *testing.T) {
	t.Parallel()

	srv, calls := countingServer(t, http.StatusOK, `{"audio":`+descriptorBody+`}`)
	d := New(testConfig(srv.URL))

	env := d.Generate(context.Background(), contract.TextToAudio, json.RawMessage(`{"duration":8}`))

	if env.Success {
		t.Fatal("expected failure envelope")
	}
	if env.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, env.Code)
	}
	if !strings.Contains(env.Error, "prompt") {
		t.Errorf("validation error should name the missing field, got %q", env.Error)
	}
	if calls.Load() != 0 {
		t.Errorf("validation failure must not reach upstream; got %d calls", calls.Load())
	}
}

func TestGenerate_MissingAPIKey_ConfigurationEnvelope(t *testing.T) {
	t.Parallel()

	srv, calls := countingServer(t, http.StatusOK, `{"audio":`+descriptorBody+`}`)
	cfg := testConfig(srv.URL)
	cfg.APIKey = ""
	d := New(cfg)

	env := d.Generate(context.Background(), contract.TextToAudio, json.RawMessage(`{"prompt":"p"}`))

	if env.Success || env.Code != CodeConfiguration {
		t.Errorf("expected CONFIGURATION_ERROR envelope, got %+v", env)
	}
	if calls.Load() != 0 {
		t.Errorf("configuration failure must not reach upstream; got %d calls", calls.Load())
	}
}

func TestGenerate_Unauthorized_InvalidRequestCode(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t, http.StatusUnauthorized, `{"error":"bad key"}`)
	d := New(testConfig(srv.URL))

	env := d.Generate(context.Background(), contract.TextToAudio, json.RawMessage(`{"prompt":"p"}`))

	if env.Success {
		t.Fatal("expected failure envelope")
	}
	if env.Code != CodeInvalidRequest {
		t.Errorf("expected code %s, got %s", CodeInvalidRequest, env.Code)
	}
	if !strings.Contains(env.Error, "Invalid API key") {
		t.Errorf("expected invalid-key message, got %q", env.Error)
	}
}

func TestGenerate_UpstreamErrorCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"403 quota", http.StatusForbidden, CodeInsufficientCredits},
		{"429 rate limit", http.StatusTooManyRequests, CodeRateLimited},
		{"500 generic", http.StatusInternalServerError, CodeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := countingServer(t, tt.status, `{"error":"nope"}`)
			d := New(testConfig(srv.URL))

			env := d.Generate(context.Background(), contract.TextToAudio, json.RawMessage(`{"prompt":"p"}`))
			if env.Success || env.Code != tt.wantCode {
				t.Errorf("expected code %s, got %+v", tt.wantCode, env)
			}
		})
	}
}

func TestGenerate_MalformedUpstreamBody_ContractViolation(t *testing.T) {
	t.Parallel()

	// 200 with file_size missing must not be silently defaulted to zero.
	srv, _ := countingServer(t, http.StatusOK, `{"audio":{"url":"https://x/a.flac","content_type":"audio/flac","file_name":"a.flac"}}`)
	d := New(testConfig(srv.URL))

	env := d.Generate(context.Background(), contract.TextToAudio, json.RawMessage(`{"prompt":"p"}`))

	if env.Success {
		t.Fatal("expected failure envelope")
	}
	if env.Code != CodeContractViolation {
		t.Errorf("expected code %s, got %s", CodeContractViolation, env.Code)
	}
	if !strings.Contains(env.Error, "file_size") {
		t.Errorf("contract violation should name the field, got %q", env.Error)
	}
}

func TestGenerate_TransportFailure_TransportCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	d := New(testConfig(srv.URL))

	env := d.Generate(context.Background(), contract.TextToAudio, json.RawMessage(`{"prompt":"p"}`))

	if env.Success || env.Code != CodeTransport {
		t.Errorf("expected TRANSPORT_ERROR envelope, got %+v", env)
	}
}

func TestGenerate_UpstreamTimeout_TimeoutCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	d := New(cfg)

	env := d.Generate(context.Background(), contract.TextToAudio, json.RawMessage(`{"prompt":"p"}`))

	if env.Success || env.Code != CodeTimeout {
		t.Errorf("expected TIMEOUT envelope, got %+v", env)
	}
}

func TestGenerate_VideoOperation_UsesVideoDescriptor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/video-to-audio" {
			http.Error(w, "wrong path", http.StatusNotFound)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		if body["video_url"] != "https://cdn.example.com/clip.mp4" {
			http.Error(w, "missing video_url", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"video":` + descriptorBody + `}`)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	d := New(testConfig(srv.URL))

	env := d.Generate(context.Background(), contract.VideoToAudio, json.RawMessage(`{"prompt":"engine","video_url":"https://cdn.example.com/clip.mp4"}`))
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
}

// ============================================================================
// ValidateKey
// ============================================================================

func TestValidateKey_Valid_ReturnsCredits(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/credits" {
			http.Error(w, "wrong path", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"credits":17}`)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	d := New(testConfig(srv.URL))

	env := d.ValidateKey(context.Background(), "")

	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}
	status, ok := env.Result.(KeyStatus)
	if !ok {
		t.Fatalf("expected KeyStatus, got %T", env.Result)
	}
	if !status.Valid || status.Credits != 17 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestValidateKey_ZeroCredits_StillReported(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t, http.StatusOK, `{"credits":0}`)
	d := New(testConfig(srv.URL))

	env := d.ValidateKey(context.Background(), "")

	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}
	status, ok := env.Result.(KeyStatus)
	if !ok || !status.Valid {
		t.Fatalf("expected valid key, got %+v", env.Result)
	}

	// An exhausted account is a real answer; the credits field must survive
	// marshaling at zero.
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	credits, present := decoded.Result["credits"]
	if !present {
		t.Fatalf("credits field dropped at zero: %s", payload)
	}
	if credits != float64(0) {
		t.Errorf("expected credits 0, got %v", credits)
	}
}

func TestValidateKey_Override_IsUsed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer mk-override" {
			http.Error(w, "wrong key", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"credits":1}`)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	d := New(testConfig(srv.URL))

	env := d.ValidateKey(context.Background(), "mk-override")
	status, _ := env.Result.(KeyStatus)
	if !env.Success || !status.Valid {
		t.Errorf("override key should have been presented, got %+v", env)
	}
}

func TestValidateKey_Unauthorized_IsSuccessWithInvalidFlag(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t, http.StatusUnauthorized, `{"error":"unknown key"}`)
	d := New(testConfig(srv.URL))

	env := d.ValidateKey(context.Background(), "")

	// "Key is invalid" is an expected outcome, not an adapter failure.
	if !env.Success {
		t.Fatalf("401 must produce a success envelope, got %+v", env)
	}
	status, ok := env.Result.(KeyStatus)
	if !ok || status.Valid {
		t.Errorf("expected valid=false, got %+v", env.Result)
	}
}

func TestValidateKey_TransportFailure_IsSuccessWithInvalidFlag(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	d := New(testConfig(srv.URL))

	env := d.ValidateKey(context.Background(), "")

	if !env.Success {
		t.Fatalf("transport failure must produce a success envelope, got %+v", env)
	}
	status, ok := env.Result.(KeyStatus)
	if !ok || status.Valid {
		t.Fatalf("expected valid=false, got %+v", env.Result)
	}
	if status.Reason == "" {
		t.Error("expected the raw failure message in reason")
	}
}

func TestValidateKey_ServerError_IsErrorEnvelope(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t, http.StatusInternalServerError, `{"error":"boom"}`)
	d := New(testConfig(srv.URL))

	env := d.ValidateKey(context.Background(), "")
	if env.Success || env.Code != CodeUpstream {
		t.Errorf("expected UPSTREAM_ERROR envelope for 500, got %+v", env)
	}
}

func TestValidateKey_NoKeyAnywhere_ValidationErrorNoCall(t *testing.T) {
	t.Parallel()

	srv, calls := countingServer(t, http.StatusOK, `{"credits":1}`)
	cfg := testConfig(srv.URL)
	cfg.APIKey = ""
	d := New(cfg)

	env := d.ValidateKey(context.Background(), "")

	if env.Success || env.Code != CodeValidation {
		t.Errorf("expected VALIDATION_ERROR envelope, got %+v", env)
	}
	if calls.Load() != 0 {
		t.Errorf("no network call may be attempted without a key; got %d", calls.Load())
	}
}

func TestEnvelope_JSONShape(t *testing.T) {
	t.Parallel()

	success := Envelope{Success: true, Message: "ok", Result: KeyStatus{Valid: true}}
	payload, err := json.Marshal(success)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	json.Unmarshal(payload, &fields) //nolint:errcheck
	if _, ok := fields["error"]; ok {
		t.Errorf("success envelope must not carry error: %s", payload)
	}

	failure := errorEnvelope(CodeValidation, "bad input")
	payload, _ = json.Marshal(failure)
	fields = map[string]any{}
	json.Unmarshal(payload, &fields) //nolint:errcheck
	if _, ok := fields["result"]; ok {
		t.Errorf("failure envelope must not carry result: %s", payload)
	}
	if fields["code"] != CodeValidation {
		t.Errorf("expected code field, got %s", payload)
	}
}
