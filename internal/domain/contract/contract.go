// Package contract defines the input contract of the generation tools: the
// recognized fields, their bounds and defaults, and the validation that turns
// caller arguments into an outbound request. Validation collects every
// violation instead of stopping at the first, so callers get actionable
// feedback in one round trip.
package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
)

// Operation describes one generation endpoint. The two operations share all
// control flow; only the descriptor differs.
type Operation struct {
	// Name is the tool name exposed to callers.
	Name string
	// Path is the upstream endpoint, relative to the base URL.
	Path string
	// ResponseKey is the JSON key the media descriptor nests under in a
	// successful upstream response.
	ResponseKey string
	// RequireVideo marks video_url as a required input.
	RequireVideo bool
	// ZeroSeed defaults an absent seed to 0 instead of omitting it. The two
	// operations intentionally differ here; the upstream API expects it.
	ZeroSeed bool
}

// VideoToAudio generates audio for an existing video.
var VideoToAudio = Operation{
	Name:         "video_to_audio",
	Path:         "/api/video-to-audio",
	ResponseKey:  "video",
	RequireVideo: true,
}

// TextToAudio generates audio from a text prompt alone.
var TextToAudio = Operation{
	Name:        "text_to_audio",
	Path:        "/api/text-to-audio",
	ResponseKey: "audio",
	ZeroSeed:    true,
}

// Field bounds and defaults.
const (
	DefaultDuration    = 8.0
	MinDuration        = 1.0
	MaxDuration        = 30.0
	DefaultNumSteps    = 25
	MinNumSteps        = 1
	MaxNumSteps        = 50
	DefaultCfgStrength = 4.5
	MinCfgStrength     = 1.0
	MaxCfgStrength     = 10.0
)

// Request is the validated, defaulted body sent upstream. Seed is a pointer
// so the video variant can omit it entirely when the caller left it out.
type Request struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Duration       float64 `json:"duration"`
	NumSteps       int     `json:"num_steps"`
	CfgStrength    float64 `json:"cfg_strength"`
	Seed           *int64  `json:"seed,omitempty"`
	VideoURL       string  `json:"video_url,omitempty"`
}

// Violation is one offending input field.
type Violation struct {
	Field  string
	Reason string
}

// ValidationError reports every violation found in one pass.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Reason
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

// ParseRequest validates raw caller arguments against op's contract and
// returns the outbound request with defaults applied. On failure the returned
// error is a *ValidationError enumerating all violations; no request is built.
func ParseRequest(op Operation, raw json.RawMessage) (*Request, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ValidationError{Violations: []Violation{
			{Field: "arguments", Reason: "must be a JSON object"},
		}}
	}

	p := &parser{fields: fields}

	req := &Request{
		Duration:    DefaultDuration,
		NumSteps:    DefaultNumSteps,
		CfgStrength: DefaultCfgStrength,
	}

	if prompt, ok := p.str("prompt"); ok {
		if strings.TrimSpace(prompt) == "" {
			p.violate("prompt", "must be a non-empty string")
		}
		req.Prompt = prompt
	} else if !p.present("prompt") {
		p.violate("prompt", "is required")
	}

	if op.RequireVideo {
		if videoURL, ok := p.str("video_url"); ok {
			if !isAbsoluteURL(videoURL) {
				p.violate("video_url", "must be an absolute http or https URL")
			}
			req.VideoURL = videoURL
		} else if !p.present("video_url") {
			p.violate("video_url", "is required")
		}
	}

	if neg, ok := p.str("negative_prompt"); ok {
		req.NegativePrompt = neg
	}

	if duration, ok := p.num("duration"); ok {
		if duration < MinDuration || duration > MaxDuration {
			p.violate("duration", fmt.Sprintf("must be between %g and %g", MinDuration, MaxDuration))
		}
		req.Duration = duration
	}

	if steps, ok := p.integer("num_steps"); ok {
		if steps < MinNumSteps || steps > MaxNumSteps {
			p.violate("num_steps", fmt.Sprintf("must be an integer between %d and %d", MinNumSteps, MaxNumSteps))
		}
		req.NumSteps = int(steps)
	}

	if strength, ok := p.num("cfg_strength"); ok {
		if strength < MinCfgStrength || strength > MaxCfgStrength {
			p.violate("cfg_strength", fmt.Sprintf("must be between %g and %g", MinCfgStrength, MaxCfgStrength))
		}
		req.CfgStrength = strength
	}

	if seed, ok := p.integer("seed"); ok {
		req.Seed = &seed
	} else if op.ZeroSeed && !p.present("seed") {
		zero := int64(0)
		req.Seed = &zero
	}

	if len(p.violations) > 0 {
		return nil, &ValidationError{Violations: p.violations}
	}
	return req, nil
}

// parser accumulates violations while pulling typed values out of the raw
// argument map. Unrecognized fields are ignored.
type parser struct {
	fields     map[string]json.RawMessage
	violations []Violation
}

func (p *parser) violate(field, reason string) {
	p.violations = append(p.violations, Violation{Field: field, Reason: reason})
}

func (p *parser) present(name string) bool {
	raw, ok := p.fields[name]
	return ok && string(raw) != "null"
}

// str returns the field as a string. A present non-string value records a
// violation and reports absent.
func (p *parser) str(name string) (string, bool) {
	if !p.present(name) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(p.fields[name], &s); err != nil {
		p.violate(name, "must be a string")
		return "", false
	}
	return s, true
}

// num returns the field as a number.
func (p *parser) num(name string) (float64, bool) {
	if !p.present(name) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(p.fields[name], &f); err != nil {
		p.violate(name, "must be a number")
		return 0, false
	}
	return f, true
}

// integer returns the field as an integer, rejecting fractional values.
func (p *parser) integer(name string) (int64, bool) {
	f, ok := p.num(name)
	if !ok {
		return 0, false
	}
	if f != math.Trunc(f) {
		p.violate(name, "must be an integer")
		return 0, false
	}
	return int64(f), true
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}
