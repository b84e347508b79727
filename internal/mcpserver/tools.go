package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mmaudio/mmaudio-mcp-go/internal/domain/contract"
)

// registerTools declares the three operations. Input schemas are deliberately
// permissive (typed properties, documented bounds, no required list): the
// contract layer is the single validation authority, so callers always get a
// ValidationError envelope enumerating every offending field instead of a
// transport-level schema rejection.
func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        contract.VideoToAudio.Name,
		Description: "Generate a synchronized audio track for a video using the MMAudio API. Returns the generated media as a URL.",
		InputSchema: generationSchema(contract.VideoToAudio),
	}, s.generationHandler(contract.VideoToAudio))

	s.mcp.AddTool(&mcp.Tool{
		Name:        contract.TextToAudio.Name,
		Description: "Generate audio from a text prompt using the MMAudio API. Returns the generated audio as a URL.",
		InputSchema: generationSchema(contract.TextToAudio),
	}, s.generationHandler(contract.TextToAudio))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "validate_api_key",
		Description: "Check whether an MMAudio API key is valid and report remaining credits. Uses the configured key when none is given.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"api_key": {
					Type:        "string",
					Description: "API key to check instead of the configured one",
				},
			},
		},
	}, s.validateKeyHandler)
}

func (s *Server) generationHandler(op contract.Operation) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := s.dispatcher.Generate(ctx, op, req.Params.Arguments)
		return envelopeResult(env)
	}
}

func (s *Server) validateKeyHandler(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		APIKey string `json:"api_key"`
	}
	if len(req.Params.Arguments) > 0 {
		// A malformed argument object falls through with an empty override;
		// the dispatcher then decides whether any key is available.
		json.Unmarshal(req.Params.Arguments, &args) //nolint:errcheck
	}
	env := s.dispatcher.ValidateKey(ctx, args.APIKey)
	return envelopeResult(env)
}

// generationSchema builds the input schema for one generation operation.
func generationSchema(op contract.Operation) *jsonschema.Schema {
	props := map[string]*jsonschema.Schema{
		"prompt": {
			Type:        "string",
			Description: "Text prompt describing the audio to generate (required, non-empty)",
		},
		"negative_prompt": {
			Type:        "string",
			Description: "What the generated audio should avoid (default: empty)",
		},
		"duration": {
			Type: "number",
			Description: fmt.Sprintf("Audio duration in seconds, %g to %g (default %g)",
				contract.MinDuration, contract.MaxDuration, contract.DefaultDuration),
		},
		"num_steps": {
			Type: "integer",
			Description: fmt.Sprintf("Inference steps, %d to %d (default %d)",
				contract.MinNumSteps, contract.MaxNumSteps, contract.DefaultNumSteps),
		},
		"cfg_strength": {
			Type: "number",
			Description: fmt.Sprintf("Guidance strength, %g to %g (default %g)",
				contract.MinCfgStrength, contract.MaxCfgStrength, contract.DefaultCfgStrength),
		},
		"seed": {
			Type:        "integer",
			Description: "Random seed for reproducible generation",
		},
	}
	if op.RequireVideo {
		props["video_url"] = &jsonschema.Schema{
			Type:        "string",
			Description: "Absolute URL of the video to generate audio for (required)",
		}
	}
	return &jsonschema.Schema{Type: "object", Properties: props}
}
