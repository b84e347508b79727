// Package mcpserver exposes the MMAudio adapter over the Model Context
// Protocol. The same server instance serves either the stdio transport or a
// chi-routed streamable HTTP endpoint.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mmaudio/mmaudio-mcp-go/internal/domain/dispatch"
	"github.com/mmaudio/mmaudio-mcp-go/internal/infra/config"
	"github.com/mmaudio/mmaudio-mcp-go/internal/version"
)

const serverName = "mmaudio"

// Server wires the dispatcher into an MCP server.
type Server struct {
	mcp        *mcp.Server
	dispatcher *dispatch.Dispatcher
}

// New builds the MCP server and registers the three tools.
func New(cfg config.Config) *Server {
	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		}, nil),
		dispatcher: dispatch.New(cfg),
	}
	s.registerTools()
	return s
}

// RunStdio serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects. Nothing else may write to stdout while this runs.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// envelopeResult encodes an envelope as the single text payload of a tool
// result. Failure envelopes are flagged IsError so MCP clients can surface
// them, but the envelope itself remains the complete answer.
func envelopeResult(env dispatch.Envelope) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		IsError: !env.Success,
	}, nil
}
