// Package mcpserver exposes the mensa tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	logcontext "github.com/va6996/mensaman/context"
	"github.com/va6996/mensaman/log"
	pcore "github.com/va6996/mensaman/plugins/core"
	"github.com/va6996/mensaman/plugins/mensa"
)

const (
	DefaultName    = "Munich Mensa API"
	DefaultVersion = "1.0.0"

	// Path is where the streamable HTTP handler is mounted.
	Path = "/mcp"
)

// Server wraps an mcp.Server with the mensa and date tools registered.
type Server struct {
	server *mcp.Server
	mensa  *mensa.Client
	core   *pcore.Client
}

// New creates the MCP server. core may be nil, in which case resolve_date is not offered.
func New(name, version string, mensaClient *mensa.Client, coreClient *pcore.Client) *Server {
	if name == "" {
		name = DefaultName
	}
	if version == "" {
		version = DefaultVersion
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		mensa:  mensaClient,
		core:   coreClient,
	}
	s.addTools()
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// RunStdio serves a single session over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) addTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        mensa.FacilitiesToolName,
		Description: "Get list of all available Mensa facilities in Munich, optionally filtered by name or location",
	}, s.facilities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        mensa.MenuToolName,
		Description: "Get menu for a specific Mensa facility on a specific date",
	}, s.menu)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        mensa.WeekMenuToolName,
		Description: "Get the menus of a whole ISO week for a Mensa facility",
	}, s.weekMenu)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        mensa.NearbyToolName,
		Description: "Find the Mensa facilities closest to an address or to a latitude/longitude pair",
	}, s.nearby)

	if s.core != nil && s.core.DateTool != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        pcore.DateToolName,
			Description: s.core.DateTool.Description(),
		}, s.resolveDate)
	}
}

func (s *Server) facilities(ctx context.Context, _ *mcp.CallToolRequest, in mensa.FacilitiesInput) (*mcp.CallToolResult, any, error) {
	ctx = logcontext.EnsureRequestID(ctx)
	log.Infof(ctx, "tool %s called", mensa.FacilitiesToolName)
	if s.mensa == nil {
		return nil, nil, fmt.Errorf("mensa client not initialized")
	}
	out, err := s.mensa.FacilitiesTool.Execute(ctx, &in)
	return textResult(out, err)
}

func (s *Server) menu(ctx context.Context, _ *mcp.CallToolRequest, in mensa.MenuInput) (*mcp.CallToolResult, any, error) {
	ctx = logcontext.EnsureRequestID(ctx)
	log.Infof(ctx, "tool %s called for %s on %q", mensa.MenuToolName, in.APIName, in.Date)
	if s.mensa == nil {
		return nil, nil, fmt.Errorf("mensa client not initialized")
	}
	out, err := s.mensa.MenuTool.Execute(ctx, &in)
	return textResult(out, err)
}

func (s *Server) weekMenu(ctx context.Context, _ *mcp.CallToolRequest, in mensa.WeekMenuInput) (*mcp.CallToolResult, any, error) {
	ctx = logcontext.EnsureRequestID(ctx)
	log.Infof(ctx, "tool %s called for %s on %q", mensa.WeekMenuToolName, in.APIName, in.Date)
	if s.mensa == nil {
		return nil, nil, fmt.Errorf("mensa client not initialized")
	}
	out, err := s.mensa.WeekMenuTool.Execute(ctx, &in)
	return textResult(out, err)
}

func (s *Server) nearby(ctx context.Context, _ *mcp.CallToolRequest, in mensa.NearbyInput) (*mcp.CallToolResult, any, error) {
	ctx = logcontext.EnsureRequestID(ctx)
	log.Infof(ctx, "tool %s called", mensa.NearbyToolName)
	if s.mensa == nil {
		return nil, nil, fmt.Errorf("mensa client not initialized")
	}
	out, err := s.mensa.NearbyTool.Execute(ctx, &in)
	return textResult(out, err)
}

func (s *Server) resolveDate(ctx context.Context, _ *mcp.CallToolRequest, in pcore.DateInput) (*mcp.CallToolResult, any, error) {
	ctx = logcontext.EnsureRequestID(ctx)
	log.Infof(ctx, "tool %s called", pcore.DateToolName)
	out, err := s.core.DateTool.Execute(ctx, &in)
	return textResult(out, err)
}

// textResult renders a tool payload as a single JSON text block.
func textResult(v interface{}, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return nil, nil, err
	}
	text, err := mensa.PayloadText(v)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}
