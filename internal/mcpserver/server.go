// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the build pipeline to LLM tooling via stdio transport:
// fragment listing, resolved metadata, dependency checks, and builds.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jera/internal/builder"
	"github.com/starford/jera/internal/deps"
	"github.com/starford/jera/internal/discovery"
	"github.com/starford/jera/internal/parser"
)

// Options carries the project wiring the tools operate on.
type Options struct {
	Discovery    *discovery.Discovery
	TemplatesDir string
	// ArtifactPath returns the output path for a format extension.
	ArtifactPath func(ext string) string
}

// Server wraps the MCP server with the Jera tools.
type Server struct {
	mcp  *server.MCPServer
	opts Options
}

// New creates a new MCP server with all tools registered.
func New(opts Options) *Server {
	s := &Server{opts: opts}

	s.mcp = server.NewMCPServer(
		"Jera",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_fragments",
		mcp.WithDescription("List the document's fragment files in their final section order."),
	), s.listFragments)

	s.mcp.AddTool(mcp.NewTool("get_metadata",
		mcp.WithDescription("Return the merged document metadata the next build would use, "+
			"resolved across all fragments with 00-setup.md precedence."),
	), s.getMetadata)

	s.mcp.AddTool(mcp.NewTool("build_document",
		mcp.WithDescription("Run one build cycle and return the artifact path."),
		mcp.WithString("format", mcp.Required(), mcp.Description("Output format: pdf, docx, or html")),
	), s.buildDocument)

	s.mcp.AddTool(mcp.NewTool("check_dependencies",
		mcp.WithDescription("Report availability of the external tools (converter, typesetting engine, diagram renderer)."),
	), s.checkDependencies)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listFragments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.opts.Discovery.DiscoverAll()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(files.Fragments) == 0 {
		return mcp.NewToolResultText("no fragment files found"), nil
	}

	var lines []string
	for _, f := range files.Fragments {
		title := f.Metadata.Title
		if title == "" {
			lines = append(lines, f.Path)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", f.Path, title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.opts.Discovery.DiscoverAll()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	merged := parser.Merge(files.Fragments)
	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) buildDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := builder.Lookup(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	files, err := s.opts.Discovery.DiscoverAll()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	b := builder.New(format, s.opts.TemplatesDir, nil)
	artifact, err := b.Build(ctx, files.Fragments, s.opts.ArtifactPath(format.Extension))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("built: %s", artifact)), nil
}

func (s *Server) checkDependencies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var lines []string
	for _, st := range deps.CheckAll(ctx) {
		status := "missing"
		if st.Available {
			status = "available"
			if st.Version != "" {
				status += " (" + st.Version + ")"
			}
		}
		line := fmt.Sprintf("%s: %s", st.Name, status)
		if !st.Available {
			line += ", install: " + st.Hint
		}
		lines = append(lines, line)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}
