// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vault export tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultsite/internal/apperr"
	"github.com/starford/vaultsite/internal/export"
	"github.com/starford/vaultsite/internal/index"
	"github.com/starford/vaultsite/internal/parser"
	"github.com/starford/vaultsite/internal/siteservice"
	"github.com/starford/vaultsite/internal/storage"
)

// LinkFormatURI addresses the link format contract resource.
const LinkFormatURI = "vaultsite://link-format"

// Server wraps the MCP server with vaultsite tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *siteservice.Service
	manifest index.Manifest
}

// New creates a new MCP server with all vaultsite tools registered.
func New(svc *siteservice.Service, manifest index.Manifest, version string) *Server {
	s := &Server{svc: svc, manifest: manifest}

	s.mcp = server.NewMCPServer(
		"vaultsite",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("export_vault",
		mcp.WithDescription("Export every note and asset reachable from the start note into the site "+
			"tree, rewriting links, and record the run. Returns the run summary."),
	), s.exportVault)

	s.mcp.AddTool(mcp.NewTool("resolve_link",
		mcp.WithDescription("Resolve a link the way the exporter would. Accepts a bare path "+
			"(folder/note) or a full link ([[note#h|alias]], [text](note.md))."),
		mcp.WithString("link", mcp.Required(), mcp.Description("Link path or link literal")),
		mcp.WithString("from", mcp.Description("Vault path of the note containing the link (defaults to the start note)")),
	), s.resolveLink)

	s.mcp.AddTool(mcp.NewTool("list_exported",
		mcp.WithDescription("List the files written by the latest export."),
		mcp.WithString("kind", mcp.Description("Optional filter: note or asset"), mcp.Enum("note", "asset")),
	), s.listExported)

	s.mcp.AddTool(mcp.NewTool("read_exported",
		mcp.WithDescription("Read an exported note as rewritten for the site."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the exported tree (e.g. folder/note.md)")),
	), s.readExported)

	s.mcp.AddTool(mcp.NewTool("broken_links",
		mcp.WithDescription("List links of the latest export whose target does not exist in the vault."),
	), s.brokenLinks)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all exported notes that link to the specified file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the target (e.g. folder/note.md)")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_link_contract",
		mcp.WithDescription("Returns the vault link format and how the exporter rewrites links."),
	), s.getLinkContract)

	// Resource: link format contract.
	s.mcp.AddResource(
		mcp.NewResource(LinkFormatURI, "Link Format Contract",
			mcp.WithResourceDescription("Vault link syntaxes, resolution conventions and export rewriting."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkFormatResource,
	)

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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) exportVault(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Export(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.Summary())
}

func (s *Server) resolveLink(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("link")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from := req.GetString("from", s.svc.Settings().Start)

	link := parser.Link{Path: raw}
	if links := parser.Links(raw); len(links) > 0 {
		link = links[0]
	}
	if link.IsExternal() {
		return mcp.NewToolResultText(fmt.Sprintf("external: %s", link.Path)), nil
	}

	target, convention, err := s.svc.ResolveLink(link.LookupPath(), from)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %q from %s (%s)", link.Path, from, convention)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{
		"target":     target,
		"convention": string(convention),
	})
}

func (s *Server) listExported(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("kind", "")
	files, err := s.manifest.Files()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, f := range files {
		if kind == "" || f.Kind == kind {
			paths = append(paths, f.Path)
		}
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no exported files"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readExported(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := storage.NewFS(filepath.Join(s.svc.Settings().OutputRoot, export.WikiDir))
	if err != nil {
		return mcp.NewToolResultError("nothing exported yet"), nil
	}
	data, err := out.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) brokenLinks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	links, err := s.manifest.BrokenLinks()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no broken links"), nil
	}
	lines := make([]string, len(links))
	for i, l := range links {
		lines[i] = fmt.Sprintf("%s: %s", l.Source, l.Raw)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getBacklinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.manifest.Backlinks(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) getLinkContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LinkFormatContract), nil
}

func (s *Server) readLinkFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LinkFormatURI,
			MIMEType: "text/markdown",
			Text:     LinkFormatContract,
		},
	}, nil
}
