// Package mcptools exposes the text analysis engine as Model Context Protocol
// tools so assistants can review Italian text before handing it to speech
// synthesis.
//
// Five tools are registered:
//   - "analyze_text"     flags ambiguous words in a text.
//   - "apply_correction" rewrites every whole-word occurrence of a word.
//   - "auto_correct"     applies the default suggestion of every finding.
//   - "text_stats"       counts words and characters and estimates reading time.
//   - "lookup_word"      returns a dictionary entry or similar words.
//
// All handlers are safe for concurrent use.
package mcptools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/metavoices/internal/analysis"
	"github.com/MrWong99/metavoices/internal/observe"
)

const serverName = "metavoices"

// Option configures a [Server].
type Option func(*Server)

// WithMetrics records tool calls on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithVersion sets the version reported during initialization.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// Server is an MCP server backed by an [analysis.Analyzer].
type Server struct {
	analyzer *analysis.Analyzer
	metrics  *observe.Metrics
	version  string
	mcp      *mcp.Server
}

// New creates a [Server] with all tools registered.
func New(a *analysis.Analyzer, opts ...Option) *Server {
	s := &Server{analyzer: a, version: "dev"}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: s.version}, nil)
	s.register()
	return s
}

// MCP returns the underlying SDK server, e.g. to connect custom transports.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves the tools over stdin/stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	observe.Logger(ctx).Info("mcp server listening on stdio", "tools", len(toolNames))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// instrument wraps a tool handler with call counting and latency recording.
func instrument[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		ctx, span := observe.StartSpan(ctx, "mcp.tool."+name)
		defer span.End()

		start := time.Now()
		res, out, err := h(ctx, req, in)

		status := "ok"
		if err != nil {
			status = "error"
			observe.Fail(span, err, "tool call failed")
			observe.Logger(ctx).Debug("tool call failed", "tool", name, "err", err)
		}
		s.metrics.RecordToolCall(ctx, name, status)
		s.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("tool", name)),
		)
		return res, out, err
	}
}
