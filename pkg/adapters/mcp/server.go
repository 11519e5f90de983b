package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/internal/presentation/graph"
	"github.com/dylan-euc/client-side-quiz/internal/runtime"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/dylan-euc/client-side-quiz/pkg/runner"
	"github.com/dylan-euc/client-side-quiz/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

const (
	catalogURI    = "quiz://flows"
	graphTemplate = "quiz://flows/{id}/graph"
)

// Catalog is the read side of the flow registry exposed to agents.
type Catalog interface {
	ports.FlowRegistry
	All() []*domain.FlowDefinition
}

// SessionResult aligns with the HTTP session payload.
type SessionResult struct {
	Screen runner.Screen    `json:"screen" jsonschema_description:"What to show the respondent next"`
	State  *domain.Snapshot `json:"state" jsonschema_description:"Answers, history and status of the session"`
}

// FlowInfo describes one published flow.
type FlowInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version" jsonschema_description:"Current version"`
	Description string   `json:"description,omitempty"`
	Versions    []string `json:"versions"`
}

// FlowList is the result of list_flows.
type FlowList struct {
	Flows []FlowInfo `json:"flows"`
}

// Server exposes the flow catalog and session operations as MCP tools.
type Server struct {
	flows     Catalog
	sessions  *session.Manager
	logger    *slog.Logger
	version   string
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported during the MCP handshake.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(flows Catalog, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		flows:    flows,
		sessions: sessions,
		logger:   logging.NewNop(),
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("quiz-mcp", strings.TrimSpace(s.version),
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", slog.String("address", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the questionnaires that can be started."),
		mcp.WithOutputSchema[FlowList](),
	), mcp.NewStructuredToolHandler(s.handleListFlows))

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a questionnaire session and return its first screen."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow to start")),
		mcp.WithString("version", mcp.Description("Pin a flow version (defaults to the current one)")),
		mcp.WithString("user_id", mcp.Description("Respondent identifier")),
		mcp.WithBoolean("resume", mcp.Description("Return the respondent's unfinished session instead of a new one")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleStartSession))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Show the current screen of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleGetSession))

	s.mcpServer.AddTool(mcp.NewTool("submit_answer",
		mcp.WithDescription("Answer the current question. Options may be given by value, label or number; checkbox answers are comma separated."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("value", mcp.Description("The answer as typed by the respondent (omit for info screens)")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleSubmitAnswer))

	s.mcpServer.AddTool(mcp.NewTool("go_back",
		mcp.WithDescription("Return to the previous question, keeping its answer."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleGoBack))

	s.mcpServer.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Abandon the session and start over on the same flow version."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleResetSession))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Render a flow as a Mermaid diagram, optionally highlighting a session's path."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow to render")),
		mcp.WithString("version", mcp.Description("Flow version")),
		mcp.WithString("session_id", mcp.Description("Session whose path to highlight")),
	), s.handleGetGraph)
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func result(sess *runtime.Session) SessionResult {
	return SessionResult{Screen: runner.NewScreen(sess), State: sess.Snapshot()}
}

func (s *Server) handleListFlows(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (FlowList, error) {
	all := s.flows.All()
	out := FlowList{Flows: make([]FlowInfo, 0, len(all))}
	for _, f := range all {
		info := FlowInfo{ID: f.ID, Name: f.Name, Version: f.Version, Description: f.Description}
		for _, v := range s.flows.GetFlowVersions(f.ID) {
			info.Versions = append(info.Versions, v.Version)
		}
		out.Flows = append(out.Flows, info)
	}
	return out, nil
}

func (s *Server) handleStartSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResult, error) {
	flowID := stringArg(args, "flow_id")
	if flowID == "" {
		return SessionResult{}, errors.New("flow_id is required")
	}
	resume, _ := args["resume"].(bool)
	sess, err := s.sessions.Start(ctx, flowID, session.StartOptions{
		UserID:  stringArg(args, "user_id"),
		Version: stringArg(args, "version"),
		Resume:  resume,
	})
	if err != nil {
		return SessionResult{}, fmt.Errorf("start failed: %w", err)
	}
	return result(sess), nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResult, error) {
	sess, err := s.sessions.Get(ctx, stringArg(args, "session_id"))
	if err != nil {
		return SessionResult{}, err
	}
	return result(sess), nil
}

func (s *Server) handleSubmitAnswer(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResult, error) {
	id := stringArg(args, "session_id")
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return SessionResult{}, err
	}

	raw, _ := args["value"].(string)
	clean, err := runner.SanitizeInput(raw)
	if err != nil {
		s.logger.Warn("MCP answer rejected", logging.SessionID(id), logging.Err(err), slog.Int("size", len(raw)))
		return SessionResult{}, fmt.Errorf("input rejected: %w", err)
	}

	step := sess.CurrentStep()
	if step == nil {
		// At an outcome there is nothing left to answer.
		return result(sess), nil
	}
	value, err := runner.ParseInput(step, clean)
	if err != nil {
		return SessionResult{}, err
	}

	sess, err = s.sessions.Submit(ctx, id, value)
	if err != nil {
		return SessionResult{}, fmt.Errorf("submit failed: %w", err)
	}
	return result(sess), nil
}

func (s *Server) handleGoBack(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResult, error) {
	sess, err := s.sessions.Back(ctx, stringArg(args, "session_id"))
	if err != nil {
		return SessionResult{}, err
	}
	return result(sess), nil
}

func (s *Server) handleResetSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResult, error) {
	sess, err := s.sessions.Reset(ctx, stringArg(args, "session_id"))
	if err != nil {
		return SessionResult{}, err
	}
	return result(sess), nil
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	flow, err := s.lookupFlow(stringArg(args, "flow_id"), stringArg(args, "version"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var overlay *graph.GraphOverlay
	if id := stringArg(args, "session_id"); id != "" {
		sess, err := s.sessions.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		flow = sess.Flow()
		overlay = &graph.GraphOverlay{VisitedNodes: sess.History(), CurrentNode: sess.CurrentStepID()}
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(flow, overlay)), nil
}

func (s *Server) lookupFlow(id, version string) (*domain.FlowDefinition, error) {
	if version != "" {
		if f, ok := s.flows.GetFlowByVersion(id, version); ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w: %s@%s", domain.ErrFlowNotFound, id, version)
	}
	if f, ok := s.flows.GetFlow(id); ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(catalogURI, "Flow catalog",
		mcp.WithResourceDescription("Published questionnaires and their versions"),
		mcp.WithMIMEType("application/json"),
	), s.readCatalog)

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(graphTemplate, "Flow graph",
		mcp.WithTemplateDescription("Mermaid diagram of the current version of a flow"),
		mcp.WithTemplateMIMEType("text/vnd.mermaid"),
	), s.readGraph)
}

func (s *Server) readCatalog(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, _ := s.handleListFlows(ctx, mcp.CallToolRequest{}, nil)
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: catalogURI, MIMEType: "application/json", Text: string(data)},
	}, nil
}

func (s *Server) readGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	id, ok := strings.CutPrefix(uri, catalogURI+"/")
	if ok {
		id, ok = strings.CutSuffix(id, "/graph")
	}
	if !ok || id == "" {
		return nil, fmt.Errorf("unsupported resource: %s", uri)
	}
	flow, err := s.lookupFlow(id, "")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "text/vnd.mermaid", Text: graph.GenerateMermaid(flow, nil)},
	}, nil
}
