// Package mcp exposes graph building and diagnosis as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/service/llm"
	"github.com/m-mizutani/medgraph/pkg/usecase/build"
	"github.com/m-mizutani/medgraph/pkg/usecase/match"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	msgBuildFailed    = "could not build graph"
	msgEvaluateFailed = "could not evaluate"
)

type examInput struct {
	T           string `json:"t,omitempty" jsonschema:"Time of the exam in RFC3339"`
	Name        string `json:"name,omitempty" jsonschema:"Name of the exam"`
	Description string `json:"description" jsonschema:"Free text result of the exam"`
}

type snapshotInput struct {
	T            string      `json:"t" jsonschema:"Time of the snapshot in RFC3339"`
	Descriptions []string    `json:"descriptions,omitempty" jsonschema:"Clinical notes taken at this time"`
	Exams        []examInput `json:"exams,omitempty" jsonschema:"Exams performed at this time"`
}

type buildGraphInput struct {
	Snapshots []snapshotInput `json:"snapshots" jsonschema:"Patient record snapshots"`
}

type buildGraphOutput struct {
	Symptoms  []string                `json:"symptoms"`
	Nodes     int                     `json:"nodes"`
	Edges     int                     `json:"edges"`
	Snapshots int                     `json:"snapshots"`
	Diagnosis []*model.DiagnosisEntry `json:"diagnosis"`
}

type symptomInput struct {
	Name        string `json:"name" jsonschema:"Name of the symptom"`
	Description string `json:"description,omitempty" jsonschema:"Short description of the symptom"`
}

type diagnoseInput struct {
	Symptoms []symptomInput `json:"symptoms" jsonschema:"Symptoms of the patient"`
}

type diagnoseOutput struct {
	Diagnosis []*model.DiagnosisEntry `json:"diagnosis"`
}

// Server serves the build_graph and diagnose_symptoms tools.
type Server struct {
	llm           *llm.Client
	builder       *build.Builder
	catalog       match.DiseaseCatalog
	threshold     float64
	maxIterations int
	matchOpts     []match.Option
	server        *mcp.Server
}

type Option func(*Server)

func WithMatchThreshold(threshold float64) Option {
	return func(s *Server) {
		s.threshold = threshold
	}
}

func WithMaxIterations(n int) Option {
	return func(s *Server) {
		s.maxIterations = n
	}
}

func WithMatchOptions(opts ...match.Option) Option {
	return func(s *Server) {
		s.matchOpts = append(s.matchOpts, opts...)
	}
}

func NewServer(client *llm.Client, builder *build.Builder, cat match.DiseaseCatalog, version string, opts ...Option) *Server {
	s := &Server{
		llm:           client,
		builder:       builder,
		catalog:       cat,
		threshold:     match.DefaultThreshold,
		maxIterations: match.DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "medgraph",
		Version: version,
	}, nil)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "build_graph",
		Description: "Build a knowledge graph of symptoms and exam evidence from patient snapshots, then rank candidate diseases",
	}, s.buildGraph)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "diagnose_symptoms",
		Description: "Rank candidate diseases for the given patient symptoms",
	}, s.diagnoseSymptoms)

	return s
}

// Run serves over stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server stopped")
	}
	return nil
}

// Handler serves over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func textResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil
}

// failure hides the cause from the client. The cause is logged.
func failure(ctx context.Context, msg string, err error) *mcp.CallToolResult {
	logging.From(ctx).Error(msg, "error", err)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid time", goerr.V("value", s))
	}
	return t, nil
}

func (in *buildGraphInput) toSnapshots() ([]*model.Snapshot, error) {
	snapshots := make([]*model.Snapshot, 0, len(in.Snapshots))
	for _, s := range in.Snapshots {
		t, err := parseTime(s.T)
		if err != nil {
			return nil, err
		}
		snapshot := &model.Snapshot{T: t, Descriptions: s.Descriptions}
		for _, e := range s.Exams {
			et, err := parseTime(e.T)
			if err != nil {
				return nil, err
			}
			if et.IsZero() {
				et = t
			}
			snapshot.Exams = append(snapshot.Exams, model.Exam{T: et, Name: e.Name, Description: e.Description})
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (s *Server) buildGraph(ctx context.Context, req *mcp.CallToolRequest, in *buildGraphInput) (*mcp.CallToolResult, any, error) {
	snapshots, err := in.toSnapshots()
	if err != nil {
		return failure(ctx, msgBuildFailed, err), nil, nil
	}

	result, err := s.builder.BuildGraph(ctx, snapshots)
	if err != nil {
		return failure(ctx, msgBuildFailed, err), nil, nil
	}

	out := &buildGraphOutput{
		Symptoms:  result.SymptomNames(),
		Nodes:     len(result.Graph.Nodes()),
		Edges:     len(result.Graph.Edges()),
		Snapshots: result.SnapshotCount,
		Diagnosis: match.Diagnose(result.Symptoms, s.catalog, s.threshold, s.maxIterations, s.matchOpts...),
	}
	res, err := textResult(out)
	if err != nil {
		return nil, nil, err
	}
	return res, nil, nil
}

func (s *Server) diagnoseSymptoms(ctx context.Context, req *mcp.CallToolRequest, in *diagnoseInput) (*mcp.CallToolResult, any, error) {
	patient := make([]*model.SymptomWithEmbedding, 0, len(in.Symptoms))
	for _, sym := range in.Symptoms {
		emb, err := s.llm.Embed(ctx, sym.Name, sym.Description)
		if err != nil {
			return failure(ctx, msgEvaluateFailed, err), nil, nil
		}
		patient = append(patient, &model.SymptomWithEmbedding{
			Symptom:   model.Symptom{Name: sym.Name, Description: sym.Description},
			Embedding: emb,
		})
	}

	out := &diagnoseOutput{
		Diagnosis: match.Diagnose(patient, s.catalog, s.threshold, s.maxIterations, s.matchOpts...),
	}
	res, err := textResult(out)
	if err != nil {
		return nil, nil, err
	}
	return res, nil, nil
}
