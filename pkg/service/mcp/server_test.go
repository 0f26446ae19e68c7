package mcp_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/medgraph/pkg/catalog"
	"github.com/m-mizutani/medgraph/pkg/mock"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/service/llm"
	"github.com/m-mizutani/medgraph/pkg/service/mcp"
	"github.com/m-mizutani/medgraph/pkg/usecase/build"
	"github.com/m-mizutani/medgraph/pkg/usecase/resolve"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func newCatalog(t *testing.T) *catalog.Catalog {
	cat, err := catalog.New(
		[]*model.SymptomRecord{
			{ID: "s-fever", Name: "Fever", Embedding: firestore.Vector32{1, 0}},
			{ID: "s-sneezing", Name: "Sneezing", Embedding: firestore.Vector32{0, 1}},
		},
		nil, nil,
		[]*model.Disease{
			{ID: "d-flu", Name: "Flu", Prevalence: 0.3, SymptomIDs: []model.SymptomID{"s-fever"}},
			{ID: "d-allergy", Name: "Allergy", Prevalence: 0.4, SymptomIDs: []model.SymptomID{"s-sneezing"}},
		},
	)
	gt.NoError(t, err)
	return cat
}

func connect(t *testing.T, router *mock.Router, vectors mock.VectorTable) *mcpsdk.ClientSession {
	cat := newCatalog(t)
	client := llm.New(mock.NewModels(router, vectors))
	server := mcp.NewServer(client, build.New(client, resolve.New(cat)), cat, "test")

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := mcpClient.Connect(context.Background(), &mcpsdk.StreamableClientTransport{Endpoint: ts.URL}, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callText(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) (*mcpsdk.CallToolResult, string) {
	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	gt.NoError(t, err)
	gt.A(t, result.Content).Length(1)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	return result, text.Text
}

func TestListTools(t *testing.T) {
	session := connect(t, &mock.Router{}, mock.VectorTable{})

	tools, err := session.ListTools(context.Background(), nil)
	gt.NoError(t, err)
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	gt.True(t, names["build_graph"])
	gt.True(t, names["diagnose_symptoms"])
}

func TestDiagnoseSymptoms(t *testing.T) {
	session := connect(t, &mock.Router{}, mock.VectorTable{"High fever": {1, 0.1}})

	result, text := callText(t, session, "diagnose_symptoms", map[string]any{
		"symptoms": []map[string]any{{"name": "High fever", "description": "39 degrees"}},
	})
	gt.False(t, result.IsError)

	var out struct {
		Diagnosis []*model.DiagnosisEntry `json:"diagnosis"`
	}
	gt.NoError(t, json.Unmarshal([]byte(text), &out))
	gt.A(t, out.Diagnosis).Length(1)
	gt.Equal(t, out.Diagnosis[0].Name, "Flu")
}

func TestDiagnoseSymptomsFailure(t *testing.T) {
	session := connect(t, &mock.Router{}, mock.VectorTable{})

	result, text := callText(t, session, "diagnose_symptoms", map[string]any{
		"symptoms": []map[string]any{{"name": "Unregistered"}},
	})
	gt.True(t, result.IsError)
	gt.Equal(t, text, "could not evaluate")
}

func TestBuildGraph(t *testing.T) {
	router := &mock.Router{Routes: map[string]func(string) (string, error){
		"extract and infer symptoms": func(string) (string, error) {
			return `{"symptoms":[{"name":"Fever","description":"High temperature"}]}`, nil
		},
	}}
	session := connect(t, router, mock.VectorTable{"Fever": {1, 0}})

	result, text := callText(t, session, "build_graph", map[string]any{
		"snapshots": []map[string]any{
			{"t": "2024-01-01T00:00:00Z", "descriptions": []string{"fever since yesterday"}},
		},
	})
	gt.False(t, result.IsError)

	var out struct {
		Symptoms  []string                `json:"symptoms"`
		Nodes     int                     `json:"nodes"`
		Snapshots int                     `json:"snapshots"`
		Diagnosis []*model.DiagnosisEntry `json:"diagnosis"`
	}
	gt.NoError(t, json.Unmarshal([]byte(text), &out))
	gt.Equal(t, out.Symptoms, []string{"Fever"})
	gt.Equal(t, out.Nodes, 1)
	gt.Equal(t, out.Snapshots, 1)
	gt.A(t, out.Diagnosis).Length(1)
	gt.Equal(t, out.Diagnosis[0].Name, "Flu")
}

func TestBuildGraphInvalidTime(t *testing.T) {
	session := connect(t, &mock.Router{}, mock.VectorTable{})

	result, text := callText(t, session, "build_graph", map[string]any{
		"snapshots": []map[string]any{{"t": "yesterday"}},
	})
	gt.True(t, result.IsError)
	gt.Equal(t, text, "could not build graph")
}
