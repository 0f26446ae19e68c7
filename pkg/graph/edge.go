package graph

import (
	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
)

type EdgeType string

const (
	EdgeTypeEvaluation EdgeType = "evaluation"
	EdgeTypeRelated    EdgeType = "related"
)

// Edge is a tagged variant. Evaluation edges go from an Exam node to a Symptom node and carry
// the evaluation. Related edges carry a weight.
type Edge struct {
	Type            EdgeType           `json:"type"`
	Source          string             `json:"source"`
	Target          string             `json:"target"`
	SourceEmbedding firestore.Vector32 `json:"source_embedding"`
	TargetEmbedding firestore.Vector32 `json:"target_embedding"`
	Embedding       firestore.Vector32 `json:"embedding"`

	Evaluation *model.Evaluation `json:"evaluation,omitempty"`
	Weight     float64           `json:"weight,omitempty"`
}

func NewEvaluationEdge(exam, symptom *Node, ev *model.EvaluationWithEmbedding) *Edge {
	evaluation := ev.Evaluation
	return &Edge{
		Type:            EdgeTypeEvaluation,
		Source:          exam.ID,
		Target:          symptom.ID,
		SourceEmbedding: exam.Embedding,
		TargetEmbedding: symptom.Embedding,
		Embedding:       ev.Embedding,
		Evaluation:      &evaluation,
	}
}

func NewRelatedEdge(source, target *Node, weight float64, embedding firestore.Vector32) *Edge {
	return &Edge{
		Type:            EdgeTypeRelated,
		Source:          source.ID,
		Target:          target.ID,
		SourceEmbedding: source.Embedding,
		TargetEmbedding: target.Embedding,
		Embedding:       embedding,
		Weight:          weight,
	}
}

func (e *Edge) Validate() error {
	if e.Source == "" || e.Target == "" {
		return goerr.New("edge endpoint is empty", goerr.V("type", e.Type))
	}

	switch e.Type {
	case EdgeTypeEvaluation:
		if e.Evaluation == nil {
			return goerr.New("evaluation edge has no evaluation", goerr.V("source", e.Source), goerr.V("target", e.Target))
		}
		return e.Evaluation.Validate()
	case EdgeTypeRelated:
		if e.Evaluation != nil {
			return goerr.New("related edge must not carry an evaluation", goerr.V("source", e.Source), goerr.V("target", e.Target))
		}
	default:
		return goerr.New("unknown edge type", goerr.V("type", e.Type))
	}
	return nil
}
