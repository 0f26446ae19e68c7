package graph

import (
	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
)

type NodeType string

const (
	NodeTypeSymptom NodeType = "symptom"
	NodeTypeExam    NodeType = "exam"
)

// Node is a tagged variant. Exactly the payload matching Type is set.
type Node struct {
	Type      NodeType           `json:"type"`
	ID        string             `json:"id"`
	Embedding firestore.Vector32 `json:"embedding"`

	Symptom *model.Symptom `json:"symptom,omitempty"`
	Exam    *model.Exam    `json:"exam,omitempty"`
}

func NewSymptomNode(s *model.SymptomWithEmbedding) *Node {
	symptom := s.Symptom
	return &Node{
		Type:      NodeTypeSymptom,
		ID:        s.Name,
		Embedding: s.Embedding,
		Symptom:   &symptom,
	}
}

func NewExamNode(e model.Exam, embedding firestore.Vector32) *Node {
	return &Node{
		Type:      NodeTypeExam,
		ID:        e.Label(),
		Embedding: embedding,
		Exam:      &e,
	}
}

func (n *Node) Validate() error {
	if n.ID == "" {
		return goerr.New("node has no id", goerr.V("type", n.Type))
	}

	switch n.Type {
	case NodeTypeSymptom:
		if n.Symptom == nil || n.Exam != nil {
			return goerr.New("symptom node must carry only a symptom", goerr.V("id", n.ID))
		}
	case NodeTypeExam:
		if n.Exam == nil || n.Symptom != nil {
			return goerr.New("exam node must carry only an exam", goerr.V("id", n.ID))
		}
	default:
		return goerr.New("unknown node type", goerr.V("type", n.Type), goerr.V("id", n.ID))
	}
	return nil
}
