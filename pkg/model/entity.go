package model

import (
	"fmt"

	"cloud.google.com/go/firestore"
)

// EmbeddingText returns the canonical text that is embedded for a named entity.
func EmbeddingText(name, description string) string {
	return fmt.Sprintf("%s: %s", name, description)
}

// Symptom is a clinical manifestation extracted from free text or held in the catalog.
type Symptom struct {
	Name        string `json:"name" jsonschema:"Short name of the symptom, e.g. Runny nose"`
	Description string `json:"description" jsonschema:"One sentence description of the symptom"`
}

func (s Symptom) EmbeddingText() string { return EmbeddingText(s.Name, s.Description) }

type SymptomWithEmbedding struct {
	Symptom
	Embedding firestore.Vector32 `json:"embedding"`
}

// Examinable is something that can be measured or observed during an exam.
type Examinable struct {
	Name        string `json:"name" jsonschema:"Short name of the examinable, e.g. Mucous"`
	Description string `json:"description" jsonschema:"One sentence description of what is examined"`
}

func (e Examinable) EmbeddingText() string { return EmbeddingText(e.Name, e.Description) }

type ExaminableWithEmbedding struct {
	Examinable
	Embedding firestore.Vector32 `json:"embedding"`
}

// Criteria is a judgement rule attached to an examinable.
type Criteria struct {
	Name     string `json:"name"`
	Criteria string `json:"criteria"`
}

func (c Criteria) EmbeddingText() string { return EmbeddingText(c.Name, c.Criteria) }

type CriteriaWithEmbedding struct {
	Criteria
	Embedding firestore.Vector32 `json:"embedding"`
}
